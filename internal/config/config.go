// Package config loads harness configuration from defaults, an optional YAML
// file, and environment variables, in that order of precedence.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the externally injected configuration surface consumed by the
// healing pipeline and the visual comparator. Nothing in the pipeline reads
// the environment directly.
type Config struct {
	// Healing toggle. When false the entire pipeline is a no-op.
	HealingEnabled bool `yaml:"healing_enabled"`

	// Model client.
	Model          string        `yaml:"model"`
	OllamaHost     string        `yaml:"ollama_host"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxRetries     int           `yaml:"max_retries"`
	RetryBackoff   time.Duration `yaml:"retry_backoff"`
	WarmupTimeout  time.Duration `yaml:"warmup_timeout"`
	Temperature    float64       `yaml:"temperature"`

	// Decision gate.
	LowConfidenceThreshold float64 `yaml:"low_confidence_threshold"`

	// Prompt size caps.
	ContextWindow int `yaml:"context_window"`

	// Visual regression.
	VisualTolerance float64 `yaml:"visual_tolerance"`

	// Artifact directories.
	ReportDir     string `yaml:"report_dir"`
	ScreenshotDir string `yaml:"screenshot_dir"`
	BaselineDir   string `yaml:"baseline_dir"`
	DiffDir       string `yaml:"diff_dir"`

	// Optional healing-history database. Empty disables the store.
	DatabaseURL string `yaml:"database_url"`
}

// Default returns the documented defaults.
func Default() *Config {
	return &Config{
		HealingEnabled:         false,
		Model:                  "llama3.1:8b",
		OllamaHost:             "http://localhost:11434",
		RequestTimeout:         120 * time.Second,
		MaxRetries:             3,
		RetryBackoff:           2 * time.Second,
		WarmupTimeout:          180 * time.Second,
		Temperature:            0.1,
		LowConfidenceThreshold: 0.7,
		ContextWindow:          5000,
		VisualTolerance:        0.01,
		ReportDir:              "test_artifacts/ai/healing_reports",
		ScreenshotDir:          "test_artifacts/screenshots",
		BaselineDir:            "test_artifacts/visual/baselines",
		DiffDir:                "test_artifacts/visual/diffs",
	}
}

// Load builds a Config from defaults, the YAML file at path (if non-empty and
// present), and environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("AI_HEALING_ENABLED"); v != "" {
		c.HealingEnabled = v == "true" || v == "1"
	}
	if v := os.Getenv("OLLAMA_MODEL"); v != "" {
		c.Model = v
	}
	if v := os.Getenv("OLLAMA_HOST"); v != "" {
		c.OllamaHost = v
	}
	if v := os.Getenv("OLLAMA_TEMPERATURE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Temperature = f
		}
	}
	if v := os.Getenv("AI_HEALING_CONFIDENCE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.LowConfidenceThreshold = f
		}
	}
	if v := os.Getenv("AI_HEALING_CONTEXT_WINDOW"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.ContextWindow = n
		}
	}
	if v := os.Getenv("AI_HEALING_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.RequestTimeout = d
		}
	}
	if v := os.Getenv("VISUAL_TOLERANCE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.VisualTolerance = f
		}
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.DatabaseURL = v
	}
}

func (c *Config) validate() error {
	if c.LowConfidenceThreshold < 0 || c.LowConfidenceThreshold > 1 {
		return fmt.Errorf("low_confidence_threshold must be in [0,1], got %v", c.LowConfidenceThreshold)
	}
	if c.VisualTolerance < 0 || c.VisualTolerance > 1 {
		return fmt.Errorf("visual_tolerance must be in [0,1], got %v", c.VisualTolerance)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be >= 0, got %d", c.MaxRetries)
	}
	if c.ContextWindow <= 0 {
		return fmt.Errorf("context_window must be positive, got %d", c.ContextWindow)
	}
	return nil
}
