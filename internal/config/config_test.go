package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.False(t, cfg.HealingEnabled)
	assert.Equal(t, "llama3.1:8b", cfg.Model)
	assert.Equal(t, "http://localhost:11434", cfg.OllamaHost)
	assert.Equal(t, 120*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 0.7, cfg.LowConfidenceThreshold)
	assert.Equal(t, 5000, cfg.ContextWindow)
	assert.Equal(t, 0.01, cfg.VisualTolerance)
	assert.Empty(t, cfg.DatabaseURL)
}

// clearEnv blanks the override variables so host environment does not leak
// into default-value assertions.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"AI_HEALING_ENABLED", "OLLAMA_MODEL", "OLLAMA_HOST", "OLLAMA_TEMPERATURE",
		"AI_HEALING_CONFIDENCE", "AI_HEALING_CONTEXT_WINDOW", "AI_HEALING_TIMEOUT",
		"VISUAL_TOLERANCE", "DATABASE_URL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_YAMLFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "remedy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
healing_enabled: true
model: mistral:7b
request_timeout: 30s
visual_tolerance: 0.05
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.HealingEnabled)
	assert.Equal(t, "mistral:7b", cfg.Model)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 0.05, cfg.VisualTolerance)
	// Untouched keys keep their defaults.
	assert.Equal(t, 3, cfg.MaxRetries)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "remedy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("model: mistral:7b\n"), 0o644))

	t.Setenv("OLLAMA_MODEL", "qwen2.5-coder:7b")
	t.Setenv("AI_HEALING_ENABLED", "1")
	t.Setenv("AI_HEALING_CONFIDENCE", "0.85")
	t.Setenv("AI_HEALING_TIMEOUT", "45s")
	t.Setenv("DATABASE_URL", "postgres://localhost/remedy")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "qwen2.5-coder:7b", cfg.Model)
	assert.True(t, cfg.HealingEnabled)
	assert.Equal(t, 0.85, cfg.LowConfidenceThreshold)
	assert.Equal(t, 45*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "postgres://localhost/remedy", cfg.DatabaseURL)
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "remedy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("model: [unclosed"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"threshold above one", "low_confidence_threshold: 1.5\n"},
		{"negative tolerance", "visual_tolerance: -0.1\n"},
		{"negative retries", "max_retries: -1\n"},
		{"zero context window", "context_window: 0\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "remedy.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0o644))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoad_EmptyPathSkipsFile(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}
