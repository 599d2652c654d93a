package remedy

import (
	"context"
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kamilpajak/remedy/internal/browser"
	"github.com/kamilpajak/remedy/internal/ollama"
)

var doctorVerbose bool

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that the inference service and browsers are ready",
	RunE:  runDoctor,
}

func init() {
	doctorCmd.Flags().BoolVarP(&doctorVerbose, "verbose", "v", false, "Show warmup debug logging")
}

func runDoctor(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ok := true

	if browser.IsAvailable() {
		color.Green("✓ Playwright browsers installed")
	} else {
		color.Red("✗ Playwright browsers missing (run: remedy install)")
		ok = false
	}

	log := newLogger(doctorVerbose)
	defer log.Sync()

	client := ollama.New(ollama.Options{
		Host:        cfg.OllamaHost,
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		Timeout:     cfg.RequestTimeout,
		Logger:      log,
	})

	stop := startSpinner(fmt.Sprintf("Warming up %s on %s...", cfg.Model, cfg.OllamaHost))
	err = client.EnsureReady(context.Background(), cfg.WarmupTimeout)
	stop()

	switch {
	case err == nil:
		color.Green("✓ Model %s is loaded and ready on %s", cfg.Model, cfg.OllamaHost)
	case errors.Is(err, ollama.ErrModelNotLoaded):
		color.Red("✗ Model not loaded: %v", err)
		fmt.Printf("  Pull it with: ollama pull %s\n", cfg.Model)
		ok = false
	case errors.Is(err, ollama.ErrServiceUnavailable):
		color.Red("✗ Ollama unreachable at %s: %v", cfg.OllamaHost, err)
		fmt.Println("  Start it with: ollama serve")
		ok = false
	default:
		color.Red("✗ %v", err)
		ok = false
	}

	if !ok {
		return fmt.Errorf("environment is not ready")
	}
	return nil
}
