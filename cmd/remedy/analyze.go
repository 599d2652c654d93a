package remedy

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kamilpajak/remedy/internal/config"
	"github.com/kamilpajak/remedy/internal/database"
	"github.com/kamilpajak/remedy/internal/healing"
	"github.com/kamilpajak/remedy/internal/ollama"
	"github.com/kamilpajak/remedy/pkg/models"
)

var analyzeVerbose bool

var analyzeCmd = &cobra.Command{
	Use:   "analyze <context.json>",
	Short: "Run the healing pipeline on a captured failure context",
	Long: `Analyze a failure context captured by the harness.

The context file is the JSON snapshot the runner writes on terminal failure.
The model is queried, the response parsed, and a healing report persisted.

Examples:
  remedy analyze test_artifacts/contexts/test_login_valid.json
  remedy analyze ctx.json --config ci/remedy.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().BoolVarP(&analyzeVerbose, "verbose", "v", false, "Show pipeline debug logging")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read context file: %w", err)
	}
	var fc models.FailureContext
	if err := json.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse context file: %w", err)
	}
	if fc.TestID == "" || fc.ErrorMessage == "" {
		return fmt.Errorf("context file must carry test_id and error_message")
	}

	log := newLogger(analyzeVerbose)
	defer log.Sync()

	svc, cleanup, err := buildService(cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout+30*time.Second)
	defer cancel()

	stopSpinner := startSpinner(fmt.Sprintf("Querying model %s...", cfg.Model))
	path, err := svc.Heal(ctx, &fc)
	stopSpinner()
	if err != nil {
		return fmt.Errorf("healing pipeline failed: %w", err)
	}

	printHealingSummary(&fc, cfg.Model, path)
	return nil
}

// buildService wires the pipeline from config: model client, optional
// history store, report writer.
func buildService(cfg *config.Config, log *zap.Logger) (*healing.Service, func(), error) {
	client := ollama.New(ollama.Options{
		Host:        cfg.OllamaHost,
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		Timeout:     cfg.RequestTimeout,
		MaxRetries:  cfg.MaxRetries,
		Backoff:     cfg.RetryBackoff,
		Logger:      log,
	})

	cleanup := func() {}
	var history healing.History
	if cfg.DatabaseURL != "" {
		db, err := database.New(context.Background(), cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect history store: %w", err)
		}
		history = db
		cleanup = db.Close
	}

	svc := healing.NewService(healing.ServiceOptions{
		Enabled:       true,
		Client:        client,
		ScreenshotDir: cfg.ScreenshotDir,
		ReportDir:     cfg.ReportDir,
		ContextWindow: cfg.ContextWindow,
		LowThreshold:  cfg.LowConfidenceThreshold,
		History:       history,
		Logger:        log,
	})
	return svc, cleanup, nil
}

func printHealingSummary(fc *models.FailureContext, model, reportPath string) {
	bold := color.New(color.Bold)
	bold.Println("AI HEALING:", fc.TestID)
	fmt.Printf("  Model:  %s\n", model)
	fmt.Printf("  Error:  %s\n", fc.ErrorMessage)
	fmt.Printf("  Report: %s\n", reportPath)
}

// startSpinner shows a spinner on stderr while the model call is in flight.
// No-op when stderr is not a terminal.
func startSpinner(msg string) func() {
	if !isatty.IsTerminal(os.Stderr.Fd()) {
		fmt.Fprintln(os.Stderr, msg)
		return func() {}
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	s.Suffix = " " + msg
	s.Start()
	return s.Stop
}

func newLogger(verbose bool) *zap.Logger {
	if !verbose {
		return zap.NewNop()
	}
	log, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return log
}
