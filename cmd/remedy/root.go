// Package remedy implements the harness CLI.
package remedy

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kamilpajak/remedy/internal/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "remedy",
	Short: "Browser-test harness with AI failure triage",
	Long: `Remedy runs browser UI tests with automated failure triage: on terminal
failure it captures forensic context, asks a locally hosted model to diagnose
the failure, and records a structured healing report. It also performs
tolerance-based visual regression against stored baselines.`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "remedy.yaml", "Path to config file")
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(baselineCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(versionCmd)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}
