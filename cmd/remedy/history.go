package remedy

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kamilpajak/remedy/internal/database"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [test-id]",
	Short: "List recorded healing analyses from the history store",
	Long: `List healing analyses stored in the history database. Requires
DATABASE_URL (or database_url in the config file).`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum rows to show")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("history store not configured; set DATABASE_URL")
	}

	ctx := context.Background()
	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect history store: %w", err)
	}
	defer db.Close()

	if err := database.Migrate(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("failed to migrate history store: %w", err)
	}

	var analyses []*database.Analysis
	if len(args) == 1 {
		analyses, err = db.ListAnalysesByTest(ctx, args[0], historyLimit)
	} else {
		analyses, err = db.ListRecentAnalyses(ctx, historyLimit)
	}
	if err != nil {
		return err
	}

	if len(analyses) == 0 {
		fmt.Println("No analyses recorded.")
		return nil
	}

	for _, a := range analyses {
		when := a.CreatedAt.Format("2006-01-02 15:04:05")
		if a.Unavailable {
			color.Yellow("%s  %s  analysis unavailable", when, a.TestID)
			continue
		}
		fmt.Printf("%s  %s  confidence %.0f%%  %s\n", when, a.TestID, a.Confidence*100, a.Decision)
		if a.RootCause != "" {
			fmt.Printf("    %s\n", a.RootCause)
		}
	}
	return nil
}
