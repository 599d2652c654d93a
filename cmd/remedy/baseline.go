package remedy

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kamilpajak/remedy/internal/visual"
)

var resetAll bool

var baselineCmd = &cobra.Command{
	Use:   "baseline",
	Short: "Manage visual regression baselines",
}

var baselineListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored baselines",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store := visual.NewBaselineStore(cfg.BaselineDir)

		names, err := store.List()
		if err != nil {
			return err
		}
		if len(names) == 0 {
			fmt.Println("No baselines stored.")
			return nil
		}
		for _, name := range names {
			fmt.Println(name)
		}
		return nil
	},
}

var baselineResetCmd = &cobra.Command{
	Use:   "reset [name]",
	Short: "Remove a baseline so the next comparison recreates it",
	Long: `Remove a stored baseline. This is the only way a baseline is ever
replaced; comparisons never overwrite an existing one.

Examples:
  remedy baseline reset login_page
  remedy baseline reset --all`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store := visual.NewBaselineStore(cfg.BaselineDir)

		if resetAll {
			n, err := store.ResetAll()
			if err != nil {
				return err
			}
			fmt.Printf("Reset %d baselines\n", n)
			return nil
		}

		if len(args) != 1 {
			return fmt.Errorf("provide a baseline name or --all")
		}
		removed, err := store.Reset(args[0])
		if err != nil {
			return err
		}
		if !removed {
			color.Yellow("No baseline found for %q", args[0])
			return nil
		}
		fmt.Printf("Baseline reset for %q\n", args[0])
		return nil
	},
}

func init() {
	baselineResetCmd.Flags().BoolVar(&resetAll, "all", false, "Reset every baseline")
	baselineCmd.AddCommand(baselineListCmd)
	baselineCmd.AddCommand(baselineResetCmd)
}
