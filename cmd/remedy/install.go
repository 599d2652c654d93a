package remedy

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kamilpajak/remedy/internal/browser"
)

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install Playwright browsers",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := browser.Install(); err != nil {
			return fmt.Errorf("browser install failed: %w", err)
		}
		fmt.Println("Playwright browsers installed.")
		return nil
	},
}
