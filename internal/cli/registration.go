package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var registrationCmd = &cobra.Command{
	Use:       "registration [enable|disable]",
	Short:     "Show or switch the public signup form",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"enable", "disable"},
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Shutdown()

		if len(args) == 1 {
			var enable bool
			switch args[0] {
			case "enable":
				enable = true
			case "disable":
			default:
				return fmt.Errorf("unknown argument %q, want enable or disable", args[0])
			}
			if err := db.SetRegistrationEnabled(enable); err != nil {
				return fmt.Errorf("failed to update registration: %w", err)
			}
		}

		enabled, err := db.IsRegistrationEnabled()
		if err != nil {
			return err
		}
		if enabled {
			fmt.Println("Registration is enabled.")
		} else {
			fmt.Println("Registration is disabled.")
		}
		return nil
	},
}
