package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		// opening the database applies everything pending
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Shutdown()

		fmt.Printf("Database (%s) is up to date.\n", db.Dialect())
		return nil
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show migration status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Shutdown()

		states, err := db.MigrationStatus()
		if err != nil {
			return fmt.Errorf("failed to get migration status: %w", err)
		}
		if len(states) == 0 {
			fmt.Println("No migrations found.")
			return nil
		}
		for _, st := range states {
			if st.Applied && st.AppliedAt != nil {
				fmt.Printf("  ✓ %s (applied %s)\n", st.FileName, st.AppliedAt.Format("2006-01-02 15:04:05"))
			} else {
				fmt.Printf("  ○ %s\n", st.FileName)
			}
		}
		return nil
	},
}

func init() {
	migrateCmd.AddCommand(migrateStatusCmd)
}
