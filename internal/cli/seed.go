package cli

import (
	"fmt"

	"github.com/go-while/go-pugblog/internal/database"
	"github.com/spf13/cobra"
)

var seedOpts = database.DefaultSeedOptions()

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the admin account, the demo user and the sample posts",
	Long: `seed does what /setup-portfolio/ does, without exposing a route:
it creates the admin superuser, the demo user and three sample posts
authored by the demo user. Existing accounts and posts are left alone.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Shutdown()

		res, err := db.SeedPortfolio(seedOpts)
		if err != nil {
			return err
		}
		fmt.Println(database.SeedDoneMessage)
		fmt.Printf("%d users and %d posts created.\n", res.UsersCreated, res.PostsCreated)
		return nil
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedOpts.AdminUsername, "admin-username", seedOpts.AdminUsername, "admin account name")
	seedCmd.Flags().StringVar(&seedOpts.AdminPassword, "admin-password", seedOpts.AdminPassword, "admin account password")
	seedCmd.Flags().StringVar(&seedOpts.DemoUsername, "demo-username", seedOpts.DemoUsername, "demo account name")
	seedCmd.Flags().StringVar(&seedOpts.DemoPassword, "demo-password", seedOpts.DemoPassword, "demo account password")
}
