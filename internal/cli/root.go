// Package cli implements the pugblog command line: the web server plus the
// management commands that operate on its database.
package cli

import (
	"fmt"

	"github.com/go-while/go-pugblog/internal/config"
	"github.com/go-while/go-pugblog/internal/database"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	cfg     *config.MainConfig
	flags   config.Flags
)

var rootCmd = &cobra.Command{
	Use:   "pugblog",
	Short: "A small multi-user blog",
	Long: `pugblog serves a blog where registered users write posts that everyone
can read. Only the author of a post may edit or delete it.

Configuration comes from the YAML file given with --config, then from the
environment (SECRET_KEY, DEBUG, DATABASE_URL, PORT, ALLOWED_HOSTS,
STATIC_DIR, ENABLE_SETUP_ROUTE), then from command line flags.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "version" {
			return nil
		}

		var err error
		cfg, err = config.LoadOrDefault(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg.AppVersion = config.AppVersion
		cfg.ApplyEnv()
		cfg.ApplyFlags(&flags)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("pugblog %s\n", config.AppVersion)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "pugblog.yaml", "config file path")
	rootCmd.PersistentFlags().StringVar(&flags.DatabaseURL, "database-url", "", "database URL (sqlite://path or postgres://...)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(createSuperuserCmd)
	rootCmd.AddCommand(usersCmd)
	rootCmd.AddCommand(registrationCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(versionCmd)
}

func SetVersion(v string) {
	config.AppVersion = v
}

func Execute() error {
	return rootCmd.Execute()
}

// dbConfig maps the loaded settings onto the database layer
func dbConfig(c *config.MainConfig) *database.DBConfig {
	dbcfg := database.DefaultDBConfig()
	dbcfg.URL = c.Database.URL
	if c.Database.MaxOpenConns > 0 {
		dbcfg.MaxOpenConns = c.Database.MaxOpenConns
	}
	if c.Database.MaxIdleConns > 0 {
		dbcfg.MaxIdleConns = c.Database.MaxIdleConns
	}
	if c.Database.WALMode != nil {
		dbcfg.WALMode = *c.Database.WALMode
	}
	dbcfg.SessionTimeout = c.Web.GetSessionTimeout()
	return dbcfg
}

// openDB opens the configured database and applies pending migrations
func openDB() (*database.Database, error) {
	db, err := database.OpenDatabase(dbConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}
