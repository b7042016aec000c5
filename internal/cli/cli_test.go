package cli

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-while/go-pugblog/internal/config"
	"github.com/go-while/go-pugblog/internal/database"
)

// run executes the root command against a throwaway database
func run(t *testing.T, dbURL, stdin string, args ...string) error {
	t.Helper()
	rootCmd.SetArgs(append([]string{"--config", filepath.Join(t.TempDir(), "none.yaml"), "--database-url", dbURL}, args...))
	rootCmd.SetIn(strings.NewReader(stdin))
	return rootCmd.Execute()
}

func openCLITestDB(t *testing.T, dbURL string) *database.Database {
	t.Helper()
	dbcfg := database.DefaultDBConfig()
	dbcfg.URL = dbURL
	db, err := database.OpenDatabase(dbcfg)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Shutdown() })
	return db
}

func TestDBConfig(t *testing.T) {
	wal := false
	c := config.NewDefaultConfig()
	c.Database.URL = "postgres://localhost/blog"
	c.Database.MaxOpenConns = 7
	c.Database.WALMode = &wal

	got := dbConfig(c)
	if got.URL != c.Database.URL || got.MaxOpenConns != 7 || got.WALMode {
		t.Errorf("dbConfig() = %+v", got)
	}
	if got.MaxIdleConns != 5 {
		t.Errorf("MaxIdleConns = %d, want 5", got.MaxIdleConns)
	}
	if got.SessionTimeout != config.DefaultSessionTimeout {
		t.Errorf("SessionTimeout = %v", got.SessionTimeout)
	}
}

func TestManagementCommands(t *testing.T) {
	dbURL := "sqlite://" + filepath.Join(t.TempDir(), "cli.sq3")

	if err := run(t, dbURL, "", "migrate"); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	if err := run(t, dbURL, "tangerine-skyline-42\n", "createsuperuser", "--username", "root", "--password-stdin"); err != nil {
		t.Fatalf("createsuperuser: %v", err)
	}
	if err := run(t, dbURL, "123\n", "createsuperuser", "--username", "weak", "--password-stdin"); err == nil {
		t.Errorf("createsuperuser accepted a weak password")
	}

	if err := run(t, dbURL, "", "registration", "disable"); err != nil {
		t.Fatalf("registration disable: %v", err)
	}
	if err := run(t, dbURL, "", "seed"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := run(t, dbURL, "", "users", "delete", "nobody"); err == nil {
		t.Errorf("deleting a missing user succeeded")
	}

	db := openCLITestDB(t, dbURL)
	root, err := db.GetUserByUsername("root")
	if err != nil || !root.IsSuperuser || !root.IsStaff {
		t.Fatalf("root = %+v, err = %v", root, err)
	}
	if !database.CheckPassword(root.PasswordHash, "tangerine-skyline-42") {
		t.Errorf("stored password does not match")
	}
	if _, err := db.GetUserByUsername("weak"); err == nil {
		t.Errorf("weak user was created")
	}
	if enabled, _ := db.IsRegistrationEnabled(); enabled {
		t.Errorf("registration still enabled")
	}
	if n, _ := db.CountPosts(); n != int64(len(database.SamplePosts)) {
		t.Errorf("CountPosts() = %d", n)
	}
}
