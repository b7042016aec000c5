package database

import (
	"database/sql"
	"fmt"
	"log"
	"net/url"
	"path/filepath"
	"strings"
)

// parseDatabaseURL splits a database URL into dialect, driver name and DSN.
// Accepted forms: postgres://..., postgresql://..., sqlite://path, sqlite3://path,
// file:path?params and a bare file path.
func parseDatabaseURL(raw string) (dialect Dialect, driver string, dsn string, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", "", "", fmt.Errorf("empty database url")
	}
	lower := strings.ToLower(raw)
	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return DialectPostgres, "pgx", raw, nil
	case strings.HasPrefix(lower, "sqlite3://"):
		return DialectSQLite, "sqlite3", raw[len("sqlite3://"):], nil
	case strings.HasPrefix(lower, "sqlite://"):
		return DialectSQLite, "sqlite3", raw[len("sqlite://"):], nil
	case strings.Contains(lower, "://"):
		return "", "", "", fmt.Errorf("unsupported database url scheme: %s", raw)
	}
	return DialectSQLite, "sqlite3", raw, nil
}

// sqliteDSN turns a path into a go-sqlite3 DSN; connection pragmas go in the
// DSN so every pooled connection gets them, not just the first one.
func (db *Database) sqliteDSN(path string) string {
	base := path
	query := ""
	if i := strings.IndexByte(path, '?'); i >= 0 {
		base, query = path[:i], path[i+1:]
	}
	params, _ := url.ParseQuery(query)
	setDefault := func(k, v string) {
		if params.Get(k) == "" {
			params.Set(k, v)
		}
	}
	setDefault("_foreign_keys", "1")
	setDefault("_busy_timeout", "30000")
	if db.dbconfig.SyncMode != "" {
		setDefault("_synchronous", db.dbconfig.SyncMode)
	}
	if db.dbconfig.WALMode && !isMemoryPath(base) {
		setDefault("_journal_mode", "WAL")
	}
	if !strings.HasPrefix(base, "file:") {
		base = "file:" + base
	}
	return base + "?" + params.Encode()
}

func isMemoryPath(path string) bool {
	return strings.Contains(path, ":memory:") || strings.Contains(path, "mode=memory")
}

func (db *Database) initMainDB() error {
	dialect, driver, dsn, err := parseDatabaseURL(db.dbconfig.URL)
	if err != nil {
		return err
	}
	db.dialect = dialect

	maxOpen := db.dbconfig.MaxOpenConns
	if dialect == DialectSQLite {
		path := strings.TrimPrefix(strings.SplitN(dsn, "?", 2)[0], "file:")
		if isMemoryPath(dsn) {
			// every connection would see its own empty in-memory database
			maxOpen = 1
		} else if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := createDirIfNotExists(dir); err != nil {
				return fmt.Errorf("failed to create data directory: %w", err)
			}
		}
		log.Printf("[DB]: opening sqlite database at: %s", path)
		dsn = db.sqliteDSN(dsn)
	} else {
		log.Printf("[DB]: opening postgres database")
	}

	mainDB, err := sql.Open(driver, dsn)
	if err != nil {
		return fmt.Errorf("failed to open main database: %w", err)
	}

	// Configure connection pool
	if maxOpen > 0 {
		mainDB.SetMaxOpenConns(maxOpen)
	}
	if db.dbconfig.MaxIdleConns > 0 {
		idle := db.dbconfig.MaxIdleConns
		if maxOpen > 0 && idle > maxOpen {
			idle = maxOpen
		}
		mainDB.SetMaxIdleConns(idle)
	}
	mainDB.SetConnMaxLifetime(db.dbconfig.ConnMaxLifetime)

	// Test connection
	if err := mainDB.Ping(); err != nil {
		if cerr := mainDB.Close(); cerr != nil {
			return fmt.Errorf("failed to ping main database: %w; also failed to close mainDB: %v", err, cerr)
		}
		return fmt.Errorf("failed to ping main database: %w", err)
	}

	if dialect == DialectSQLite {
		if err := db.applySQLitePragmas(mainDB); err != nil {
			if cerr := mainDB.Close(); cerr != nil {
				return fmt.Errorf("failed to apply SQLite pragmas: %w; also failed to close mainDB: %v", err, cerr)
			}
			return fmt.Errorf("failed to apply SQLite pragmas: %w", err)
		}
	}

	db.mainDB = mainDB
	return nil
}

// applySQLitePragmas sets the tuning pragmas that are not part of the DSN
func (db *Database) applySQLitePragmas(conn *sql.DB) error {
	var pragmas []string
	if db.dbconfig.CacheSize != 0 {
		pragmas = append(pragmas, fmt.Sprintf("PRAGMA cache_size = %d", db.dbconfig.CacheSize))
	}
	if db.dbconfig.TempStore != "" {
		pragmas = append(pragmas, fmt.Sprintf("PRAGMA temp_store = %s", db.dbconfig.TempStore))
	}
	if db.dbconfig.WALMode {
		pragmas = append(pragmas, "PRAGMA wal_autocheckpoint = 1000")
	}

	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute pragma '%s': %w", pragma, err)
		}
	}
	return nil
}
