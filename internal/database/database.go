// Package database provides database abstraction and management for go-pugblog
package database

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // Postgres driver ("pgx")
	_ "github.com/mattn/go-sqlite3"    // SQLite3 driver
)

var (
	ErrPostNotFound   = errors.New("post not found")
	ErrUserNotFound   = errors.New("user not found")
	ErrUsernameTaken  = errors.New("a user with that username already exists")
	ErrInvalidSession = errors.New("invalid or expired session")

	ErrPasswordTooLong = errors.New("password is longer than 72 bytes")
)

// Dialect names the SQL flavour behind the connection
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite3"
	DialectPostgres Dialect = "postgres"
)

// Database wraps the main connection pool
type Database struct {
	mainDB   *sql.DB
	dialect  Dialect
	dbconfig *DBConfig

	stopChan chan struct{} // closed on Shutdown
	stopOnce sync.Once
}

// DBConfig represents database configuration
type DBConfig struct {
	// sqlite://path, plain file path, file: URI or postgres:// URL
	URL string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// SQLite performance settings
	WALMode   bool   // Write-Ahead Logging
	SyncMode  string // OFF, NORMAL, FULL
	CacheSize int    // KB
	TempStore string // MEMORY, FILE

	// Sliding session lifetime
	SessionTimeout time.Duration
}

// DefaultDBConfig returns default database configuration
func DefaultDBConfig() *DBConfig {
	return &DBConfig{
		URL:             "sqlite://data/pugblog.sq3",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 0, // SQLite connections don't need to be recycled
		WALMode:         true,
		SyncMode:        "NORMAL",
		CacheSize:       -16384, // -16384 == 16MB cache
		TempStore:       "MEMORY",
		SessionTimeout:  SessionTimeout,
	}
}

// OpenDatabase opens the connection pool and applies pending migrations
func OpenDatabase(dbconfig *DBConfig) (*Database, error) {
	if dbconfig == nil {
		dbconfig = DefaultDBConfig()
	}
	if dbconfig.SessionTimeout <= 0 {
		dbconfig.SessionTimeout = SessionTimeout
	}

	db := &Database{
		dbconfig: dbconfig,
		stopChan: make(chan struct{}),
	}

	if err := db.initMainDB(); err != nil {
		return nil, fmt.Errorf("failed to initialize main database: %w", err)
	}

	if err := db.Migrate(); err != nil {
		db.mainDB.Close()
		return nil, fmt.Errorf("failed to run database migrations: %w", err)
	}

	log.Printf("[DB]: database ready (dialect=%s)", db.dialect)
	return db, nil
}

// Dialect returns the SQL dialect in use
func (db *Database) Dialect() Dialect {
	return db.dialect
}

// SessionTimeout returns the sliding session lifetime
func (db *Database) SessionTimeout() time.Duration {
	return db.dbconfig.SessionTimeout
}

// IsDBshutdown reports whether Shutdown was called
func (db *Database) IsDBshutdown() bool {
	if db == nil {
		return true
	}
	select {
	case <-db.stopChan:
		return true
	default:
		return false
	}
}

// Shutdown closes the connection pool
func (db *Database) Shutdown() error {
	var err error
	db.stopOnce.Do(func() {
		close(db.stopChan)
		if db.mainDB != nil {
			err = db.mainDB.Close()
		}
		log.Printf("[DB]: database closed")
	})
	return err
}

// rebind rewrites ? placeholders to $n for Postgres
func (db *Database) rebind(query string) string {
	if db.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// exec, query and queryRowScan rebind and go through the retry helpers
func (db *Database) exec(query string, args ...interface{}) (sql.Result, error) {
	return retryableExec(db.mainDB, db.rebind(query), args...)
}

func (db *Database) query(query string, args ...interface{}) (*sql.Rows, error) {
	return retryableQuery(db.mainDB, db.rebind(query), args...)
}

func (db *Database) queryRowScan(query string, args []interface{}, dest ...interface{}) error {
	return retryableQueryRowScan(db.mainDB, db.rebind(query), args, dest...)
}

// isUniqueViolation matches the unique constraint errors of both drivers
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint failed") || // sqlite
		strings.Contains(msg, "duplicate key value") // postgres (SQLSTATE 23505)
}

// now returns the current time in UTC; all timestamps are stored in UTC so
// that text comparison in SQLite matches time order.
func now() time.Time {
	return time.Now().UTC()
}
