package database

import (
	"database/sql"
	"fmt"
	"log"
	"time"
)

// MigrationState pairs a migration with its applied time, if any
type MigrationState struct {
	*MigrationFile
	Applied   bool
	AppliedAt *time.Time
}

// Migrate applies every pending migration for the current dialect
func (db *Database) Migrate() error {
	if err := db.ensureMigrationsTable(); err != nil {
		return err
	}

	migrations, err := getEmbeddedMigrationFiles(db.dialect)
	if err != nil {
		return err
	}
	applied, err := db.getAppliedMigrations()
	if err != nil {
		return err
	}

	for _, migration := range migrations {
		if _, ok := applied[migration.FileName]; ok {
			continue
		}
		if err := db.applyMigration(migration); err != nil {
			return err
		}
		log.Printf("[DB]: applied migration %s", migration.FileName)
	}
	return nil
}

// MigrationStatus lists every known migration and whether it has been applied
func (db *Database) MigrationStatus() ([]*MigrationState, error) {
	if err := db.ensureMigrationsTable(); err != nil {
		return nil, err
	}
	migrations, err := getEmbeddedMigrationFiles(db.dialect)
	if err != nil {
		return nil, err
	}
	applied, err := db.getAppliedMigrations()
	if err != nil {
		return nil, err
	}

	states := make([]*MigrationState, 0, len(migrations))
	for _, m := range migrations {
		st := &MigrationState{MigrationFile: m}
		if at, ok := applied[m.FileName]; ok {
			st.Applied = true
			at := at
			st.AppliedAt = &at
		}
		states = append(states, st)
	}
	return states, nil
}

// ensureMigrationsTable creates the schema_migrations table if it doesn't exist
func (db *Database) ensureMigrationsTable() error {
	ddl := `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename TEXT PRIMARY KEY,
		applied_at TIMESTAMP NOT NULL
	)`
	if _, err := db.mainDB.Exec(ddl); err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}
	return nil
}

// getAppliedMigrations returns applied migration filenames with their timestamps
func (db *Database) getAppliedMigrations() (map[string]time.Time, error) {
	applied := make(map[string]time.Time)

	rows, err := db.query(`SELECT filename, applied_at FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var fname string
		var at time.Time
		if err := rows.Scan(&fname, &at); err != nil {
			return nil, fmt.Errorf("failed to scan migration row: %w", err)
		}
		applied[fname] = at
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating migration rows: %w", err)
	}
	return applied, nil
}

// applyMigration runs one migration and records it in a single transaction
func (db *Database) applyMigration(migration *MigrationFile) error {
	content, err := readEmbeddedMigrationContent(migration)
	if err != nil {
		return err
	}

	record := db.rebind(`INSERT INTO schema_migrations (filename, applied_at) VALUES (?, ?)`)
	err = retryableTransactionExec(db.mainDB, func(tx *sql.Tx) error {
		for _, stmt := range splitStatements(content) {
			if _, err := tx.Exec(stmt); err != nil {
				return fmt.Errorf("failed to execute migration %s: %w", migration.FileName, err)
			}
		}
		if _, err := tx.Exec(record, migration.FileName, now()); err != nil {
			return fmt.Errorf("failed to record migration %s: %w", migration.FileName, err)
		}
		return nil
	})
	if err != nil {
		log.Printf("[DB]: migration %s failed: %v", migration.FileName, err)
	}
	return err
}
