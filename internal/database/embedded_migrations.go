package database

import (
	"embed"
	"fmt"
	"io/fs"
	"log"
	"path"
	"sort"
	"strconv"
	"strings"
)

// Migrations are named NNNN_<dialect>_description.sql; each dialect keeps its
// own numbered series.
//
//go:embed migrations/*.sql
var EmbeddedMigrationsFS embed.FS

// MigrationFile represents a migration file with its metadata
type MigrationFile struct {
	FileName    string
	Version     int
	Dialect     Dialect
	Description string
	FilePath    string
}

// getEmbeddedMigrationFiles returns the migrations for one dialect, sorted by version
func getEmbeddedMigrationFiles(dialect Dialect) ([]*MigrationFile, error) {
	files, err := fs.ReadDir(EmbeddedMigrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded migrations directory: %w", err)
	}

	var migrations []*MigrationFile
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".sql") {
			continue
		}
		migration, err := parseMigrationFileName(f.Name())
		if err != nil {
			log.Printf("[DB]: skipping invalid embedded migration file %s: %v", f.Name(), err)
			continue
		}
		if migration.Dialect != dialect {
			continue
		}
		migrations = append(migrations, migration)
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// parseMigrationFileName parses a migration file name to extract metadata
func parseMigrationFileName(fileName string) (*MigrationFile, error) {
	if !strings.HasSuffix(fileName, ".sql") {
		return nil, fmt.Errorf("migration file must have .sql extension: %s", fileName)
	}
	parts := strings.SplitN(strings.TrimSuffix(fileName, ".sql"), "_", 3)
	if len(parts) < 3 {
		return nil, fmt.Errorf("invalid migration file name format: %s (expected format: 0001_dialect_description.sql)", fileName)
	}

	version, err := strconv.Atoi(parts[0])
	if err != nil {
		return nil, fmt.Errorf("invalid version number in migration file: %s", fileName)
	}

	var dialect Dialect
	switch parts[1] {
	case "sqlite":
		dialect = DialectSQLite
	case "postgres":
		dialect = DialectPostgres
	default:
		return nil, fmt.Errorf("unknown migration dialect in filename %s: %s", fileName, parts[1])
	}

	return &MigrationFile{
		FileName:    fileName,
		Version:     version,
		Dialect:     dialect,
		Description: parts[2],
		FilePath:    path.Join("migrations", fileName),
	}, nil
}

// readEmbeddedMigrationContent reads the content of an embedded migration file
func readEmbeddedMigrationContent(migration *MigrationFile) (string, error) {
	content, err := fs.ReadFile(EmbeddedMigrationsFS, migration.FilePath)
	if err != nil {
		return "", fmt.Errorf("failed to read embedded migration file %s: %w", migration.FilePath, err)
	}
	return string(content), nil
}

// splitStatements splits a migration on semicolons that end a line and drops
// comment-only chunks. Migrations must not contain semicolons inside literals.
func splitStatements(content string) []string {
	var stmts []string
	var cur strings.Builder
	flush := func() {
		stmt := strings.TrimSpace(cur.String())
		cur.Reset()
		if stmt == "" {
			return
		}
		for _, line := range strings.Split(stmt, "\n") {
			line = strings.TrimSpace(line)
			if line != "" && !strings.HasPrefix(line, "--") {
				stmts = append(stmts, stmt)
				return
			}
		}
	}
	for _, line := range strings.Split(content, "\n") {
		cur.WriteString(line)
		cur.WriteByte('\n')
		if strings.HasSuffix(strings.TrimSpace(line), ";") {
			flush()
		}
	}
	flush()
	return stmts
}
