package database

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const migrationsDir = "migrations"

// Migrate runs a goose command (up, down, status, ...) against the embedded migrations.
// The SQL is kept portable so the same files serve PostgreSQL and the SQLite test databases.
func Migrate(db *sql.DB, dialect, command string, args ...string) error {
	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("goose dialect %q: %w", dialect, err)
	}

	if err := goose.Run(command, db, migrationsDir, args...); err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}

// Version reports the latest applied migration.
func Version(db *sql.DB, dialect string) (int64, error) {
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect(dialect); err != nil {
		return 0, fmt.Errorf("goose dialect %q: %w", dialect, err)
	}
	return goose.GetDBVersion(db)
}
