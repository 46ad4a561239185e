package database

import (
	"database/sql"
	"fmt"
	"log/slog"

	migrate "github.com/rubenv/sql-migrate"
	"github.com/uptrace/bun/driver/pgdriver"
	_ "modernc.org/sqlite"
)

// Dialect identifies the SQL flavour a connection speaks.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite3"
)

func migrations(dialect Dialect) *migrate.MemoryMigrationSource {
	updatedAt := "TIMESTAMPTZ NOT NULL DEFAULT NOW()"
	if dialect == SQLite {
		updatedAt = "DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP"
	}

	return &migrate.MemoryMigrationSource{
		Migrations: []*migrate.Migration{
			{
				Id: "0001_documents",
				Up: []string{`
					CREATE TABLE IF NOT EXISTS documents (
						name TEXT PRIMARY KEY,
						body TEXT NOT NULL,
						updated_at ` + updatedAt + `
					)`,
				},
				Down: []string{`DROP TABLE IF EXISTS documents`},
			},
		},
	}
}

// NewPostgres connects through the bun pgdriver and applies pending migrations.
func NewPostgres(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn is empty")
	}

	db := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	if err := applyMigrations(db, Postgres); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// NewSQLite opens a single-connection sqlite database at path and applies pending migrations.
func NewSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		db.Close()
		return nil, fmt.Errorf("configuring sqlite: %w", err)
	}

	if err := applyMigrations(db, SQLite); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func applyMigrations(db *sql.DB, dialect Dialect) error {
	n, err := migrate.Exec(db, string(dialect), migrations(dialect), migrate.Up)
	if err != nil {
		return fmt.Errorf("applying %s migrations: %w", dialect, err)
	}
	slog.Info("database migrations applied", "dialect", dialect, "count", n)
	return nil
}
