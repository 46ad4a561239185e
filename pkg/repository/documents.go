package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/dskvich/brahmos-bot/pkg/database"
	"github.com/dskvich/brahmos-bot/pkg/domain"
)

// Document persists one named JSON value as a whole.
// Load returns domain.ErrNotFound when nothing was saved yet.
type Document interface {
	Name() string
	Load(ctx context.Context, v any) error
	Save(ctx context.Context, v any) error
}

type sqlDocument struct {
	db      *sql.DB
	dialect database.Dialect
	name    string
}

// NewSQLDocument stores the document as a row of the documents table.
func NewSQLDocument(db *sql.DB, dialect database.Dialect, name string) *sqlDocument {
	return &sqlDocument{db: db, dialect: dialect, name: name}
}

func (d *sqlDocument) Name() string { return d.name }

func (d *sqlDocument) Load(ctx context.Context, v any) error {
	query := `
		SELECT body
		FROM documents
		WHERE name = $1
	`
	if d.dialect == database.SQLite {
		query = `SELECT body FROM documents WHERE name = ?`
	}

	var body string
	if err := d.db.QueryRowContext(ctx, query, d.name).Scan(&body); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("fetching document %s: %w", d.name, err)
	}

	if err := json.Unmarshal([]byte(body), v); err != nil {
		return fmt.Errorf("decoding document %s: %w", d.name, err)
	}

	return nil
}

func (d *sqlDocument) Save(ctx context.Context, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding document %s: %w", d.name, err)
	}

	query := `
		INSERT INTO documents (name, body, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (name)
		DO UPDATE SET
			body = EXCLUDED.body,
			updated_at = EXCLUDED.updated_at
	`
	if d.dialect == database.SQLite {
		query = `
			INSERT INTO documents (name, body, updated_at)
			VALUES (?, ?, ?)
			ON CONFLICT (name)
			DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at
		`
	}

	if _, err := d.db.ExecContext(ctx, query, d.name, string(body), time.Now().UTC()); err != nil {
		return fmt.Errorf("saving document %s: %w", d.name, err)
	}

	return nil
}
