// Package index holds collectors that persist finished assets for search.
package index

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Row is one indexed asset.
type Row struct {
	ID        string
	Document  []byte
	IndexedAt time.Time
}

// Writer persists rows into a table.
type Writer interface {
	Upsert(ctx context.Context, table string, rows []Row) error
	Close() error
}

// Opener connects a Writer for dsn.
type Opener func(ctx context.Context, dsn string) (Writer, error)

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

func validTable(name string) error {
	if !tableName.MatchString(name) {
		return fmt.Errorf("index: invalid table name %q", name)
	}
	return nil
}

func schemaSQL(table string) string {
	t := pgx.Identifier{table}.Sanitize()
	return `
CREATE TABLE IF NOT EXISTS ` + t + ` (
  id TEXT PRIMARY KEY,
  document JSONB NOT NULL,
  indexed_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);`
}

func upsertSQL(table string) string {
	t := pgx.Identifier{table}.Sanitize()
	return `
INSERT INTO ` + t + ` (id, document, indexed_at)
VALUES ($1, $2, $3)
ON CONFLICT (id)
DO UPDATE SET document=EXCLUDED.document,
  indexed_at=EXCLUDED.indexed_at`
}

// PostgresWriter writes through database/sql with the pgx driver.
type PostgresWriter struct {
	db *sql.DB

	mu      sync.Mutex
	schemas map[string]error
}

// OpenPostgres connects and pings the database.
func OpenPostgres(ctx context.Context, dsn string) (Writer, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("index: dsn is required")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresWriter{db: db, schemas: make(map[string]error)}, nil
}

// ensureSchema creates table once per writer.
func (w *PostgresWriter) ensureSchema(ctx context.Context, table string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err, ok := w.schemas[table]; ok {
		return err
	}
	_, err := w.db.ExecContext(ctx, schemaSQL(table))
	if err == nil {
		w.schemas[table] = nil
	}
	return err
}

func (w *PostgresWriter) Upsert(ctx context.Context, table string, rows []Row) error {
	if err := validTable(table); err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	if err := w.ensureSchema(ctx, table); err != nil {
		return fmt.Errorf("index: ensure schema: %w", err)
	}
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, upsertSQL(table))
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row.ID, string(row.Document), row.IndexedAt); err != nil {
			return fmt.Errorf("index: upsert %s: %w", row.ID, err)
		}
	}
	return tx.Commit()
}

func (w *PostgresWriter) Close() error {
	return w.db.Close()
}
