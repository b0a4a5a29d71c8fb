package source

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/obsidianstack/funnelstack/pkg/types"
)

// DefaultQuery selects the stages in funnel order.
const DefaultQuery = `SELECT label, count, acv FROM stages ORDER BY position`

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS stages (
	position INTEGER PRIMARY KEY,
	label    TEXT NOT NULL UNIQUE,
	count    INTEGER NOT NULL DEFAULT 0,
	acv      REAL NOT NULL DEFAULT 0
);
`

// SQLite reads stages from a SQLite database. The connection pool is opened
// once; the query runs on every call.
type SQLite struct {
	db    *sqlx.DB
	query string
}

// OpenSQLite opens the database at dsn. An empty query uses DefaultQuery.
func OpenSQLite(dsn, query string) (*SQLite, error) {
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("source: open sqlite %q: %w", dsn, err)
	}
	if query == "" {
		query = DefaultQuery
	}
	return &SQLite{db: db, query: query}, nil
}

// Stages runs the configured query.
func (s *SQLite) Stages(ctx context.Context) ([]types.StageRecord, error) {
	var stages []types.StageRecord
	if err := s.db.SelectContext(ctx, &stages, s.query); err != nil {
		return nil, unavailable("query stages: %v", err)
	}
	return stages, nil
}

// Close closes the underlying connection pool.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Import replaces the contents of the stages table at dsn with stages, keeping
// their order. The schema is created if missing.
func Import(ctx context.Context, dsn string, stages []types.StageRecord) error {
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("source: open sqlite %q: %w", dsn, err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("source: create schema: %w", err)
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("source: begin import: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM stages`); err != nil {
		return fmt.Errorf("source: clear stages: %w", err)
	}
	for i, st := range stages {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO stages (position, label, count, acv) VALUES (?, ?, ?, ?)`,
			i, st.Label, st.Count, st.ACV)
		if err != nil {
			return fmt.Errorf("source: insert stage %q: %w", st.Label, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("source: commit import: %w", err)
	}
	return nil
}
