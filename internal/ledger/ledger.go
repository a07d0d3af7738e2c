// Package ledger keeps a Postgres record of every depot path the bridge has
// been asked to process and how its last run ended. It is informational
// only: paths are never skipped.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
)

const table = "clip_ingest_ledger"

// ErrNotFound is returned for paths the ledger has never recorded
var ErrNotFound = errors.New("path not in ledger")

// Ledger records submissions and outcomes per depot path
type Ledger struct {
	db *sql.DB
}

// New creates a ledger, migrating its table if needed
func New(ctx context.Context, db *sql.DB) (*Ledger, error) {
	l := &Ledger{db: db}
	if err := l.migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to prepare %s: %w", table, err)
	}
	slog.Info("Ledger table ready", "table", table)
	return l, nil
}

func (l *Ledger) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS clip_ingest_ledger (
			depot_path    TEXT PRIMARY KEY,
			seen_count    INTEGER NOT NULL DEFAULT 1,
			first_seen_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			last_seen_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`ALTER TABLE clip_ingest_ledger ADD COLUMN IF NOT EXISTS last_outcome TEXT NOT NULL DEFAULT ''`,
		`ALTER TABLE clip_ingest_ledger ADD COLUMN IF NOT EXISTS last_run_id TEXT NOT NULL DEFAULT ''`,
		`ALTER TABLE clip_ingest_ledger ADD COLUMN IF NOT EXISTS last_error TEXT NOT NULL DEFAULT ''`,
		`ALTER TABLE clip_ingest_ledger ADD COLUMN IF NOT EXISTS finished_at TIMESTAMPTZ`,
	}
	for _, stmt := range stmts {
		if _, err := l.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Record notes one submission of path and returns how many times it has
// been submitted, this one included.
func (l *Ledger) Record(ctx context.Context, path string) (int, error) {
	const query = `
		INSERT INTO clip_ingest_ledger (depot_path)
		VALUES ($1)
		ON CONFLICT (depot_path) DO UPDATE
		SET last_seen_at = NOW(),
		    seen_count = clip_ingest_ledger.seen_count + 1
		RETURNING seen_count`

	var seen int
	if err := l.db.QueryRowContext(ctx, query, path).Scan(&seen); err != nil {
		return 0, fmt.Errorf("failed to record %s: %w", path, err)
	}
	return seen, nil
}

// Finish stores the outcome of the latest run for path
func (l *Ledger) Finish(ctx context.Context, path, runID, outcome string, runErr error) error {
	const query = `
		UPDATE clip_ingest_ledger
		SET last_outcome = $2, last_run_id = $3, last_error = $4, finished_at = NOW()
		WHERE depot_path = $1`

	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	}
	res, err := l.db.ExecContext(ctx, query, path, outcome, runID, msg)
	if err != nil {
		return fmt.Errorf("failed to finish %s: %w", path, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finish %s: %w", path, ErrNotFound)
	}
	return nil
}
