// Package store records per-slot finalizer outcomes in a run ledger.
//
// Hybrid vault: Postgres when a database URL is configured, otherwise a local SQLite
// file, otherwise nothing.
package store

import (
	"context"
	"time"

	"filing_tasks/pkg/core/config"
)

// Outcome is the final state of one (row, slot) in one run.
type Outcome struct {
	RunID      string
	TaskID     string
	Slot       int
	URL        string
	Status     string
	Reason     string
	Filename   string
	Checksum   string
	RecordedAt time.Time
}

// Ledger persists outcomes.
type Ledger interface {
	Record(ctx context.Context, o Outcome) error
	Close() error
}

const createOutcomesTable = `
CREATE TABLE IF NOT EXISTS finalize_outcomes (
	run_id      TEXT NOT NULL,
	task_id     TEXT NOT NULL,
	slot        INTEGER NOT NULL,
	url         TEXT NOT NULL,
	status      TEXT NOT NULL,
	reason      TEXT NOT NULL,
	filename    TEXT NOT NULL,
	checksum    TEXT NOT NULL,
	recorded_at TIMESTAMP NOT NULL
)`

// Open picks the ledger backend from cfg.
func Open(ctx context.Context, cfg config.LedgerConfig) (Ledger, error) {
	switch {
	case cfg.DatabaseURL != "":
		return OpenPostgres(ctx, cfg.DatabaseURL)
	case cfg.SQLitePath != "":
		return OpenSQLite(ctx, cfg.SQLitePath)
	default:
		return NopLedger{}, nil
	}
}

// NopLedger discards outcomes.
type NopLedger struct{}

func (NopLedger) Record(context.Context, Outcome) error { return nil }
func (NopLedger) Close() error                          { return nil }
