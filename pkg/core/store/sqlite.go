package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteLedger writes outcomes to a local database file.
type SQLiteLedger struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the ledger file at path.
func OpenSQLite(ctx context.Context, path string) (*SQLiteLedger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure ledger: %w", err)
	}
	if _, err := db.ExecContext(ctx, createOutcomesTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create finalize_outcomes: %w", err)
	}
	return &SQLiteLedger{db: db}, nil
}

// Record inserts one outcome.
func (l *SQLiteLedger) Record(ctx context.Context, o Outcome) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO finalize_outcomes (run_id, task_id, slot, url, status, reason, filename, checksum, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.RunID, o.TaskID, o.Slot, o.URL, o.Status, o.Reason, o.Filename, o.Checksum, o.RecordedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to record outcome: %w", err)
	}
	return nil
}

// CountByStatus summarizes one run.
func (l *SQLiteLedger) CountByStatus(ctx context.Context, runID string) (map[string]int, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM finalize_outcomes WHERE run_id = ? GROUP BY status`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// Close closes the database.
func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}
