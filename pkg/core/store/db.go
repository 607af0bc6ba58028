package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresLedger writes outcomes through a pgx connection pool.
type PostgresLedger struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to dbURL and ensures the outcomes table exists.
func OpenPostgres(ctx context.Context, dbURL string) (*PostgresLedger, error) {
	config, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if _, err := pool.Exec(ctx, createOutcomesTable); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create finalize_outcomes: %w", err)
	}
	return &PostgresLedger{pool: pool}, nil
}

// Record inserts one outcome.
func (l *PostgresLedger) Record(ctx context.Context, o Outcome) error {
	query := `
		INSERT INTO finalize_outcomes (run_id, task_id, slot, url, status, reason, filename, checksum, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := l.pool.Exec(ctx, query, o.RunID, o.TaskID, o.Slot, o.URL, o.Status, o.Reason, o.Filename, o.Checksum, o.RecordedAt)
	if err != nil {
		return fmt.Errorf("failed to record outcome: %w", err)
	}
	return nil
}

// Close closes the pool.
func (l *PostgresLedger) Close() error {
	l.pool.Close()
	return nil
}
