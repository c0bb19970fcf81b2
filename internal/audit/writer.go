package audit

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NoopWriter discards every event. It backs deployments where
// DATABASE_URL is unset — audit is disabled entirely per spec.md §6.
type NoopWriter struct{}

func (NoopWriter) Write(context.Context, Event) error { return nil }

// PostgresWriter persists audit events to an append-only table.
type PostgresWriter struct {
	pool *pgxpool.Pool
}

// NewPostgresWriter creates a writer against an existing pool and
// ensures the audit_events table exists.
func NewPostgresWriter(ctx context.Context, pool *pgxpool.Pool) (*PostgresWriter, error) {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS audit_events (
			id          TEXT PRIMARY KEY,
			kind        TEXT NOT NULL,
			request_id  TEXT NOT NULL DEFAULT '',
			job_id      TEXT NOT NULL DEFAULT '',
			user_id     TEXT NOT NULL DEFAULT '',
			details     JSONB NOT NULL DEFAULT '{}',
			occurred_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_audit_events_job ON audit_events (job_id);
		CREATE INDEX IF NOT EXISTS idx_audit_events_occurred ON audit_events (occurred_at);
	`)
	if err != nil {
		return nil, err
	}
	return &PostgresWriter{pool: pool}, nil
}

func (w *PostgresWriter) Write(ctx context.Context, event Event) error {
	details, err := json.Marshal(event.Details)
	if err != nil {
		return err
	}
	_, err = w.pool.Exec(ctx, `
		INSERT INTO audit_events (id, kind, request_id, job_id, user_id, details, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`, event.ID, string(event.Kind), event.RequestID, event.JobID, event.UserID, details, event.OccurredAt)
	return err
}
