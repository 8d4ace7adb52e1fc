package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"gigalert/internal/model"
)

// PostgresStore keeps the sent log in Postgres. The unique index on
// (recipient_id, fingerprint) plus ON CONFLICT DO NOTHING gives MarkSent
// its insert-if-absent guarantee even across overlapping processes.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to databaseURL and ensures the sent_job
// table exists.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	schema := `CREATE TABLE IF NOT EXISTS sent_job (
		recipient_id BIGINT NOT NULL,
		fingerprint  TEXT NOT NULL,
		sent_at      TIMESTAMP WITHOUT TIME ZONE DEFAULT (NOW() AT TIME ZONE 'UTC'),
		PRIMARY KEY (recipient_id, fingerprint)
	)`
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating sent_job table: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// AlreadySent returns true if the (recipient, fingerprint) pair has been
// recorded.
func (s *PostgresStore) AlreadySent(ctx context.Context, recipientID int64, fingerprint string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM sent_job WHERE recipient_id = $1 AND fingerprint = $2)",
		recipientID, fingerprint,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking sent status for %d/%s: %w", recipientID, fingerprint, err)
	}
	return exists, nil
}

// MarkSent records the pair, returning true only for a fresh insert.
func (s *PostgresStore) MarkSent(ctx context.Context, recipientID int64, fingerprint string) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		"INSERT INTO sent_job (recipient_id, fingerprint) VALUES ($1, $2) ON CONFLICT DO NOTHING",
		recipientID, fingerprint,
	)
	if err != nil {
		return false, fmt.Errorf("marking %d/%s as sent: %w", recipientID, fingerprint, err)
	}
	return tag.RowsAffected() > 0, nil
}

// Prune deletes sent-log entries older than the given duration.
func (s *PostgresStore) Prune(ctx context.Context, olderThan time.Duration) error {
	cutoff := time.Now().UTC().Add(-olderThan)
	_, err := s.pool.Exec(ctx, "DELETE FROM sent_job WHERE sent_at < $1", cutoff)
	if err != nil {
		return fmt.Errorf("pruning sent log older than %v: %w", olderThan, err)
	}
	return nil
}

// RecentSent returns the newest entries of the sent log, newest first.
func (s *PostgresStore) RecentSent(ctx context.Context, limit int) ([]model.SentRecord, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT recipient_id, fingerprint, sent_at FROM sent_job ORDER BY sent_at DESC LIMIT $1",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing sent log: %w", err)
	}
	defer rows.Close()

	var out []model.SentRecord
	for rows.Next() {
		var rec model.SentRecord
		if err := rows.Scan(&rec.RecipientID, &rec.Fingerprint, &rec.SentAt); err != nil {
			return nil, fmt.Errorf("scanning sent log row: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}
