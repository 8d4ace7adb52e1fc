package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"gigalert/internal/model"
)

// SQLiteStore keeps the sent log in a SQLite database. The primary key
// on (recipient_id, fingerprint) gives MarkSent its insert-if-absent
// guarantee.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and
// ensures the sent_job table exists.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// SQLite allows one writer at a time; a single pooled connection
	// avoids SQLITE_BUSY under concurrent MarkSent calls.
	db.SetMaxOpenConns(1)

	// Verify the connection is alive.
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}

	createTable := `CREATE TABLE IF NOT EXISTS sent_job (
		recipient_id INTEGER NOT NULL,
		fingerprint  TEXT NOT NULL,
		sent_at      DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (recipient_id, fingerprint)
	)`
	if _, err := db.Exec(createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating sent_job table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// AlreadySent returns true if the (recipient, fingerprint) pair has been
// recorded.
func (s *SQLiteStore) AlreadySent(ctx context.Context, recipientID int64, fingerprint string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM sent_job WHERE recipient_id = ? AND fingerprint = ?",
		recipientID, fingerprint,
	).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking sent status for %d/%s: %w", recipientID, fingerprint, err)
	}
	return true, nil
}

// MarkSent records the pair, returning true only for a fresh insert.
// Concurrent or retried calls for the same pair see false, never an
// error.
func (s *SQLiteStore) MarkSent(ctx context.Context, recipientID int64, fingerprint string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO sent_job (recipient_id, fingerprint) VALUES (?, ?)",
		recipientID, fingerprint,
	)
	if err != nil {
		return false, fmt.Errorf("marking %d/%s as sent: %w", recipientID, fingerprint, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("marking %d/%s as sent: %w", recipientID, fingerprint, err)
	}
	return n > 0, nil
}

// Prune deletes sent-log entries older than the given duration.
func (s *SQLiteStore) Prune(ctx context.Context, olderThan time.Duration) error {
	cutoff := time.Now().UTC().Add(-olderThan)
	_, err := s.db.ExecContext(ctx, "DELETE FROM sent_job WHERE sent_at < ?", cutoff)
	if err != nil {
		return fmt.Errorf("pruning sent log older than %v: %w", olderThan, err)
	}
	return nil
}

// RecentSent returns the newest entries of the sent log, newest first.
func (s *SQLiteStore) RecentSent(ctx context.Context, limit int) ([]model.SentRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT recipient_id, fingerprint, sent_at FROM sent_job ORDER BY sent_at DESC LIMIT ?",
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

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
