// Package users reads subscriber rows for the delivery pipeline. The
// account layer owns and mutates these tables; everything here is a
// read-only snapshot.
package users

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"gigalert/internal/model"
)

// SQLiteDirectory reads recipients and their keywords from a SQLite
// database.
type SQLiteDirectory struct {
	db *sql.DB
}

// NewSQLiteDirectory opens the database at dbPath and ensures the
// subscriber tables exist (empty tables are created on first run so the
// worker can start before the account layer has provisioned anyone).
func NewSQLiteDirectory(dbPath string) (*SQLiteDirectory, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS recipient (
		id         INTEGER PRIMARY KEY,
		active     INTEGER NOT NULL DEFAULT 1,
		blocked    INTEGER NOT NULL DEFAULT 0,
		expires_at DATETIME
	);
	CREATE TABLE IF NOT EXISTS keyword (
		recipient_id INTEGER NOT NULL REFERENCES recipient(id),
		value        TEXT NOT NULL
	);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating subscriber tables: %w", err)
	}

	return &SQLiteDirectory{db: db}, nil
}

// ListEligible returns active, unblocked, unexpired recipients with
// their keyword sets.
func (d *SQLiteDirectory) ListEligible(ctx context.Context) ([]model.Recipient, error) {
	rows, err := d.db.QueryContext(ctx,
		"SELECT id, active, blocked, expires_at FROM recipient",
	)
	if err != nil {
		return nil, fmt.Errorf("querying recipients: %w", err)
	}
	defer rows.Close()

	byID := make(map[int64]*model.Recipient)
	var order []int64
	for rows.Next() {
		var r model.Recipient
		var expires sql.NullTime
		if err := rows.Scan(&r.ID, &r.Active, &r.Blocked, &expires); err != nil {
			return nil, fmt.Errorf("scanning recipient row: %w", err)
		}
		if expires.Valid {
			t := expires.Time
			r.ExpiresAt = &t
		}
		byID[r.ID] = &r
		order = append(order, r.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading recipients: %w", err)
	}

	kwRows, err := d.db.QueryContext(ctx, "SELECT recipient_id, value FROM keyword")
	if err != nil {
		return nil, fmt.Errorf("querying keywords: %w", err)
	}
	defer kwRows.Close()

	for kwRows.Next() {
		var id int64
		var value string
		if err := kwRows.Scan(&id, &value); err != nil {
			return nil, fmt.Errorf("scanning keyword row: %w", err)
		}
		if r, ok := byID[id]; ok {
			r.Keywords = append(r.Keywords, value)
		}
	}
	if err := kwRows.Err(); err != nil {
		return nil, fmt.Errorf("reading keywords: %w", err)
	}

	now := time.Now()
	out := make([]model.Recipient, 0, len(order))
	for _, id := range order {
		if r := byID[id]; r.Eligible(now) {
			out = append(out, *r)
		}
	}
	return out, nil
}

// Close closes the underlying database connection.
func (d *SQLiteDirectory) Close() error {
	return d.db.Close()
}
