package users

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"gigalert/internal/model"
)

// PostgresDirectory reads recipients and their keywords from Postgres.
// The schema is owned by the account layer; this side never writes.
type PostgresDirectory struct {
	pool *pgxpool.Pool
}

// NewPostgresDirectory connects to databaseURL.
func NewPostgresDirectory(ctx context.Context, databaseURL string) (*PostgresDirectory, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return &PostgresDirectory{pool: pool}, nil
}

// ListEligible returns active, unblocked, unexpired recipients with
// their keyword sets. Eligibility is pushed into the query; expiry is
// rechecked locally so a recipient row cached mid-cycle cannot outlive
// its license.
func (d *PostgresDirectory) ListEligible(ctx context.Context) ([]model.Recipient, error) {
	rows, err := d.pool.Query(ctx,
		`SELECT r.id, r.active, r.blocked, r.expires_at,
		        COALESCE(array_agg(k.value) FILTER (WHERE k.value IS NOT NULL), '{}')
		 FROM recipient r
		 LEFT JOIN keyword k ON k.recipient_id = r.id
		 WHERE r.active = true AND r.blocked = false
		 GROUP BY r.id, r.active, r.blocked, r.expires_at
		 ORDER BY r.id`,
	)
	if err != nil {
		return nil, fmt.Errorf("querying recipients: %w", err)
	}
	defer rows.Close()

	now := time.Now()
	var out []model.Recipient
	for rows.Next() {
		var r model.Recipient
		var expires *time.Time
		if err := rows.Scan(&r.ID, &r.Active, &r.Blocked, &expires, &r.Keywords); err != nil {
			return nil, fmt.Errorf("scanning recipient row: %w", err)
		}
		r.ExpiresAt = expires
		if r.Eligible(now) {
			out = append(out, r)
		}
	}
	if err := rows.Err(); err != nil && err != pgx.ErrNoRows {
		return nil, fmt.Errorf("reading recipients: %w", err)
	}
	return out, nil
}

// Close releases the connection pool.
func (d *PostgresDirectory) Close() {
	d.pool.Close()
}
