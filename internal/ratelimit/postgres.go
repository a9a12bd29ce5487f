package ratelimit

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/roofing-insights/internal/db"
)

const postgresMigration = `
CREATE TABLE IF NOT EXISTS rate_limit_windows (
	identity TEXT PRIMARY KEY,
	count    INTEGER NOT NULL,
	reset_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_rate_limit_windows_reset_at ON rate_limit_windows(reset_at);
`

// The upsert resets an expired window and increments in one statement, so
// concurrent instances cannot undercount.
const incrementSQL = `
INSERT INTO rate_limit_windows (identity, count, reset_at) VALUES ($1, 1, $2)
ON CONFLICT (identity) DO UPDATE SET
	count = CASE WHEN rate_limit_windows.reset_at <= $3 THEN 1 ELSE rate_limit_windows.count + 1 END,
	reset_at = CASE WHEN rate_limit_windows.reset_at <= $3 THEN $2 ELSE rate_limit_windows.reset_at END
RETURNING count, reset_at`

// PostgresStore shares windows across instances through one table.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgresStore creates a counter store on an existing pool.
func NewPostgresStore(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the windows table.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "ratelimit: migrate")
}

// Increment counts one request for identity.
func (s *PostgresStore) Increment(ctx context.Context, identity string, now time.Time, window time.Duration) (Window, error) {
	var w Window
	now = now.UTC()
	err := s.pool.QueryRow(ctx, incrementSQL, identity, now.Add(window), now).Scan(&w.Count, &w.ResetAt)
	if err != nil {
		return Window{}, eris.Wrapf(err, "ratelimit: upsert window %s", identity)
	}
	return w, nil
}

// Sweep deletes expired windows.
func (s *PostgresStore) Sweep(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM rate_limit_windows WHERE reset_at <= $1`, now.UTC())
	if err != nil {
		return 0, eris.Wrap(err, "ratelimit: sweep")
	}
	return tag.RowsAffected(), nil
}
