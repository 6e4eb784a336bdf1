package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is the minimal interface shared by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const postgresSchema = `CREATE TABLE IF NOT EXISTS atbat_sessions (
	id             TEXT PRIMARY KEY,
	scenario_index INTEGER NOT NULL,
	outcome        TEXT NOT NULL,
	confidence     DOUBLE PRECISION NOT NULL,
	last_swing     JSONB,
	swings         INTEGER NOT NULL DEFAULT 0,
	home_runs      INTEGER NOT NULL DEFAULT 0,
	at_bats        INTEGER NOT NULL DEFAULT 0,
	version        BIGINT NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL,
	expires_at     TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS atbat_sessions_expires_at_idx ON atbat_sessions (expires_at)`

const sessionColumns = `id, scenario_index, outcome, confidence, last_swing,
	swings, home_runs, at_bats, version, created_at, updated_at`

// PostgresStore persists sessions in the atbat_sessions table.
type PostgresStore struct {
	db   DBTX
	pool *pgxpool.Pool
	ttl  time.Duration
	now  func() time.Time
}

// NewPostgresStore connects, verifies the connection, and creates the
// sessions table if needed.
func NewPostgresStore(ctx context.Context, databaseURL string, ttl time.Duration) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("session: connecting to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("session: pinging postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("session: migrating postgres: %w", err)
	}
	s := NewPostgresStoreWithDB(pool, ttl)
	s.pool = pool
	return s, nil
}

// NewPostgresStoreWithDB builds a store over an existing connection or
// transaction. The caller owns its lifecycle.
func NewPostgresStoreWithDB(db DBTX, ttl time.Duration) *PostgresStore {
	return &PostgresStore{
		db:  db,
		ttl: ttl,
		now: func() time.Time { return time.Now().UTC() },
	}
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

// Create implements Store.
func (p *PostgresStore) Create(ctx context.Context, s *Session) error {
	swing, err := encodeSwing(s.LastSwing)
	if err != nil {
		return err
	}
	tag, err := p.db.Exec(ctx, `INSERT INTO atbat_sessions (`+sessionColumns+`, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 1, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING`,
		s.ID, s.ScenarioIndex, string(s.Outcome), s.Confidence, swing,
		s.Swings, s.HomeRuns, s.AtBats, s.CreatedAt, s.UpdatedAt,
		nullableTime(expiry(p.now(), p.ttl)),
	)
	if err != nil {
		return fmt.Errorf("session: inserting %s: %w", s.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrExists
	}
	s.Version = 1
	return nil
}

// Get implements Store.
func (p *PostgresStore) Get(ctx context.Context, id string) (*Session, error) {
	var (
		s       Session
		outcome string
		swing   []byte
	)
	err := p.db.QueryRow(ctx, `SELECT `+sessionColumns+`
		FROM atbat_sessions
		WHERE id = $1 AND (expires_at IS NULL OR expires_at > $2)`,
		id, p.now(),
	).Scan(&s.ID, &s.ScenarioIndex, &outcome, &s.Confidence, &swing,
		&s.Swings, &s.HomeRuns, &s.AtBats, &s.Version, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("session: reading %s: %w", id, err)
	}

	s.Outcome = outcomeOf(outcome)
	if s.LastSwing, err = decodeSwing(swing); err != nil {
		return nil, fmt.Errorf("session: reading %s: %w", id, err)
	}
	return &s, nil
}

// Update implements Store.
func (p *PostgresStore) Update(ctx context.Context, s *Session) error {
	swing, err := encodeSwing(s.LastSwing)
	if err != nil {
		return err
	}
	now := p.now()
	tag, err := p.db.Exec(ctx, `UPDATE atbat_sessions SET
			scenario_index = $3, outcome = $4, confidence = $5, last_swing = $6,
			swings = $7, home_runs = $8, at_bats = $9, updated_at = $10,
			expires_at = $11, version = version + 1
		WHERE id = $1 AND version = $2 AND (expires_at IS NULL OR expires_at > $12)`,
		s.ID, s.Version, s.ScenarioIndex, string(s.Outcome), s.Confidence, swing,
		s.Swings, s.HomeRuns, s.AtBats, s.UpdatedAt,
		nullableTime(expiry(now, p.ttl)), now,
	)
	if err != nil {
		return fmt.Errorf("session: updating %s: %w", s.ID, err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := p.Get(ctx, s.ID); err != nil {
			return err
		}
		return ErrVersionConflict
	}
	s.Version++
	return nil
}

// Delete implements Store.
func (p *PostgresStore) Delete(ctx context.Context, id string) error {
	tag, err := p.db.Exec(ctx, `DELETE FROM atbat_sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("session: deleting %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// PurgeExpired implements Purger.
func (p *PostgresStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := p.db.Exec(ctx,
		`DELETE FROM atbat_sessions WHERE expires_at IS NOT NULL AND expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("session: purging expired sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Ping implements Store.
func (p *PostgresStore) Ping(ctx context.Context) error {
	if p.pool == nil {
		return nil
	}
	return p.pool.Ping(ctx)
}

// Close implements Store.
func (p *PostgresStore) Close() error {
	if p.pool != nil {
		p.pool.Close()
	}
	return nil
}
