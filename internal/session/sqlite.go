package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS atbat_sessions (
	id             TEXT PRIMARY KEY,
	scenario_index INTEGER NOT NULL,
	outcome        TEXT NOT NULL,
	confidence     REAL NOT NULL,
	last_swing     TEXT,
	swings         INTEGER NOT NULL DEFAULT 0,
	home_runs      INTEGER NOT NULL DEFAULT 0,
	at_bats        INTEGER NOT NULL DEFAULT 0,
	version        INTEGER NOT NULL,
	created_at     INTEGER NOT NULL,
	updated_at     INTEGER NOT NULL,
	expires_at     INTEGER
);
CREATE INDEX IF NOT EXISTS atbat_sessions_expires_at_idx ON atbat_sessions (expires_at);`

// SQLiteStore persists sessions in a local SQLite file using the pure-Go
// modernc driver. Timestamps are stored as Unix nanoseconds.
type SQLiteStore struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// NewSQLiteStore opens (creating if needed) the database at path.
func NewSQLiteStore(ctx context.Context, path string, ttl time.Duration) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("session: creating sqlite directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("session: opening sqlite: %w", err)
	}
	// A single writer avoids SQLITE_BUSY under concurrent requests.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("session: pinging sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("session: migrating sqlite: %w", err)
	}

	return &SQLiteStore{
		db:  db,
		ttl: ttl,
		now: func() time.Time { return time.Now().UTC() },
	}, nil
}

func unixNano(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UnixNano()
}

func swingText(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}

// Create implements Store.
func (q *SQLiteStore) Create(ctx context.Context, s *Session) error {
	swing, err := encodeSwing(s.LastSwing)
	if err != nil {
		return err
	}
	res, err := q.db.ExecContext(ctx, `INSERT INTO atbat_sessions (`+sessionColumns+`, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`,
		s.ID, s.ScenarioIndex, string(s.Outcome), s.Confidence, swingText(swing),
		s.Swings, s.HomeRuns, s.AtBats, s.CreatedAt.UnixNano(), s.UpdatedAt.UnixNano(),
		unixNano(expiry(q.now(), q.ttl)),
	)
	if err != nil {
		return fmt.Errorf("session: inserting %s: %w", s.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrExists
	}
	s.Version = 1
	return nil
}

// Get implements Store.
func (q *SQLiteStore) Get(ctx context.Context, id string) (*Session, error) {
	var (
		s                Session
		outcome          string
		swing            sql.NullString
		created, updated int64
	)
	err := q.db.QueryRowContext(ctx, `SELECT `+sessionColumns+`
		FROM atbat_sessions
		WHERE id = ? AND (expires_at IS NULL OR expires_at > ?)`,
		id, q.now().UnixNano(),
	).Scan(&s.ID, &s.ScenarioIndex, &outcome, &s.Confidence, &swing,
		&s.Swings, &s.HomeRuns, &s.AtBats, &s.Version, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("session: reading %s: %w", id, err)
	}

	s.Outcome = outcomeOf(outcome)
	s.CreatedAt = time.Unix(0, created).UTC()
	s.UpdatedAt = time.Unix(0, updated).UTC()
	if swing.Valid {
		if s.LastSwing, err = decodeSwing([]byte(swing.String)); err != nil {
			return nil, fmt.Errorf("session: reading %s: %w", id, err)
		}
	}
	return &s, nil
}

// Update implements Store.
func (q *SQLiteStore) Update(ctx context.Context, s *Session) error {
	swing, err := encodeSwing(s.LastSwing)
	if err != nil {
		return err
	}
	now := q.now()
	res, err := q.db.ExecContext(ctx, `UPDATE atbat_sessions SET
			scenario_index = ?, outcome = ?, confidence = ?, last_swing = ?,
			swings = ?, home_runs = ?, at_bats = ?, updated_at = ?,
			expires_at = ?, version = version + 1
		WHERE id = ? AND version = ? AND (expires_at IS NULL OR expires_at > ?)`,
		s.ScenarioIndex, string(s.Outcome), s.Confidence, swingText(swing),
		s.Swings, s.HomeRuns, s.AtBats, s.UpdatedAt.UnixNano(),
		unixNano(expiry(now, q.ttl)),
		s.ID, s.Version, now.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("session: updating %s: %w", s.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := q.Get(ctx, s.ID); err != nil {
			return err
		}
		return ErrVersionConflict
	}
	s.Version++
	return nil
}

// Delete implements Store.
func (q *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM atbat_sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("session: deleting %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// PurgeExpired implements Purger.
func (q *SQLiteStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		`DELETE FROM atbat_sessions WHERE expires_at IS NOT NULL AND expires_at <= ?`, now.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("session: purging expired sessions: %w", err)
	}
	return res.RowsAffected()
}

// Ping implements Store.
func (q *SQLiteStore) Ping(ctx context.Context) error {
	return q.db.PingContext(ctx)
}

// Close implements Store.
func (q *SQLiteStore) Close() error {
	return q.db.Close()
}
