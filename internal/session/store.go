package session

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned for unknown or expired session IDs.
	ErrNotFound = errors.New("session not found")
	// ErrVersionConflict is returned by Update when the stored version no
	// longer matches the caller's copy.
	ErrVersionConflict = errors.New("session was modified concurrently")
	// ErrExists is returned by Create for a duplicate ID.
	ErrExists = errors.New("session already exists")
)

// Store persists sessions. Update is a compare-and-swap on Version: it
// succeeds only when the stored version equals s.Version, and on success
// the stored (and s's) version is incremented.
type Store interface {
	Create(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Update(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
	Ping(ctx context.Context) error
	Close() error
}

// Purger is implemented by stores that need an explicit sweep of expired
// sessions. Stores with native expiry (Redis) do not implement it.
type Purger interface {
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// expiry returns the absolute expiry for a session touched at t, or the
// zero time when ttl disables expiry.
func expiry(t time.Time, ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return t.Add(ttl)
}
