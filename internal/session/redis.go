package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "atbat:session:"

// RedisStore keeps each session as a JSON value under its own key. Expiry is
// native: every write refreshes the key's TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore connects using a redis:// or rediss:// URL.
func NewRedisStore(ctx context.Context, url string, ttl time.Duration) (*RedisStore, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("session: parsing redis url: %w", err)
	}
	s := NewRedisStoreWithClient(redis.NewClient(opt), ttl)
	if err := s.Ping(ctx); err != nil {
		s.client.Close()
		return nil, fmt.Errorf("session: pinging redis: %w", err)
	}
	return s, nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func redisKey(id string) string {
	return redisKeyPrefix + id
}

// Create implements Store.
func (r *RedisStore) Create(ctx context.Context, s *Session) error {
	c := s.Clone()
	c.Version = 1
	b, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("session: encoding %s: %w", s.ID, err)
	}
	ok, err := r.client.SetNX(ctx, redisKey(s.ID), b, r.ttl).Result()
	if err != nil {
		return fmt.Errorf("session: writing %s: %w", s.ID, err)
	}
	if !ok {
		return ErrExists
	}
	s.Version = 1
	return nil
}

// Get implements Store.
func (r *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	return r.get(ctx, r.client, id)
}

func (r *RedisStore) get(ctx context.Context, c redis.Cmdable, id string) (*Session, error) {
	b, err := c.Get(ctx, redisKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("session: reading %s: %w", id, err)
	}
	var s Session
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("session: decoding %s: %w", id, err)
	}
	return &s, nil
}

// Update implements Store. The read-compare-write runs under WATCH, so a
// concurrent writer aborts the transaction.
func (r *RedisStore) Update(ctx context.Context, s *Session) error {
	key := redisKey(s.ID)
	next := s.Clone()
	next.Version = s.Version + 1
	b, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("session: encoding %s: %w", s.ID, err)
	}

	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := r.get(ctx, tx, s.ID)
		if err != nil {
			return err
		}
		if current.Version != s.Version {
			return ErrVersionConflict
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, b, r.ttl)
			return nil
		})
		return err
	}, key)
	switch {
	case err == nil:
		s.Version = next.Version
		return nil
	case errors.Is(err, redis.TxFailedErr):
		return ErrVersionConflict
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrVersionConflict):
		return err
	default:
		return fmt.Errorf("session: updating %s: %w", s.ID, err)
	}
}

// Delete implements Store.
func (r *RedisStore) Delete(ctx context.Context, id string) error {
	n, err := r.client.Del(ctx, redisKey(id)).Result()
	if err != nil {
		return fmt.Errorf("session: deleting %s: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Ping implements Store.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close implements Store.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
