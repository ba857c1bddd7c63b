package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL is how long an idle session survives in Redis.
const DefaultTTL = 24 * time.Hour

// RedisStore keeps sessions as JSON strings under "<prefix>:session:<user>".
// Every save refreshes the expiry.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a store on a new Redis client.
func NewRedisStore(opts *redis.Options, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "airtime"
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{
		rdb:    redis.NewClient(opts),
		prefix: prefix,
		ttl:    ttl,
	}
}

// NewRedisStoreFromURL parses a redis:// URL and creates a store.
func NewRedisStoreFromURL(url, prefix string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	return NewRedisStore(opts, prefix, ttl), nil
}

// Key returns the Redis key of a user's session.
func (r *RedisStore) Key(user string) string {
	return r.prefix + ":session:" + user
}

// Ping verifies Redis connectivity.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

func (r *RedisStore) Get(ctx context.Context, user string) (Session, error) {
	if user == "" {
		return Session{}, ErrEmptyUser
	}

	data, err := r.rdb.Get(ctx, r.Key(user)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{User: user}, nil
	}
	if err != nil {
		return Session{}, fmt.Errorf("reading session: %w", err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return Session{}, fmt.Errorf("decoding session: %w", err)
	}
	s.User = user
	return s, nil
}

func (r *RedisStore) Save(ctx context.Context, s Session) error {
	if s.User == "" {
		return ErrEmptyUser
	}

	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	if err := r.rdb.Set(ctx, r.Key(s.User), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("writing session: %w", err)
	}
	return nil
}

func (r *RedisStore) Clear(ctx context.Context, user string) error {
	if err := r.rdb.Del(ctx, r.Key(user)).Err(); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

func (r *RedisStore) Close() error {
	return r.rdb.Close()
}
