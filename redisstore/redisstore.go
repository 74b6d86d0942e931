// Package redisstore provides a redis session handler.
//
// RedisStore stores encoded session records under a key prefix with a
// TTL. Redis expires records by itself, so garbage collection is a no-op.
// It can tell whether a record exists and refresh its TTL without
// rewriting the data.
package redisstore

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bluescreen10/httpstate/session"
)

const (
	// DefaultPrefix is prepended to every session id to build its key.
	DefaultPrefix = "sess:"

	// DefaultLifetime is the TTL of a record after its last write.
	DefaultLifetime = 24 * time.Minute
)

// RedisStore is a redis backed session handler.
type RedisStore struct {
	rdb      *redis.Client
	prefix   string
	lifetime time.Duration
}

var (
	_ session.Handler          = (*RedisStore)(nil)
	_ session.IDValidator      = (*RedisStore)(nil)
	_ session.TimestampUpdater = (*RedisStore)(nil)
)

// Option is a functional option for configuring a RedisStore
type Option func(*RedisStore)

// WithPrefix sets the key prefix. (default "sess:")
func WithPrefix(prefix string) Option {
	return func(s *RedisStore) {
		s.prefix = prefix
	}
}

// WithLifetime sets the TTL of records. (default 24m)
func WithLifetime(d time.Duration) Option {
	return func(s *RedisStore) {
		if d > 0 {
			s.lifetime = d
		}
	}
}

// New creates and returns a new RedisStore instance. The client is owned
// by the caller, Close does not close it.
func New(rdb *redis.Client, opts ...Option) *RedisStore {
	s := &RedisStore{
		rdb:      rdb,
		prefix:   DefaultPrefix,
		lifetime: DefaultLifetime,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open is a no-op, the client manages its own connections.
func (s *RedisStore) Open(savePath, name string) error {
	return nil
}

// Close is a no-op.
func (s *RedisStore) Close() error {
	return nil
}

// Read returns the data stored under id, or empty data if the record is
// missing or expired.
func (s *RedisStore) Read(id string) ([]byte, error) {
	data, err := s.rdb.Get(context.Background(), s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []byte{}, nil
		}
		return []byte{}, err
	}

	return data, nil
}

// Write stores the data under id and resets its TTL. If a record with the
// same id already exists, it is overwritten.
func (s *RedisStore) Write(id string, data []byte) error {
	return s.rdb.Set(context.Background(), s.key(id), data, s.lifetime).Err()
}

// Destroy removes the record stored under id. If the id does not exist,
// this is a no-op.
func (s *RedisStore) Destroy(id string) error {
	return s.rdb.Del(context.Background(), s.key(id)).Err()
}

// GC does nothing, redis expires records by itself.
func (s *RedisStore) GC(time.Duration) (int, error) {
	return 0, nil
}

// ValidateID reports whether a record exists for id.
func (s *RedisStore) ValidateID(id string) (bool, error) {
	n, err := s.rdb.Exists(context.Background(), s.key(id)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// UpdateTimestamp resets the TTL of the record stored under id. If the
// record expired in the meantime it is written again.
func (s *RedisStore) UpdateTimestamp(id string, data []byte) error {
	ok, err := s.rdb.Expire(context.Background(), s.key(id), s.lifetime).Result()
	if err != nil {
		return err
	}
	if !ok {
		return s.Write(id, data)
	}
	return nil
}

func (s *RedisStore) key(id string) string {
	return s.prefix + id
}
