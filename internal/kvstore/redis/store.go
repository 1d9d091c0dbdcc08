package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/xrmultiplayer/sessionflow/internal/kvstore"
)

// Key prefix for all key-value store data
const keyPrefix = "sflow:kv"

// Store is a Redis-backed implementation of the key-value store interface.
// A shared Redis plays the role of the hosted remote store: every local
// instance of every player reads and writes the same keyspace.
type Store struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Redis store instance
func New(cfg Config) (*Store, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &Store{client: client, cfg: cfg}, nil
}

// NewWithClient creates a Redis store with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Store {
	return &Store{client: client, cfg: cfg}
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}

// Ensure Store implements the interface
var _ kvstore.Store = (*Store)(nil)

func (s *Store) Read(ctx context.Context, path string) (string, bool, error) {
	v, err := s.client.Get(ctx, storeKey(path)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, err
	}
	return v, true, nil
}

func (s *Store) Write(ctx context.Context, path string, value string) error {
	return s.client.Set(ctx, storeKey(path), value, 0).Err()
}

func (s *Store) Delete(ctx context.Context, path string) error {
	return s.client.Del(ctx, storeKey(path)).Err()
}

// storeKey returns the Redis key for a store path
func storeKey(path string) string {
	return fmt.Sprintf("%s:%s", keyPrefix, path)
}
