package snapshot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// VersionStore tracks a monotonically increasing snapshot version per user.
// Any role or binding change for a user must be followed by Bump.
type VersionStore interface {
	Version(ctx context.Context, userID string) (int64, error)
	Bump(ctx context.Context, userID string) (int64, error)
}

// MemoryVersionStore keeps versions in process memory
type MemoryVersionStore struct {
	mu       sync.Mutex
	versions map[string]int64
}

// NewMemoryVersionStore creates an empty in-memory version store
func NewMemoryVersionStore() *MemoryVersionStore {
	return &MemoryVersionStore{versions: make(map[string]int64)}
}

// Version returns the current version, 0 for unseen users
func (s *MemoryVersionStore) Version(_ context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.versions[userID], nil
}

// Bump increments and returns the user's version
func (s *MemoryVersionStore) Bump(_ context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.versions[userID]++
	return s.versions[userID], nil
}

// RedisVersionStore shares versions between service instances through Redis
type RedisVersionStore struct {
	client *redis.Client
	prefix string
}

// NewRedisVersionStore connects to redisURL and verifies the connection
func NewRedisVersionStore(ctx context.Context, redisURL string) (*RedisVersionStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisVersionStore{client: client, prefix: "mesauthz:snapshot-version:"}, nil
}

// Version returns the stored version, 0 when the key does not exist
func (s *RedisVersionStore) Version(ctx context.Context, userID string) (int64, error) {
	v, err := s.client.Get(ctx, s.prefix+userID).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get failed: %w", err)
	}
	return v, nil
}

// Bump atomically increments the user's version
func (s *RedisVersionStore) Bump(ctx context.Context, userID string) (int64, error) {
	v, err := s.client.Incr(ctx, s.prefix+userID).Result()
	if err != nil {
		return 0, fmt.Errorf("redis incr failed: %w", err)
	}
	return v, nil
}

// Client exposes the underlying client for health checks
func (s *RedisVersionStore) Client() *redis.Client {
	return s.client
}

// Close closes the Redis connection
func (s *RedisVersionStore) Close() error {
	return s.client.Close()
}
