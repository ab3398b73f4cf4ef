// Package idempotency deduplicates repeated submissions carrying the same
// Idempotency-Key header.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/joao-fontenele/sipasera/internal/domain"
	"github.com/joao-fontenele/sipasera/internal/redisx"
)

const Header = "Idempotency-Key"

const inFlight = "pending"

type Store interface {
	// Begin claims key. It returns the resource id recorded by an earlier
	// completed request, or domain.ErrDuplicateRequest while another request
	// holds the key.
	Begin(ctx context.Context, scope, userID, key string) (string, error)
	Complete(ctx context.Context, scope, userID, key, resourceID string) error
	// Release drops a claim after a failed request so it can be retried.
	Release(ctx context.Context, scope, userID, key string) error
}

type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func redisKey(scope, userID, key string) string {
	return fmt.Sprintf(redisx.KeyIdempotency, scope, userID, key)
}

func (s *RedisStore) Begin(ctx context.Context, scope, userID, key string) (string, error) {
	k := redisKey(scope, userID, key)
	claimed, err := s.rdb.SetNX(ctx, k, inFlight, redisx.TTLInFlight).Result()
	if err != nil {
		return "", fmt.Errorf("claim idempotency key: %w", err)
	}
	if claimed {
		return "", nil
	}

	existing, err := s.rdb.Get(ctx, k).Result()
	if errors.Is(err, redis.Nil) {
		// Expired between SETNX and GET; let the caller retry.
		return "", domain.ErrDuplicateRequest
	}
	if err != nil {
		return "", fmt.Errorf("read idempotency key: %w", err)
	}
	if existing == inFlight {
		return "", domain.ErrDuplicateRequest
	}
	return existing, nil
}

func (s *RedisStore) Complete(ctx context.Context, scope, userID, key, resourceID string) error {
	return s.rdb.Set(ctx, redisKey(scope, userID, key), resourceID, redisx.TTLIdempotency).Err()
}

func (s *RedisStore) Release(ctx context.Context, scope, userID, key string) error {
	return s.rdb.Del(ctx, redisKey(scope, userID, key)).Err()
}

type entry struct {
	value   string
	expires time.Time
}

// MemoryStore is used when no Redis address is configured.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]entry), now: time.Now}
}

func (s *MemoryStore) Begin(ctx context.Context, scope, userID, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := redisKey(scope, userID, key)
	if e, ok := s.entries[k]; ok && s.now().Before(e.expires) {
		if e.value == inFlight {
			return "", domain.ErrDuplicateRequest
		}
		return e.value, nil
	}
	s.entries[k] = entry{value: inFlight, expires: s.now().Add(redisx.TTLInFlight)}
	return "", nil
}

func (s *MemoryStore) Complete(ctx context.Context, scope, userID, key, resourceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[redisKey(scope, userID, key)] = entry{value: resourceID, expires: s.now().Add(redisx.TTLIdempotency)}
	return nil
}

func (s *MemoryStore) Release(ctx context.Context, scope, userID, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, redisKey(scope, userID, key))
	return nil
}
