// Package cart keeps each customer's pending cart between page loads.
package cart

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/joao-fontenele/sipasera/internal/redisx"
)

type Line struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type Store interface {
	Items(ctx context.Context, userID string) ([]Line, error)
	// Set stores quantity for the product; quantity <= 0 removes the line.
	Set(ctx context.Context, userID, productID string, quantity int) error
	Clear(ctx context.Context, userID string) error
}

type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Items(ctx context.Context, userID string) ([]Line, error) {
	fields, err := s.rdb.HGetAll(ctx, fmt.Sprintf(redisx.KeyCart, userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("read cart: %w", err)
	}

	lines := make([]Line, 0, len(fields))
	for productID, raw := range fields {
		qty, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("read cart: quantity for %s: %w", productID, err)
		}
		lines = append(lines, Line{ProductID: productID, Quantity: qty})
	}
	sortLines(lines)
	return lines, nil
}

func (s *RedisStore) Set(ctx context.Context, userID, productID string, quantity int) error {
	key := fmt.Sprintf(redisx.KeyCart, userID)
	if quantity <= 0 {
		return s.rdb.HDel(ctx, key, productID).Err()
	}

	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, key, productID, quantity)
	pipe.Expire(ctx, key, redisx.TTLCart)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("update cart: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, userID string) error {
	return s.rdb.Del(ctx, fmt.Sprintf(redisx.KeyCart, userID)).Err()
}

// MemoryStore is used when no Redis address is configured.
type MemoryStore struct {
	mu    sync.RWMutex
	carts map[string]map[string]int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{carts: make(map[string]map[string]int)}
}

func (s *MemoryStore) Items(ctx context.Context, userID string) ([]Line, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lines := make([]Line, 0, len(s.carts[userID]))
	for productID, qty := range s.carts[userID] {
		lines = append(lines, Line{ProductID: productID, Quantity: qty})
	}
	sortLines(lines)
	return lines, nil
}

func (s *MemoryStore) Set(ctx context.Context, userID, productID string, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if quantity <= 0 {
		delete(s.carts[userID], productID)
		return nil
	}
	if s.carts[userID] == nil {
		s.carts[userID] = make(map[string]int)
	}
	s.carts[userID][productID] = quantity
	return nil
}

func (s *MemoryStore) Clear(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, userID)
	return nil
}

func sortLines(lines []Line) {
	sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })
}
