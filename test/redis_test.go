//go:build integration

package test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/joao-fontenele/sipasera/internal/cart"
	"github.com/joao-fontenele/sipasera/internal/domain"
	"github.com/joao-fontenele/sipasera/internal/idempotency"
	"github.com/joao-fontenele/sipasera/internal/redisx"
)

func TestRedisIdempotencyStore(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	rdb := redisx.New(SetupRedis(ctx, t))
	defer func() { _ = rdb.Close() }()

	if err := redisx.Ping(ctx, rdb); err != nil {
		t.Fatalf("ping failed: %v", err)
	}

	s := idempotency.NewRedisStore(rdb)

	if prior, err := s.Begin(ctx, "checkout", "usr_budi", "k1"); err != nil || prior != "" {
		t.Fatalf("expected fresh claim, got %q %v", prior, err)
	}
	if _, err := s.Begin(ctx, "checkout", "usr_budi", "k1"); !errors.Is(err, domain.ErrDuplicateRequest) {
		t.Fatalf("expected duplicate while in flight, got %v", err)
	}
	if prior, err := s.Begin(ctx, "checkout", "usr_siti", "k1"); err != nil || prior != "" {
		t.Fatalf("expected keys to be scoped per user, got %q %v", prior, err)
	}

	if err := s.Complete(ctx, "checkout", "usr_budi", "k1", "ord_1"); err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if prior, err := s.Begin(ctx, "checkout", "usr_budi", "k1"); err != nil || prior != "ord_1" {
		t.Fatalf("expected replay of ord_1, got %q %v", prior, err)
	}

	if err := s.Release(ctx, "checkout", "usr_siti", "k1"); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if prior, err := s.Begin(ctx, "checkout", "usr_siti", "k1"); err != nil || prior != "" {
		t.Fatalf("expected released key to be claimable, got %q %v", prior, err)
	}
}

func TestRedisCartStore(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	rdb := redisx.New(SetupRedis(ctx, t))
	defer func() { _ = rdb.Close() }()

	carts := cart.NewRedisStore(rdb)

	for _, line := range []cart.Line{{ProductID: "prd_teh", Quantity: 3}, {ProductID: "prd_beras", Quantity: 1}} {
		if err := carts.Set(ctx, "usr_budi", line.ProductID, line.Quantity); err != nil {
			t.Fatalf("set failed: %v", err)
		}
	}

	lines, err := carts.Items(ctx, "usr_budi")
	if err != nil {
		t.Fatalf("items failed: %v", err)
	}
	if len(lines) != 2 || lines[0].ProductID != "prd_beras" || lines[1].Quantity != 3 {
		t.Fatalf("unexpected cart %+v", lines)
	}

	ttl, err := rdb.TTL(ctx, "cart:usr_budi").Result()
	if err != nil || ttl <= 0 {
		t.Fatalf("expected cart to expire, got ttl %v err %v", ttl, err)
	}

	if err := carts.Set(ctx, "usr_budi", "prd_teh", 0); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if err := carts.Clear(ctx, "usr_budi"); err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	if lines, _ := carts.Items(ctx, "usr_budi"); len(lines) != 0 {
		t.Fatalf("expected empty cart, got %+v", lines)
	}
}
