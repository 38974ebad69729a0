package storage

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/rl1809/catalog-orders/internal/core/domain"
)

func getRedisClient(t *testing.T) *redis.Client {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	return client
}

func TestSetIdempotency_Success(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)

	// Setup
	client.Del(ctx, idempotencyKeyPrefix+"test-idem-key")

	// First call should succeed
	ok, err := adapter.SetIdempotency(ctx, "test-idem-key")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("expected first call to succeed")
	}

	// Second call should fail (key exists)
	ok, err = adapter.SetIdempotency(ctx, "test-idem-key")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected second call to fail")
	}
}

func TestSetIdempotency_Concurrent(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)

	// Setup
	client.Del(ctx, idempotencyKeyPrefix+"concurrent-idem-key")

	var successCount atomic.Int32
	var wg sync.WaitGroup
	concurrency := 100

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := adapter.SetIdempotency(ctx, "concurrent-idem-key")
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if ok {
				successCount.Add(1)
			}
		}()
	}

	wg.Wait()

	// Only one should succeed
	if successCount.Load() != 1 {
		t.Errorf("expected exactly 1 success, got %d", successCount.Load())
	}
}

func TestIdempotency_CompleteAndRelease(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)
	client.Del(ctx, idempotencyKeyPrefix+"complete-key", idempotencyKeyPrefix+"release-key")

	// Pending keys report no result.
	adapter.SetIdempotency(ctx, "complete-key")
	if id, _ := adapter.IdempotencyResult(ctx, "complete-key"); id != "" {
		t.Errorf("expected empty result while pending, got %q", id)
	}

	if err := adapter.CompleteIdempotency(ctx, "complete-key", "order-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id, _ := adapter.IdempotencyResult(ctx, "complete-key"); id != "order-1" {
		t.Errorf("expected order-1, got %q", id)
	}

	// Release must not drop a completed key.
	if err := adapter.ReleaseIdempotency(ctx, "complete-key"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id, _ := adapter.IdempotencyResult(ctx, "complete-key"); id != "order-1" {
		t.Errorf("expected completed key to survive release, got %q", id)
	}

	// Releasing a pending key frees it for a retry.
	adapter.SetIdempotency(ctx, "release-key")
	if err := adapter.ReleaseIdempotency(ctx, "release-key"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ok, err := adapter.SetIdempotency(ctx, "release-key")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("expected released key to be reusable")
	}
}

func TestProductCache(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)
	client.Del(ctx, productKeyPrefix+"cache-test", productGenKeyPrefix+"cache-test")

	// Miss
	p, err := adapter.GetProduct(ctx, "cache-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p != nil {
		t.Fatal("expected miss")
	}

	gen, err := adapter.ProductGeneration(ctx, "cache-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := domain.Product{ID: "cache-test", PartNumber: "PN-C", Name: "Cached", Price: decimal.RequireFromString("4.20"), Stock: 3}
	stored, err := adapter.SetProduct(ctx, want, gen)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !stored {
		t.Fatal("expected product to be cached")
	}

	p, err = adapter.GetProduct(ctx, "cache-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p == nil || p.Name != "Cached" || !p.Price.Equal(want.Price) || p.Stock != 3 {
		t.Errorf("unexpected cached product: %+v", p)
	}

	if err := adapter.InvalidateProducts(ctx, "cache-test"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p, _ := adapter.GetProduct(ctx, "cache-test"); p != nil {
		t.Error("expected miss after invalidation")
	}
}

func TestProductCache_StaleFillDropped(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)
	client.Del(ctx, productKeyPrefix+"stale-test", productGenKeyPrefix+"stale-test")

	// A reader takes the generation, then a write invalidates before the
	// reader stores what it loaded.
	gen, err := adapter.ProductGeneration(ctx, "stale-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := adapter.InvalidateProducts(ctx, "stale-test"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored, err := adapter.SetProduct(ctx, domain.Product{ID: "stale-test", Stock: 5}, gen)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored {
		t.Error("expected stale fill to be dropped")
	}
	if p, _ := adapter.GetProduct(ctx, "stale-test"); p != nil {
		t.Errorf("expected miss, got %+v", p)
	}
}
