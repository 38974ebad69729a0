package port

import (
	"context"

	"github.com/rl1809/catalog-orders/internal/core/domain"
)

type CacheRepository interface {
	// SetIdempotency reserves a key, returns false if it already exists
	SetIdempotency(ctx context.Context, key string) (bool, error)

	// CompleteIdempotency records the order created under a reserved key
	CompleteIdempotency(ctx context.Context, key, orderID string) error

	// ReleaseIdempotency drops a reservation that never completed
	ReleaseIdempotency(ctx context.Context, key string) error

	// IdempotencyResult returns the order id stored under key, or "" while
	// the reservation is still pending or absent
	IdempotencyResult(ctx context.Context, key string) (string, error)

	// GetProduct returns a cached product, or nil on a miss
	GetProduct(ctx context.Context, id string) (*domain.Product, error)

	// ProductGeneration returns a counter bumped by every invalidation of
	// the product. Read it before loading the product from the database.
	ProductGeneration(ctx context.Context, id string) (int64, error)

	// SetProduct caches product only while its generation still equals
	// generation, and reports whether it did. A fill that raced with an
	// invalidation is dropped.
	SetProduct(ctx context.Context, product domain.Product, generation int64) (bool, error)

	InvalidateProducts(ctx context.Context, ids ...string) error
}
