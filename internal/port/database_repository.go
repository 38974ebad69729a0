package port

import (
	"context"
	"time"

	"github.com/rl1809/catalog-orders/internal/core/domain"
)

// DatabaseRepository runs units of work against the transactional store.
// Every repository handed to fn is bound to the same transaction; returning
// an error from fn rolls all of its writes back.
type DatabaseRepository interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error

	// ReadOnly runs fn in a read-only transaction that only observes
	// committed data.
	ReadOnly(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}

type Repositories struct {
	Products  ProductRepository
	Orders    OrderRepository
	Revisions RevisionRepository
}

// ProductRepository lookups return (nil, nil) when no row matches.
type ProductRepository interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	GetProductByPartNumber(ctx context.Context, partNumber string) (*domain.Product, error)

	// LockProducts loads and row-locks the given products until the
	// transaction ends. Missing ids are absent from the result.
	LockProducts(ctx context.Context, ids []string) (map[string]*domain.Product, error)

	ListProducts(ctx context.Context, filter domain.ProductFilter, page domain.Page) ([]domain.Product, int, error)
	InsertProduct(ctx context.Context, product domain.Product) error
	UpdateProduct(ctx context.Context, product domain.Product) error
	DeleteProduct(ctx context.Context, id string) error
}

// OrderRepository lookups return (nil, nil) when no row matches. Orders are
// always loaded together with their items in line order.
type OrderRepository interface {
	InsertOrder(ctx context.Context, order domain.Order) error
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	LockOrder(ctx context.Context, id string) (*domain.Order, error)
	UpdateOrderStatus(ctx context.Context, order domain.Order) error

	// ListOrdersByUser returns the user's orders, newest first.
	ListOrdersByUser(ctx context.Context, userID string) ([]domain.Order, error)
	ListOrdersByStatus(ctx context.Context, status domain.OrderStatus) ([]domain.Order, error)
}

// RevisionRepository is the append-only audit log.
type RevisionRepository interface {
	// NewRevision allocates the next revision id for the current transaction.
	NewRevision(ctx context.Context, actor string, at time.Time) (domain.RevisionInfo, error)

	AppendProductRevision(ctx context.Context, rev domain.RevisionInfo, kind domain.RevisionKind, product domain.Product) error

	// AppendOrderRevision records the order snapshot. Item rows are recorded
	// as well unless kind is RevisionModified, since items never change
	// after creation.
	AppendOrderRevision(ctx context.Context, rev domain.RevisionInfo, kind domain.RevisionKind, order domain.Order) error

	// ProductRevisions and OrderRevisions return history ordered by revision id.
	ProductRevisions(ctx context.Context, productID string) ([]domain.Revision[domain.Product], error)
	OrderRevisions(ctx context.Context, orderID string) ([]domain.Revision[domain.Order], error)

	// OrderItemRevisions returns the item rows recorded for the order,
	// by revision id and then line order.
	OrderItemRevisions(ctx context.Context, orderID string) ([]domain.Revision[domain.OrderItem], error)
}
