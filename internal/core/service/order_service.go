package service

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/rl1809/catalog-orders/internal/core/domain"
	"github.com/rl1809/catalog-orders/internal/port"
)

type OrderService struct {
	db port.DatabaseRepository
	options
}

func NewOrderService(db port.DatabaseRepository, opts ...Option) *OrderService {
	return &OrderService{db: db, options: newOptions(opts)}
}

// CreateOrder places a pending order for actor. All lines are validated
// against locked stock before anything is written; any failure leaves stock
// and the order tables untouched.
func (s *OrderService) CreateOrder(ctx context.Context, actor domain.Actor, lines []domain.OrderLine) (order *domain.Order, err error) {
	ctx, span := tracer.Start(ctx, "OrderService.CreateOrder")
	defer func() { endSpan(span, err) }()

	if err := actor.Validate(); err != nil {
		return nil, err
	}
	merged, err := domain.MergeLines(lines)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("user.id", actor.ID), attribute.Int("order.lines", len(merged)))

	txCtx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()

	var rev domain.RevisionInfo
	err = s.db.WithinTx(txCtx, func(ctx context.Context, repos port.Repositories) error {
		ids := make([]string, len(merged))
		for i, line := range merged {
			ids[i] = line.ProductID
		}

		locked, err := repos.Products.LockProducts(ctx, ids)
		if err != nil {
			return fmt.Errorf("lock products: %w", err)
		}

		products := make([]*domain.Product, len(merged))
		for i, line := range merged {
			p, ok := locked[line.ProductID]
			if !ok {
				return domain.ProductNotFound(line.ProductID)
			}
			if p.Stock < line.Quantity {
				return domain.NewInsufficientStockError(p.Name, line.Quantity, p.Stock)
			}
			products[i] = p
		}

		now := s.clock()
		o := domain.NewOrder(s.newID(), actor, now)
		for i, line := range merged {
			p := products[i]
			o.AddItem(domain.OrderItem{
				ID:          s.newID(),
				ProductID:   p.ID,
				ProductName: p.Name,
				Quantity:    line.Quantity,
				UnitPrice:   p.Price,
			})
		}

		if err := o.ValidateTotal(); err != nil {
			return err
		}

		rev, err = repos.Revisions.NewRevision(ctx, actor.Name(), now)
		if err != nil {
			return fmt.Errorf("new revision: %w", err)
		}

		for i, p := range products {
			p.Stock -= merged[i].Quantity
			p.UpdatedAt = now
			if err := repos.Products.UpdateProduct(ctx, *p); err != nil {
				return fmt.Errorf("update stock of %s: %w", p.ID, err)
			}
			if err := repos.Revisions.AppendProductRevision(ctx, rev, domain.RevisionModified, *p); err != nil {
				return fmt.Errorf("append product revision: %w", err)
			}
		}

		if err := repos.Orders.InsertOrder(ctx, *o); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		if err := repos.Revisions.AppendOrderRevision(ctx, rev, domain.RevisionCreated, *o); err != nil {
			return fmt.Errorf("append order revision: %w", err)
		}

		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("order created",
		zap.String("order_id", order.ID),
		zap.String("user_id", order.UserID),
		zap.String("total", order.Total.StringFixed(2)),
		zap.Int64("revision", rev.ID),
	)
	s.afterCommit(ctx, domain.NewOrderEvent(domain.OrderCreated, order, rev), orderProductIDs(order)...)
	return order, nil
}

// PlaceOrder is CreateOrder guarded by a caller-supplied idempotency key.
// Replaying a completed key returns the order created the first time;
// replaying a key whose first attempt is still running fails with
// ErrDuplicateRequest. An empty key, or no cache, skips the guard.
func (s *OrderService) PlaceOrder(ctx context.Context, actor domain.Actor, idempotencyKey string, lines []domain.OrderLine) (*domain.Order, error) {
	if idempotencyKey == "" || s.cache == nil {
		return s.CreateOrder(ctx, actor, lines)
	}
	if err := actor.Validate(); err != nil {
		return nil, err
	}

	key := fmt.Sprintf("order:%s:%s", actor.ID, idempotencyKey)
	ok, err := s.cache.SetIdempotency(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("idempotency check failed: %w", err)
	}
	if !ok {
		orderID, err := s.cache.IdempotencyResult(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("idempotency lookup failed: %w", err)
		}
		if orderID == "" {
			return nil, domain.ErrDuplicateRequest
		}
		return s.GetOrder(ctx, orderID)
	}

	order, err := s.CreateOrder(ctx, actor, lines)

	// The key must settle even when the caller has gone away, or it stays
	// pending until it expires.
	cleanupCtx, cancel := detached(ctx)
	defer cancel()
	if err != nil {
		if releaseErr := s.cache.ReleaseIdempotency(cleanupCtx, key); releaseErr != nil {
			s.logger.Warn("release idempotency key", zap.String("key", key), zap.Error(releaseErr))
		}
		return nil, err
	}
	if err := s.cache.CompleteIdempotency(cleanupCtx, key, order.ID); err != nil {
		s.logger.Warn("complete idempotency key", zap.String("key", key), zap.Error(err))
	}
	return order, nil
}

func (s *OrderService) GetOrder(ctx context.Context, id string) (order *domain.Order, err error) {
	ctx, span := tracer.Start(ctx, "OrderService.GetOrder")
	defer func() { endSpan(span, err) }()

	if strings.TrimSpace(id) == "" {
		return nil, domain.InvalidArgument("order id is required")
	}
	err = s.db.ReadOnly(ctx, func(ctx context.Context, repos port.Repositories) error {
		o, err := repos.Orders.GetOrder(ctx, id)
		if err != nil {
			return fmt.Errorf("get order: %w", err)
		}
		if o == nil {
			return domain.OrderNotFound(id)
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// ListOrdersForUser returns the user's orders, newest first.
func (s *OrderService) ListOrdersForUser(ctx context.Context, userID string) (orders []domain.Order, err error) {
	ctx, span := tracer.Start(ctx, "OrderService.ListOrdersForUser")
	defer func() { endSpan(span, err) }()

	if strings.TrimSpace(userID) == "" {
		return nil, domain.InvalidArgument("user id is required")
	}
	err = s.db.ReadOnly(ctx, func(ctx context.Context, repos port.Repositories) error {
		orders, err = repos.Orders.ListOrdersByUser(ctx, userID)
		if err != nil {
			return fmt.Errorf("list orders: %w", err)
		}
		return nil
	})
	return orders, err
}

func (s *OrderService) ListOrdersByStatus(ctx context.Context, status string) (orders []domain.Order, err error) {
	ctx, span := tracer.Start(ctx, "OrderService.ListOrdersByStatus")
	defer func() { endSpan(span, err) }()

	parsed, err := domain.ParseOrderStatus(status)
	if err != nil {
		return nil, err
	}
	err = s.db.ReadOnly(ctx, func(ctx context.Context, repos port.Repositories) error {
		orders, err = repos.Orders.ListOrdersByStatus(ctx, parsed)
		if err != nil {
			return fmt.Errorf("list orders: %w", err)
		}
		return nil
	})
	return orders, err
}

// UpdateOrderStatus overwrites the order's status. Any non-empty status is
// accepted, and every call appends a revision even if the value is unchanged.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, actor domain.Actor, id, status string) (order *domain.Order, err error) {
	ctx, span := tracer.Start(ctx, "OrderService.UpdateOrderStatus")
	defer func() { endSpan(span, err) }()

	if err := actor.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(id) == "" {
		return nil, domain.InvalidArgument("order id is required")
	}
	parsed, err := domain.ParseOrderStatus(status)
	if err != nil {
		return nil, err
	}

	txCtx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()

	var rev domain.RevisionInfo
	err = s.db.WithinTx(txCtx, func(ctx context.Context, repos port.Repositories) error {
		o, err := repos.Orders.LockOrder(ctx, id)
		if err != nil {
			return fmt.Errorf("lock order: %w", err)
		}
		if o == nil {
			return domain.OrderNotFound(id)
		}

		now := s.clock()
		o.Status = parsed
		o.LastModifiedBy = actor.Name()
		o.UpdatedAt = now

		if err := repos.Orders.UpdateOrderStatus(ctx, *o); err != nil {
			return fmt.Errorf("update order: %w", err)
		}
		rev, err = repos.Revisions.NewRevision(ctx, actor.Name(), now)
		if err != nil {
			return fmt.Errorf("new revision: %w", err)
		}
		if err := repos.Revisions.AppendOrderRevision(ctx, rev, domain.RevisionModified, *o); err != nil {
			return fmt.Errorf("append order revision: %w", err)
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("order status updated",
		zap.String("order_id", order.ID),
		zap.String("status", string(order.Status)),
		zap.Int64("revision", rev.ID),
	)
	s.afterCommit(ctx, domain.NewOrderEvent(domain.OrderStatusChanged, order, rev))
	return order, nil
}

// afterCommit runs the side effects of a committed order write. Failures
// are logged; the write itself already succeeded.
func (s *OrderService) afterCommit(ctx context.Context, event domain.OrderEvent, productIDs ...string) {
	ctx, cancel := detached(ctx)
	defer cancel()

	if s.cache != nil && len(productIDs) > 0 {
		if err := s.cache.InvalidateProducts(ctx, productIDs...); err != nil {
			s.logger.Warn("invalidate cached products", zap.Strings("product_ids", productIDs), zap.Error(err))
		}
	}
	if s.events != nil {
		if err := s.events.Publish(ctx, event); err != nil {
			s.logger.Warn("publish order event",
				zap.String("type", string(event.Type)),
				zap.String("order_id", event.OrderID),
				zap.Error(err),
			)
		}
	}
}

func orderProductIDs(o *domain.Order) []string {
	out := make([]string, len(o.Items))
	for i, item := range o.Items {
		out[i] = item.ProductID
	}
	return out
}
