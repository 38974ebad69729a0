package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rl1809/catalog-orders/internal/core/domain"
	"github.com/rl1809/catalog-orders/internal/port"
)

// HistoryService reads the revision log. Reads run in read-only
// transactions, so only committed revisions are visible.
type HistoryService struct {
	db port.DatabaseRepository
	options
}

func NewHistoryService(db port.DatabaseRepository, opts ...Option) *HistoryService {
	return &HistoryService{db: db, options: newOptions(opts)}
}

// GetOrderHistory returns every revision of the order, oldest first. Item
// snapshots are part of each order revision.
func (s *HistoryService) GetOrderHistory(ctx context.Context, orderID string) (revs []domain.Revision[domain.Order], err error) {
	ctx, span := tracer.Start(ctx, "HistoryService.GetOrderHistory")
	defer func() { endSpan(span, err) }()

	if strings.TrimSpace(orderID) == "" {
		return nil, domain.InvalidArgument("order id is required")
	}
	err = s.db.ReadOnly(ctx, func(ctx context.Context, repos port.Repositories) error {
		o, err := repos.Orders.GetOrder(ctx, orderID)
		if err != nil {
			return fmt.Errorf("get order: %w", err)
		}
		if o == nil {
			return domain.OrderNotFound(orderID)
		}
		revs, err = repos.Revisions.OrderRevisions(ctx, orderID)
		if err != nil {
			return fmt.Errorf("order revisions: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return revs, nil
}

// GetOrderItemHistory returns the item-level revisions of the order. Items
// never change after creation, so each item appears once, under the
// order's CREATED revision.
func (s *HistoryService) GetOrderItemHistory(ctx context.Context, orderID string) (revs []domain.Revision[domain.OrderItem], err error) {
	ctx, span := tracer.Start(ctx, "HistoryService.GetOrderItemHistory")
	defer func() { endSpan(span, err) }()

	if strings.TrimSpace(orderID) == "" {
		return nil, domain.InvalidArgument("order id is required")
	}
	err = s.db.ReadOnly(ctx, func(ctx context.Context, repos port.Repositories) error {
		o, err := repos.Orders.GetOrder(ctx, orderID)
		if err != nil {
			return fmt.Errorf("get order: %w", err)
		}
		if o == nil {
			return domain.OrderNotFound(orderID)
		}
		revs, err = repos.Revisions.OrderItemRevisions(ctx, orderID)
		if err != nil {
			return fmt.Errorf("order item revisions: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return revs, nil
}

// GetProductHistory returns every revision of the product, oldest first.
// A deleted product still has a history; an id that never existed is not
// found.
func (s *HistoryService) GetProductHistory(ctx context.Context, productID string) (revs []domain.Revision[domain.Product], err error) {
	ctx, span := tracer.Start(ctx, "HistoryService.GetProductHistory")
	defer func() { endSpan(span, err) }()

	if strings.TrimSpace(productID) == "" {
		return nil, domain.InvalidArgument("product id is required")
	}
	err = s.db.ReadOnly(ctx, func(ctx context.Context, repos port.Repositories) error {
		p, err := repos.Products.GetProduct(ctx, productID)
		if err != nil {
			return fmt.Errorf("get product: %w", err)
		}
		revs, err = repos.Revisions.ProductRevisions(ctx, productID)
		if err != nil {
			return fmt.Errorf("product revisions: %w", err)
		}
		if p == nil && len(revs) == 0 {
			return domain.ProductNotFound(productID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return revs, nil
}
