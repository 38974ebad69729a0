package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/rl1809/catalog-orders/internal/core/domain"
	"github.com/rl1809/catalog-orders/internal/port"
)

type ProductService struct {
	db port.DatabaseRepository
	options
}

func NewProductService(db port.DatabaseRepository, opts ...Option) *ProductService {
	return &ProductService{db: db, options: newOptions(opts)}
}

func (s *ProductService) CreateProduct(ctx context.Context, actor domain.Actor, in domain.ProductInput) (product *domain.Product, err error) {
	ctx, span := tracer.Start(ctx, "ProductService.CreateProduct")
	defer func() { endSpan(span, err) }()

	if err := actor.Validate(); err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	txCtx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()

	err = s.db.WithinTx(txCtx, func(ctx context.Context, repos port.Repositories) error {
		existing, err := repos.Products.GetProductByPartNumber(ctx, strings.TrimSpace(in.PartNumber))
		if err != nil {
			return fmt.Errorf("get product by part number: %w", err)
		}
		if existing != nil {
			return domain.ProductAlreadyExists(existing.PartNumber)
		}

		now := s.clock()
		p := domain.Product{ID: s.newID(), CreatedAt: now, UpdatedAt: now}
		in.Apply(&p)

		if err := repos.Products.InsertProduct(ctx, p); err != nil {
			return fmt.Errorf("insert product: %w", err)
		}
		rev, err := repos.Revisions.NewRevision(ctx, actor.Name(), now)
		if err != nil {
			return fmt.Errorf("new revision: %w", err)
		}
		if err := repos.Revisions.AppendProductRevision(ctx, rev, domain.RevisionCreated, p); err != nil {
			return fmt.Errorf("append product revision: %w", err)
		}
		product = &p
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("product created", zap.String("product_id", product.ID), zap.String("part_number", product.PartNumber))
	return product, nil
}

// UpdateProduct replaces every editable field of the product, stock included.
// The row is locked so the write cannot interleave with an order decrement.
func (s *ProductService) UpdateProduct(ctx context.Context, actor domain.Actor, id string, in domain.ProductInput) (product *domain.Product, err error) {
	ctx, span := tracer.Start(ctx, "ProductService.UpdateProduct")
	defer func() { endSpan(span, err) }()

	if err := actor.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(id) == "" {
		return nil, domain.InvalidArgument("product id is required")
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	txCtx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()

	err = s.db.WithinTx(txCtx, func(ctx context.Context, repos port.Repositories) error {
		locked, err := repos.Products.LockProducts(ctx, []string{id})
		if err != nil {
			return fmt.Errorf("lock product: %w", err)
		}
		p, ok := locked[id]
		if !ok {
			return domain.ProductNotFound(id)
		}

		partNumber := strings.TrimSpace(in.PartNumber)
		if partNumber != p.PartNumber {
			other, err := repos.Products.GetProductByPartNumber(ctx, partNumber)
			if err != nil {
				return fmt.Errorf("get product by part number: %w", err)
			}
			if other != nil && other.ID != p.ID {
				return domain.ProductAlreadyExists(partNumber)
			}
		}

		now := s.clock()
		in.Apply(p)
		p.UpdatedAt = now

		if err := repos.Products.UpdateProduct(ctx, *p); err != nil {
			return fmt.Errorf("update product: %w", err)
		}
		rev, err := repos.Revisions.NewRevision(ctx, actor.Name(), now)
		if err != nil {
			return fmt.Errorf("new revision: %w", err)
		}
		if err := repos.Revisions.AppendProductRevision(ctx, rev, domain.RevisionModified, *p); err != nil {
			return fmt.Errorf("append product revision: %w", err)
		}
		product = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, id)
	s.logger.Info("product updated", zap.String("product_id", id))
	return product, nil
}

// DeleteProduct removes the product and records a DELETED revision holding
// its last state. Products referenced by orders cannot be deleted.
func (s *ProductService) DeleteProduct(ctx context.Context, actor domain.Actor, id string) (err error) {
	ctx, span := tracer.Start(ctx, "ProductService.DeleteProduct")
	defer func() { endSpan(span, err) }()

	if err := actor.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(id) == "" {
		return domain.InvalidArgument("product id is required")
	}

	txCtx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()

	err = s.db.WithinTx(txCtx, func(ctx context.Context, repos port.Repositories) error {
		locked, err := repos.Products.LockProducts(ctx, []string{id})
		if err != nil {
			return fmt.Errorf("lock product: %w", err)
		}
		p, ok := locked[id]
		if !ok {
			return domain.ProductNotFound(id)
		}

		if err := repos.Products.DeleteProduct(ctx, id); err != nil {
			return fmt.Errorf("delete product: %w", err)
		}
		rev, err := repos.Revisions.NewRevision(ctx, actor.Name(), s.clock())
		if err != nil {
			return fmt.Errorf("new revision: %w", err)
		}
		if err := repos.Revisions.AppendProductRevision(ctx, rev, domain.RevisionDeleted, *p); err != nil {
			return fmt.Errorf("append product revision: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx, id)
	s.logger.Info("product deleted", zap.String("product_id", id))
	return nil
}

// GetProduct reads through the product cache when one is configured.
func (s *ProductService) GetProduct(ctx context.Context, id string) (product *domain.Product, err error) {
	ctx, span := tracer.Start(ctx, "ProductService.GetProduct")
	defer func() { endSpan(span, err) }()

	if strings.TrimSpace(id) == "" {
		return nil, domain.InvalidArgument("product id is required")
	}

	// fill stays false when the cache is unavailable or the generation
	// could not be read.
	var (
		fill       bool
		generation int64
	)
	if s.cache != nil {
		cached, err := s.cache.GetProduct(ctx, id)
		if err != nil {
			s.logger.Warn("read cached product", zap.String("product_id", id), zap.Error(err))
		} else if cached != nil {
			return cached, nil
		} else if generation, err = s.cache.ProductGeneration(ctx, id); err != nil {
			s.logger.Warn("read product cache generation", zap.String("product_id", id), zap.Error(err))
		} else {
			fill = true
		}
	}

	err = s.db.ReadOnly(ctx, func(ctx context.Context, repos port.Repositories) error {
		p, err := repos.Products.GetProduct(ctx, id)
		if err != nil {
			return fmt.Errorf("get product: %w", err)
		}
		if p == nil {
			return domain.ProductNotFound(id)
		}
		product = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	if fill {
		stored, err := s.cache.SetProduct(ctx, *product, generation)
		if err != nil {
			s.logger.Warn("cache product", zap.String("product_id", id), zap.Error(err))
		} else if !stored {
			s.logger.Debug("skipped stale product cache fill", zap.String("product_id", id))
		}
	}
	return product, nil
}

func (s *ProductService) GetProductByPartNumber(ctx context.Context, partNumber string) (product *domain.Product, err error) {
	ctx, span := tracer.Start(ctx, "ProductService.GetProductByPartNumber")
	defer func() { endSpan(span, err) }()

	partNumber = strings.TrimSpace(partNumber)
	if partNumber == "" {
		return nil, domain.InvalidArgument("part number is required")
	}
	err = s.db.ReadOnly(ctx, func(ctx context.Context, repos port.Repositories) error {
		p, err := repos.Products.GetProductByPartNumber(ctx, partNumber)
		if err != nil {
			return fmt.Errorf("get product by part number: %w", err)
		}
		if p == nil {
			return domain.ProductNotFoundByPartNumber(partNumber)
		}
		product = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return product, nil
}

func (s *ProductService) ListProducts(ctx context.Context, filter domain.ProductFilter, page domain.Page) (result *domain.ProductPage, err error) {
	ctx, span := tracer.Start(ctx, "ProductService.ListProducts")
	defer func() { endSpan(span, err) }()

	if err := filter.Validate(); err != nil {
		return nil, err
	}
	page, err = page.Normalize()
	if err != nil {
		return nil, err
	}

	err = s.db.ReadOnly(ctx, func(ctx context.Context, repos port.Repositories) error {
		items, total, err := repos.Products.ListProducts(ctx, filter, page)
		if err != nil {
			return fmt.Errorf("list products: %w", err)
		}
		if items == nil {
			items = []domain.Product{}
		}
		result = &domain.ProductPage{Items: items, Total: total, Page: page.Index, Size: page.Size}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *ProductService) invalidate(ctx context.Context, ids ...string) {
	if s.cache == nil {
		return
	}
	ctx, cancel := detached(ctx)
	defer cancel()
	if err := s.cache.InvalidateProducts(ctx, ids...); err != nil {
		s.logger.Warn("invalidate cached products", zap.Strings("product_ids", ids), zap.Error(err))
	}
}
