package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/catalog-orders/internal/core/domain"
	"github.com/rl1809/catalog-orders/internal/port"
)

func seedProduct(t *testing.T, m *MemoryAdapter, p domain.Product) {
	t.Helper()
	err := m.WithinTx(context.Background(), func(ctx context.Context, repos port.Repositories) error {
		return repos.Products.InsertProduct(ctx, p)
	})
	if err != nil {
		t.Fatalf("seed product: %v", err)
	}
}

func TestMemoryAdapter_RollbackDiscardsWrites(t *testing.T) {
	m := NewMemoryAdapter()
	ctx := context.Background()
	seedProduct(t, m, domain.Product{ID: "p-1", PartNumber: "PN-1", Stock: 5})

	boom := errors.New("boom")
	err := m.WithinTx(ctx, func(ctx context.Context, repos port.Repositories) error {
		p, _ := repos.Products.GetProduct(ctx, "p-1")
		p.Stock = 0
		if err := repos.Products.UpdateProduct(ctx, *p); err != nil {
			return err
		}
		if _, err := repos.Revisions.NewRevision(ctx, "admin", time.Now()); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	m.ReadOnly(ctx, func(ctx context.Context, repos port.Repositories) error {
		p, _ := repos.Products.GetProduct(ctx, "p-1")
		if p.Stock != 5 {
			t.Errorf("expected stock 5 after rollback, got %d", p.Stock)
		}
		return nil
	})

	// Revision ids taken by a rolled-back transaction are handed out again.
	m.WithinTx(ctx, func(ctx context.Context, repos port.Repositories) error {
		rev, _ := repos.Revisions.NewRevision(ctx, "admin", time.Now())
		if rev.ID != 1 {
			t.Errorf("expected revision 1, got %d", rev.ID)
		}
		return nil
	})
}

func TestMemoryAdapter_ReadOnlyRejectsWrites(t *testing.T) {
	m := NewMemoryAdapter()
	err := m.ReadOnly(context.Background(), func(ctx context.Context, repos port.Repositories) error {
		return repos.Products.InsertProduct(ctx, domain.Product{ID: "p-1", PartNumber: "PN-1"})
	})
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected write to fail, got %v", err)
	}
}

func TestMemoryAdapter_Constraints(t *testing.T) {
	m := NewMemoryAdapter()
	ctx := context.Background()
	seedProduct(t, m, domain.Product{ID: "p-1", PartNumber: "PN-1", Stock: 1})

	err := m.WithinTx(ctx, func(ctx context.Context, repos port.Repositories) error {
		return repos.Products.InsertProduct(ctx, domain.Product{ID: "p-2", PartNumber: "PN-1"})
	})
	if !errors.Is(err, domain.ErrProductAlreadyExists) {
		t.Errorf("expected ErrProductAlreadyExists, got %v", err)
	}

	err = m.WithinTx(ctx, func(ctx context.Context, repos port.Repositories) error {
		return repos.Products.UpdateProduct(ctx, domain.Product{ID: "p-1", PartNumber: "PN-1", Stock: -1})
	})
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("expected negative stock to be rejected, got %v", err)
	}
}

func TestMemoryAdapter_ListProducts(t *testing.T) {
	m := NewMemoryAdapter()
	ctx := context.Background()
	for _, p := range []domain.Product{
		{ID: "p-1", PartNumber: "PN-1", Name: "Gear", Category: "parts", Price: decimal.NewFromInt(5), Active: true},
		{ID: "p-2", PartNumber: "PN-2", Name: "gearbox", Category: "parts", Price: decimal.NewFromInt(50), Active: true},
		{ID: "p-3", PartNumber: "PN-3", Name: "Belt", Category: "parts", Price: decimal.NewFromInt(8), Active: false},
		{ID: "p-4", PartNumber: "PN-4", Name: "Gear Oil", Category: "fluids", Price: decimal.NewFromInt(12), Active: true},
	} {
		seedProduct(t, m, p)
	}

	active := true
	m.ReadOnly(ctx, func(ctx context.Context, repos port.Repositories) error {
		items, total, err := repos.Products.ListProducts(ctx,
			domain.ProductFilter{Category: "parts", Active: &active, NameContains: "GEAR"},
			domain.Page{Size: 10, Sort: "-price"},
		)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if total != 2 || len(items) != 2 {
			t.Fatalf("expected 2 products, got %d (total %d)", len(items), total)
		}
		if items[0].ID != "p-2" || items[1].ID != "p-1" {
			t.Errorf("expected price descending, got %s, %s", items[0].ID, items[1].ID)
		}

		items, total, _ = repos.Products.ListProducts(ctx, domain.ProductFilter{}, domain.Page{Index: 1, Size: 3, Sort: "name"})
		if total != 4 || len(items) != 1 || items[0].ID != "p-2" {
			t.Errorf("unexpected second page: total=%d items=%+v", total, items)
		}
		return nil
	})
}
