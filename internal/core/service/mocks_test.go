package service

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/rl1809/catalog-orders/internal/adapter/storage"
	"github.com/rl1809/catalog-orders/internal/core/domain"
	"github.com/rl1809/catalog-orders/internal/port"
)

// Mock CacheRepository. Like go-redis, every call fails once ctx is done.
type mockCacheRepo struct {
	mu          sync.Mutex
	idempotency map[string]string
	products    map[string]domain.Product
	generations map[string]int64
	invalidated []string
	productHits int
}

func newMockCacheRepo() *mockCacheRepo {
	return &mockCacheRepo{
		idempotency: make(map[string]string),
		products:    make(map[string]domain.Product),
		generations: make(map[string]int64),
	}
}

func (m *mockCacheRepo) SetIdempotency(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.idempotency[key]; ok {
		return false, nil
	}
	m.idempotency[key] = ""
	return true, nil
}

func (m *mockCacheRepo) CompleteIdempotency(ctx context.Context, key, orderID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.idempotency[key] = orderID
	return nil
}

func (m *mockCacheRepo) ReleaseIdempotency(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.idempotency[key] == "" {
		delete(m.idempotency, key)
	}
	return nil
}

func (m *mockCacheRepo) IdempotencyResult(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.idempotency[key], nil
}

func (m *mockCacheRepo) idempotencyValue(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.idempotency[key]
	return v, ok
}

func (m *mockCacheRepo) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, nil
	}
	m.productHits++
	return &p, nil
}

func (m *mockCacheRepo) ProductGeneration(ctx context.Context, id string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generations[id], nil
}

func (m *mockCacheRepo) SetProduct(ctx context.Context, p domain.Product, generation int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.generations[p.ID] != generation {
		return false, nil
	}
	m.products[p.ID] = p
	return true, nil
}

func (m *mockCacheRepo) InvalidateProducts(ctx context.Context, ids ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.products, id)
		m.generations[id]++
	}
	m.invalidated = append(m.invalidated, ids...)
	return nil
}

func (m *mockCacheRepo) cached(id string) (domain.Product, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	return p, ok
}

// Mock EventPublisher
type mockPublisher struct {
	mu     sync.Mutex
	events []domain.OrderEvent
}

func (m *mockPublisher) Publish(ctx context.Context, event domain.OrderEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *mockPublisher) Events() []domain.OrderEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.OrderEvent(nil), m.events...)
}

var (
	admin = domain.Actor{ID: "admin-1", Email: "admin@example.com"}
	buyer = domain.Actor{ID: "user-1", Email: "user1@example.com"}
)

type testEnv struct {
	db       *storage.MemoryAdapter
	cache    *mockCacheRepo
	events   *mockPublisher
	orders   *OrderService
	products *ProductService
	history  *HistoryService
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	env := &testEnv{
		db:     storage.NewMemoryAdapter(),
		cache:  newMockCacheRepo(),
		events: &mockPublisher{},
	}
	opts = append([]Option{WithCache(env.cache), WithEventPublisher(env.events)}, opts...)
	env.orders = NewOrderService(env.db, opts...)
	env.products = NewProductService(env.db, opts...)
	env.history = NewHistoryService(env.db, opts...)
	return env
}

func (e *testEnv) createProduct(t *testing.T, partNumber, name, price string, stock int) *domain.Product {
	t.Helper()
	p, err := e.products.CreateProduct(context.Background(), admin, domain.ProductInput{
		PartNumber: partNumber,
		Name:       name,
		Price:      decimal.RequireFromString(price),
		Active:     true,
		Stock:      stock,
	})
	if err != nil {
		t.Fatalf("create product %s: %v", partNumber, err)
	}
	return p
}

func (e *testEnv) stockOf(t *testing.T, id string) int {
	t.Helper()
	var stock int
	err := e.db.ReadOnly(context.Background(), func(ctx context.Context, repos port.Repositories) error {
		p, err := repos.Products.GetProduct(ctx, id)
		if err != nil {
			return err
		}
		stock = p.Stock
		return nil
	})
	if err != nil {
		t.Fatalf("read stock of %s: %v", id, err)
	}
	return stock
}

// interruptedDB cancels the caller's context around its first write
// transaction, the way a client disconnect does. Without afterCommit the
// transaction never runs; with it, the transaction commits first.
type interruptedDB struct {
	port.DatabaseRepository
	cancel      context.CancelFunc
	afterCommit bool
	once        sync.Once
}

func (d *interruptedDB) WithinTx(ctx context.Context, fn func(ctx context.Context, repos port.Repositories) error) error {
	first := false
	d.once.Do(func() { first = true })
	if !first {
		return d.DatabaseRepository.WithinTx(ctx, fn)
	}
	if !d.afterCommit {
		d.cancel()
		return ctx.Err()
	}
	err := d.DatabaseRepository.WithinTx(ctx, fn)
	d.cancel()
	return err
}

// racingDB runs hook once, right after its first read-only transaction
// returns and before the caller sees the result.
type racingDB struct {
	port.DatabaseRepository
	hook func()
	once sync.Once
}

func (d *racingDB) ReadOnly(ctx context.Context, fn func(ctx context.Context, repos port.Repositories) error) error {
	err := d.DatabaseRepository.ReadOnly(ctx, fn)
	d.once.Do(d.hook)
	return err
}
