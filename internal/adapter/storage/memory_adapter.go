package storage

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rl1809/catalog-orders/internal/core/domain"
	"github.com/rl1809/catalog-orders/internal/port"
)

// MemoryAdapter is an in-process DatabaseRepository. Write transactions are
// fully serialised and operate on a private copy of the state that replaces
// the shared state only on commit.
type MemoryAdapter struct {
	mu    sync.RWMutex
	state *memState
}

type memState struct {
	products    map[string]domain.Product
	orders      map[string]domain.Order
	productRevs map[string][]domain.Revision[domain.Product]
	orderRevs   map[string][]domain.Revision[domain.Order]
	itemRevs    map[string][]domain.Revision[domain.OrderItem] // by order id
	nextRev     int64
}

func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{state: &memState{
		products:    make(map[string]domain.Product),
		orders:      make(map[string]domain.Order),
		productRevs: make(map[string][]domain.Revision[domain.Product]),
		orderRevs:   make(map[string][]domain.Revision[domain.Order]),
		itemRevs:    make(map[string][]domain.Revision[domain.OrderItem]),
	}}
}

func (m *MemoryAdapter) WithinTx(ctx context.Context, fn func(ctx context.Context, repos port.Repositories) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	work := m.state.clone()
	if err := fn(ctx, work.repositories(false)); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.state = work
	return nil
}

func (m *MemoryAdapter) ReadOnly(ctx context.Context, fn func(ctx context.Context, repos port.Repositories) error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx, m.state.repositories(true))
}

func (s *memState) clone() *memState {
	c := &memState{
		products:    make(map[string]domain.Product, len(s.products)),
		orders:      make(map[string]domain.Order, len(s.orders)),
		productRevs: make(map[string][]domain.Revision[domain.Product], len(s.productRevs)),
		orderRevs:   make(map[string][]domain.Revision[domain.Order], len(s.orderRevs)),
		itemRevs:    make(map[string][]domain.Revision[domain.OrderItem], len(s.itemRevs)),
		nextRev:     s.nextRev,
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = v.Clone()
	}
	for k, v := range s.productRevs {
		c.productRevs[k] = slices.Clone(v)
	}
	for k, v := range s.orderRevs {
		c.orderRevs[k] = slices.Clone(v)
	}
	for k, v := range s.itemRevs {
		c.itemRevs[k] = slices.Clone(v)
	}
	return c
}

func (s *memState) repositories(readOnly bool) port.Repositories {
	r := &memRepos{state: s, readOnly: readOnly}
	return port.Repositories{Products: r, Orders: r, Revisions: r}
}

type memRepos struct {
	state    *memState
	readOnly bool
}

var errReadOnlyTx = domain.InvalidArgument("write attempted in read-only transaction")

func (r *memRepos) writable() error {
	if r.readOnly {
		return errReadOnlyTx
	}
	return nil
}

func (r *memRepos) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	p, ok := r.state.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r *memRepos) GetProductByPartNumber(_ context.Context, partNumber string) (*domain.Product, error) {
	for _, p := range r.state.products {
		if p.PartNumber == partNumber {
			return &p, nil
		}
	}
	return nil, nil
}

func (r *memRepos) LockProducts(_ context.Context, ids []string) (map[string]*domain.Product, error) {
	out := make(map[string]*domain.Product, len(ids))
	for _, id := range ids {
		if p, ok := r.state.products[id]; ok {
			out[id] = &p
		}
	}
	return out, nil
}

func (r *memRepos) ListProducts(_ context.Context, filter domain.ProductFilter, page domain.Page) ([]domain.Product, int, error) {
	var matched []domain.Product
	for _, p := range r.state.products {
		if matchesFilter(p, filter) {
			matched = append(matched, p)
		}
	}

	field, desc := page.SortField()
	slices.SortFunc(matched, func(a, b domain.Product) int {
		c := compareProducts(a, b, field)
		if c == 0 {
			c = cmp.Compare(a.ID, b.ID)
		}
		if desc {
			return -c
		}
		return c
	})

	total := len(matched)
	start := min(page.Offset(), total)
	end := min(start+page.Size, total)
	return matched[start:end], total, nil
}

func matchesFilter(p domain.Product, f domain.ProductFilter) bool {
	if f.Category != "" && p.Category != f.Category {
		return false
	}
	if f.Active != nil && p.Active != *f.Active {
		return false
	}
	if f.NameContains != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(f.NameContains)) {
		return false
	}
	if f.MinPrice != nil && p.Price.LessThan(*f.MinPrice) {
		return false
	}
	if f.MaxPrice != nil && p.Price.GreaterThan(*f.MaxPrice) {
		return false
	}
	return true
}

func compareProducts(a, b domain.Product, field string) int {
	switch field {
	case "part_number":
		return cmp.Compare(a.PartNumber, b.PartNumber)
	case "price":
		return a.Price.Cmp(b.Price)
	case "stock":
		return cmp.Compare(a.Stock, b.Stock)
	case "category":
		return cmp.Compare(a.Category, b.Category)
	case "created_at":
		return a.CreatedAt.Compare(b.CreatedAt)
	default:
		return cmp.Compare(a.Name, b.Name)
	}
}

func (r *memRepos) InsertProduct(_ context.Context, p domain.Product) error {
	if err := r.writable(); err != nil {
		return err
	}
	if _, ok := r.state.products[p.ID]; ok {
		return domain.ProductAlreadyExists(p.PartNumber)
	}
	for _, other := range r.state.products {
		if other.PartNumber == p.PartNumber {
			return domain.ProductAlreadyExists(p.PartNumber)
		}
	}
	r.state.products[p.ID] = p
	return nil
}

func (r *memRepos) UpdateProduct(_ context.Context, p domain.Product) error {
	if err := r.writable(); err != nil {
		return err
	}
	if _, ok := r.state.products[p.ID]; !ok {
		return domain.ProductNotFound(p.ID)
	}
	if p.Stock < 0 {
		return domain.InvalidArgument("stock of %s would become negative", p.ID)
	}
	for _, other := range r.state.products {
		if other.ID != p.ID && other.PartNumber == p.PartNumber {
			return domain.ProductAlreadyExists(p.PartNumber)
		}
	}
	r.state.products[p.ID] = p
	return nil
}

func (r *memRepos) DeleteProduct(_ context.Context, id string) error {
	if err := r.writable(); err != nil {
		return err
	}
	for _, o := range r.state.orders {
		for _, item := range o.Items {
			if item.ProductID == id {
				return domain.ErrProductInUse
			}
		}
	}
	delete(r.state.products, id)
	return nil
}

func (r *memRepos) InsertOrder(_ context.Context, o domain.Order) error {
	if err := r.writable(); err != nil {
		return err
	}
	r.state.orders[o.ID] = o.Clone()
	return nil
}

func (r *memRepos) GetOrder(_ context.Context, id string) (*domain.Order, error) {
	o, ok := r.state.orders[id]
	if !ok {
		return nil, nil
	}
	c := o.Clone()
	return &c, nil
}

func (r *memRepos) LockOrder(ctx context.Context, id string) (*domain.Order, error) {
	return r.GetOrder(ctx, id)
}

func (r *memRepos) UpdateOrderStatus(_ context.Context, o domain.Order) error {
	if err := r.writable(); err != nil {
		return err
	}
	stored, ok := r.state.orders[o.ID]
	if !ok {
		return domain.OrderNotFound(o.ID)
	}
	stored.Status = o.Status
	stored.LastModifiedBy = o.LastModifiedBy
	stored.UpdatedAt = o.UpdatedAt
	r.state.orders[o.ID] = stored
	return nil
}

func (r *memRepos) ListOrdersByUser(_ context.Context, userID string) ([]domain.Order, error) {
	return r.listOrders(func(o domain.Order) bool { return o.UserID == userID }), nil
}

func (r *memRepos) ListOrdersByStatus(_ context.Context, status domain.OrderStatus) ([]domain.Order, error) {
	return r.listOrders(func(o domain.Order) bool { return o.Status == status }), nil
}

func (r *memRepos) listOrders(keep func(domain.Order) bool) []domain.Order {
	out := []domain.Order{}
	for _, o := range r.state.orders {
		if keep(o) {
			out = append(out, o.Clone())
		}
	}
	slices.SortFunc(out, func(a, b domain.Order) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return out
}

func (r *memRepos) NewRevision(_ context.Context, actor string, at time.Time) (domain.RevisionInfo, error) {
	if err := r.writable(); err != nil {
		return domain.RevisionInfo{}, err
	}
	r.state.nextRev++
	return domain.RevisionInfo{ID: r.state.nextRev, Timestamp: at, Actor: actor}, nil
}

func (r *memRepos) AppendProductRevision(_ context.Context, rev domain.RevisionInfo, kind domain.RevisionKind, p domain.Product) error {
	if err := r.writable(); err != nil {
		return err
	}
	r.state.productRevs[p.ID] = append(r.state.productRevs[p.ID], domain.Revision[domain.Product]{
		RevisionInfo: rev, Kind: kind, Snapshot: p,
	})
	return nil
}

func (r *memRepos) AppendOrderRevision(_ context.Context, rev domain.RevisionInfo, kind domain.RevisionKind, o domain.Order) error {
	if err := r.writable(); err != nil {
		return err
	}
	r.state.orderRevs[o.ID] = append(r.state.orderRevs[o.ID], domain.Revision[domain.Order]{
		RevisionInfo: rev, Kind: kind, Snapshot: o.Clone(),
	})
	if kind == domain.RevisionModified {
		return nil
	}
	for _, item := range o.Items {
		r.state.itemRevs[o.ID] = append(r.state.itemRevs[o.ID], domain.Revision[domain.OrderItem]{
			RevisionInfo: rev, Kind: kind, Snapshot: item,
		})
	}
	return nil
}

func (r *memRepos) ProductRevisions(_ context.Context, productID string) ([]domain.Revision[domain.Product], error) {
	return slices.Clone(r.state.productRevs[productID]), nil
}

func (r *memRepos) OrderRevisions(_ context.Context, orderID string) ([]domain.Revision[domain.Order], error) {
	revs := make([]domain.Revision[domain.Order], 0, len(r.state.orderRevs[orderID]))
	for _, rev := range r.state.orderRevs[orderID] {
		rev.Snapshot = rev.Snapshot.Clone()
		revs = append(revs, rev)
	}
	return revs, nil
}

func (r *memRepos) OrderItemRevisions(_ context.Context, orderID string) ([]domain.Revision[domain.OrderItem], error) {
	revs := slices.Clone(r.state.itemRevs[orderID])
	if revs == nil {
		revs = []domain.Revision[domain.OrderItem]{}
	}
	return revs, nil
}
