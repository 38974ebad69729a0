package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

// Well-known statuses. Status updates accept any non-empty value.
const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
	OrderStatusShipped   OrderStatus = "SHIPPED"
	OrderStatusDelivered OrderStatus = "DELIVERED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// OrderItem is owned by its Order and never changes after creation.
// UnitPrice is the product price at the moment the order was placed.
type OrderItem struct {
	ID          string          `json:"id"`
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

func (i OrderItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type Order struct {
	ID             string          `json:"id"`
	UserID         string          `json:"user_id"`
	Status         OrderStatus     `json:"status"`
	Total          decimal.Decimal `json:"total"`
	Items          []OrderItem     `json:"items"`
	CreatedBy      string          `json:"created_by"`
	LastModifiedBy string          `json:"last_modified_by"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// NewOrder starts a pending order with no items.
func NewOrder(id string, actor Actor, now time.Time) *Order {
	return &Order{
		ID:             id,
		UserID:         actor.ID,
		Status:         OrderStatusPending,
		Total:          decimal.Zero,
		CreatedBy:      actor.Name(),
		LastModifiedBy: actor.Name(),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// AddItem appends an item and keeps Total equal to the sum of subtotals.
func (o *Order) AddItem(item OrderItem) {
	o.Items = append(o.Items, item)
	o.Total = o.Total.Add(item.Subtotal())
}

// ValidateTotal rejects orders whose total cannot be stored.
func (o *Order) ValidateTotal() error {
	if o.Total.GreaterThan(MaxOrderTotal) {
		return InvalidArgument("order total %s exceeds %s", o.Total.StringFixed(2), MaxOrderTotal.StringFixed(2))
	}
	return nil
}

// ParseOrderStatus trims s and checks it is a storable status. Any
// non-empty value is accepted.
func ParseOrderStatus(s string) (OrderStatus, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", InvalidArgument("status is required")
	}
	if err := checkLength("status", s, MaxStatusLength); err != nil {
		return "", err
	}
	return OrderStatus(s), nil
}

// ItemsTotal recomputes the total from the items.
func (o *Order) ItemsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// Clone returns a copy that shares no item storage with o.
func (o Order) Clone() Order {
	o.Items = append([]OrderItem(nil), o.Items...)
	return o
}

// OrderLine is one requested (product, quantity) pair.
type OrderLine struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// MergeLines validates the requested lines and folds repeated product ids
// into the position of their first occurrence.
func MergeLines(lines []OrderLine) ([]OrderLine, error) {
	if len(lines) == 0 {
		return nil, InvalidArgument("order must contain at least one item")
	}
	merged := make([]OrderLine, 0, len(lines))
	index := make(map[string]int, len(lines))
	for i, line := range lines {
		id := strings.TrimSpace(line.ProductID)
		if id == "" {
			return nil, InvalidArgument("item %d: product id is required", i)
		}
		if line.Quantity <= 0 {
			return nil, InvalidArgument("item %d: quantity must be positive", i)
		}
		if line.Quantity > MaxLineQuantity {
			return nil, InvalidArgument("item %d: quantity must be at most %d", i, MaxLineQuantity)
		}
		if at, ok := index[id]; ok {
			if line.Quantity > MaxLineQuantity-merged[at].Quantity {
				return nil, InvalidArgument("item %d: combined quantity for product %s exceeds %d", i, id, MaxLineQuantity)
			}
			merged[at].Quantity += line.Quantity
			continue
		}
		index[id] = len(merged)
		merged = append(merged, OrderLine{ProductID: id, Quantity: line.Quantity})
	}
	return merged, nil
}
