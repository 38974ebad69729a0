package domain

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestMergeLines(t *testing.T) {
	merged, err := MergeLines([]OrderLine{
		{ProductID: "b", Quantity: 2},
		{ProductID: "a", Quantity: 1},
		{ProductID: " b ", Quantity: 3},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(merged) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(merged))
	}
	if merged[0].ProductID != "b" || merged[0].Quantity != 5 {
		t.Errorf("expected b x5 first, got %+v", merged[0])
	}
	if merged[1].ProductID != "a" || merged[1].Quantity != 1 {
		t.Errorf("expected a x1 second, got %+v", merged[1])
	}
}

func TestMergeLines_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		lines []OrderLine
	}{
		{"empty", nil},
		{"missing product", []OrderLine{{ProductID: " ", Quantity: 1}}},
		{"zero quantity", []OrderLine{{ProductID: "a", Quantity: 0}}},
		{"negative quantity", []OrderLine{{ProductID: "a", Quantity: 1}, {ProductID: "b", Quantity: -2}}},
		{"quantity above limit", []OrderLine{{ProductID: "a", Quantity: MaxLineQuantity + 1}}},
		{"merged quantity above limit", []OrderLine{{ProductID: "a", Quantity: MaxLineQuantity}, {ProductID: "a", Quantity: 1}}},
		{"merged quantity overflows int", []OrderLine{{ProductID: "a", Quantity: math.MaxInt}, {ProductID: "a", Quantity: math.MaxInt}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := MergeLines(tt.lines)
			if !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("expected ErrInvalidArgument, got %v", err)
			}
		})
	}
}

func TestMergeLines_AtLimit(t *testing.T) {
	merged, err := MergeLines([]OrderLine{
		{ProductID: "a", Quantity: MaxLineQuantity - 1},
		{ProductID: "a", Quantity: 1},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if merged[0].Quantity != MaxLineQuantity {
		t.Errorf("expected %d, got %d", MaxLineQuantity, merged[0].Quantity)
	}
}

func TestOrder_ValidateTotal(t *testing.T) {
	o := Order{Total: MaxOrderTotal}
	if err := o.ValidateTotal(); err != nil {
		t.Errorf("unexpected error at the limit: %v", err)
	}
	o.Total = MaxOrderTotal.Add(decimal.RequireFromString("0.01"))
	if err := o.ValidateTotal(); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestParseOrderStatus(t *testing.T) {
	got, err := ParseOrderStatus("  SHIPPED ")
	if err != nil || got != OrderStatusShipped {
		t.Errorf("expected SHIPPED, got %q (%v)", got, err)
	}
	for _, bad := range []string{"", "   ", strings.Repeat("S", MaxStatusLength+1)} {
		if _, err := ParseOrderStatus(bad); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("status %q: expected ErrInvalidArgument, got %v", bad, err)
		}
	}
}

func TestOrder_AddItemKeepsTotal(t *testing.T) {
	o := NewOrder("o-1", Actor{ID: "u-1", Email: "u1@example.com"}, time.Now())
	if o.Status != OrderStatusPending {
		t.Errorf("expected PENDING, got %s", o.Status)
	}
	if o.CreatedBy != "u1@example.com" {
		t.Errorf("expected email as creator, got %s", o.CreatedBy)
	}

	o.AddItem(OrderItem{ID: "i-1", Quantity: 5, UnitPrice: decimal.RequireFromString("10.00")})
	o.AddItem(OrderItem{ID: "i-2", Quantity: 3, UnitPrice: decimal.RequireFromString("0.10")})

	want := decimal.RequireFromString("50.30")
	if !o.Total.Equal(want) {
		t.Errorf("expected total %s, got %s", want, o.Total)
	}
	if !o.ItemsTotal().Equal(o.Total) {
		t.Errorf("items total %s differs from total %s", o.ItemsTotal(), o.Total)
	}
}

func TestOrder_Clone(t *testing.T) {
	o := Order{ID: "o-1", Items: []OrderItem{{ID: "i-1", Quantity: 1}}}
	c := o.Clone()
	c.Items[0].Quantity = 9

	if o.Items[0].Quantity != 1 {
		t.Error("clone shares item storage with original")
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"product not found", ProductNotFound("p-1"), KindNotFound},
		{"order not found", OrderNotFound("o-1"), KindNotFound},
		{"already exists", ProductAlreadyExists("PN-1"), KindAlreadyExists},
		{"duplicate request", ErrDuplicateRequest, KindAlreadyExists},
		{"insufficient stock", NewInsufficientStockError("Widget", 5, 2), KindInsufficientStock},
		{"wrapped stock", wrap(NewInsufficientStockError("Widget", 5, 2)), KindInsufficientStock},
		{"invalid argument", InvalidArgument("bad %s", "thing"), KindInvalidArgument},
		{"in use", ErrProductInUse, KindInvalidArgument},
		{"unclassified", errors.New("boom"), KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func wrap(err error) error {
	return &wrapped{err}
}

type wrapped struct{ err error }

func (w *wrapped) Error() string { return "tx: " + w.err.Error() }
func (w *wrapped) Unwrap() error { return w.err }

func TestInsufficientStockError(t *testing.T) {
	err := NewInsufficientStockError("Widget", 5, 2)
	if !errors.Is(err, ErrInsufficientStock) {
		t.Error("expected errors.Is ErrInsufficientStock")
	}
	want := `insufficient stock for product "Widget": requested 5, available 2`
	if err.Error() != want {
		t.Errorf("expected %q, got %q", want, err.Error())
	}
}

func TestActor(t *testing.T) {
	if err := (Actor{}).Validate(); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
	if err := (Actor{ID: strings.Repeat("u", MaxUserIDLength+1)}).Validate(); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected long id to be rejected, got %v", err)
	}
	if name := (Actor{ID: "u-1"}).Name(); name != "u-1" {
		t.Errorf("expected id fallback, got %s", name)
	}
}
