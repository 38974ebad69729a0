package domain

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers outside the core.
type Kind string

const (
	KindNotFound          Kind = "NOT_FOUND"
	KindAlreadyExists     Kind = "ALREADY_EXISTS"
	KindInsufficientStock Kind = "INSUFFICIENT_STOCK"
	KindInvalidArgument   Kind = "INVALID_ARGUMENT"
	KindInternal          Kind = "INTERNAL"
)

// Error is a sentinel carrying a Kind.
type Error struct {
	kind Kind
	msg  string
}

func (e *Error) Error() string { return e.msg }

func (e *Error) Kind() Kind { return e.kind }

var (
	ErrProductNotFound      = &Error{kind: KindNotFound, msg: "product not found"}
	ErrOrderNotFound        = &Error{kind: KindNotFound, msg: "order not found"}
	ErrProductAlreadyExists = &Error{kind: KindAlreadyExists, msg: "product already exists"}
	ErrDuplicateRequest     = &Error{kind: KindAlreadyExists, msg: "duplicate request"}
	ErrInsufficientStock    = &Error{kind: KindInsufficientStock, msg: "insufficient stock"}
	ErrInvalidArgument      = &Error{kind: KindInvalidArgument, msg: "invalid argument"}
	ErrProductInUse         = &Error{kind: KindInvalidArgument, msg: "product is referenced by existing orders"}
)

// InsufficientStockError reports the first order line whose quantity exceeds
// the product's stock.
type InsufficientStockError struct {
	ProductName string
	Requested   int
	Available   int
}

func NewInsufficientStockError(productName string, requested, available int) *InsufficientStockError {
	return &InsufficientStockError{ProductName: productName, Requested: requested, Available: available}
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %q: requested %d, available %d",
		e.ProductName, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

func (e *InsufficientStockError) Kind() Kind { return KindInsufficientStock }

func ProductNotFound(id string) error {
	return fmt.Errorf("%w: id=%s", ErrProductNotFound, id)
}

func ProductNotFoundByPartNumber(partNumber string) error {
	return fmt.Errorf("%w: partNumber=%s", ErrProductNotFound, partNumber)
}

func OrderNotFound(id string) error {
	return fmt.Errorf("%w: id=%s", ErrOrderNotFound, id)
}

func ProductAlreadyExists(partNumber string) error {
	return fmt.Errorf("%w: partNumber=%s", ErrProductAlreadyExists, partNumber)
}

func InvalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// KindOf returns the Kind of the first classified error in err's chain, or
// KindInternal when nothing in the chain is classified.
func KindOf(err error) Kind {
	var k interface{ Kind() Kind }
	if errors.As(err, &k) {
		return k.Kind()
	}
	return KindInternal
}
