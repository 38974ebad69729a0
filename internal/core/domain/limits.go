package domain

import (
	"math"

	"github.com/shopspring/decimal"
)

// Upper bounds of stored values. They match the column sizes in the
// storage schema so oversized input is rejected as invalid instead of
// failing at write time.
const (
	MaxPartNumberLength = 64
	MaxNameLength       = 255
	MaxCategoryLength   = 128
	MaxImageURLLength   = 1024
	MaxUserIDLength     = 64
	MaxActorNameLength  = 255
	MaxStatusLength     = 32
	MaxStock            = math.MaxInt32

	// MaxLineQuantity bounds a single order line after repeated products
	// are merged.
	MaxLineQuantity = 1_000_000
)

var (
	MaxPrice      = decimal.RequireFromString("99999999.99")
	MaxOrderTotal = decimal.RequireFromString("9999999999.99")
)

func checkLength(field, v string, limit int) error {
	if len(v) > limit {
		return InvalidArgument("%s must be at most %d bytes", field, limit)
	}
	return nil
}
