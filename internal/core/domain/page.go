package domain

import "strings"

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Page is a zero-based page request. Sort is a field name, optionally
// prefixed with "-" for descending order.
type Page struct {
	Index int
	Size  int
	Sort  string
}

var productSortFields = map[string]bool{
	"name":        true,
	"part_number": true,
	"price":       true,
	"stock":       true,
	"category":    true,
	"created_at":  true,
}

// Normalize clamps the page to sane bounds and validates the sort field.
func (p Page) Normalize() (Page, error) {
	if p.Index < 0 {
		return p, InvalidArgument("page index must not be negative")
	}
	if p.Size <= 0 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	if p.Sort == "" {
		p.Sort = "name"
	}
	if field, _ := p.SortField(); !productSortFields[field] {
		return p, InvalidArgument("unsupported sort field %q", field)
	}
	return p, nil
}

func (p Page) Offset() int { return p.Index * p.Size }

// SortField splits Sort into the field name and direction.
func (p Page) SortField() (field string, desc bool) {
	if strings.HasPrefix(p.Sort, "-") {
		return strings.TrimPrefix(p.Sort, "-"), true
	}
	return p.Sort, false
}
