package domain

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID             string          `json:"id"`
	PartNumber     string          `json:"part_number"`
	Name           string          `json:"name"`
	Description    string          `json:"description,omitempty"`
	Specifications json.RawMessage `json:"specifications,omitempty"`
	Category       string          `json:"category,omitempty"`
	ImageURL       string          `json:"image_url,omitempty"`
	Price          decimal.Decimal `json:"price"`
	Active         bool            `json:"active"`
	Stock          int             `json:"stock"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// ProductInput carries the caller-editable fields of a product.
type ProductInput struct {
	PartNumber     string
	Name           string
	Description    string
	Specifications json.RawMessage
	Category       string
	ImageURL       string
	Price          decimal.Decimal
	Active         bool
	Stock          int
}

func (in ProductInput) Validate() error {
	if strings.TrimSpace(in.PartNumber) == "" {
		return InvalidArgument("part number is required")
	}
	if strings.TrimSpace(in.Name) == "" {
		return InvalidArgument("name is required")
	}
	if in.Price.IsNegative() {
		return InvalidArgument("price must not be negative")
	}
	if in.Price.Round(2).GreaterThan(MaxPrice) {
		return InvalidArgument("price must be at most %s", MaxPrice.StringFixed(2))
	}
	if in.Stock < 0 {
		return InvalidArgument("stock must not be negative")
	}
	if in.Stock > MaxStock {
		return InvalidArgument("stock must be at most %d", MaxStock)
	}
	for _, f := range []struct {
		name  string
		v     string
		limit int
	}{
		{"part number", strings.TrimSpace(in.PartNumber), MaxPartNumberLength},
		{"name", in.Name, MaxNameLength},
		{"category", in.Category, MaxCategoryLength},
		{"image url", in.ImageURL, MaxImageURLLength},
	} {
		if err := checkLength(f.name, f.v, f.limit); err != nil {
			return err
		}
	}
	if len(in.Specifications) > 0 && !json.Valid(in.Specifications) {
		return InvalidArgument("specifications must be a JSON document")
	}
	return nil
}

// Apply copies the input onto p. Identity and timestamps are left alone.
func (in ProductInput) Apply(p *Product) {
	p.PartNumber = strings.TrimSpace(in.PartNumber)
	p.Name = in.Name
	p.Description = in.Description
	p.Specifications = in.Specifications
	p.Category = in.Category
	p.ImageURL = in.ImageURL
	p.Price = in.Price.Round(2)
	p.Active = in.Active
	p.Stock = in.Stock
}

// ProductFilter narrows a product listing. Zero values mean "any".
type ProductFilter struct {
	Category     string
	Active       *bool
	NameContains string
	MinPrice     *decimal.Decimal
	MaxPrice     *decimal.Decimal
}

func (f ProductFilter) Validate() error {
	if f.MinPrice != nil && f.MinPrice.IsNegative() {
		return InvalidArgument("minimum price must not be negative")
	}
	if f.MaxPrice != nil && f.MaxPrice.IsNegative() {
		return InvalidArgument("maximum price must not be negative")
	}
	if f.MinPrice != nil && f.MaxPrice != nil && f.MinPrice.GreaterThan(*f.MaxPrice) {
		return InvalidArgument("minimum price %s exceeds maximum price %s", f.MinPrice, f.MaxPrice)
	}
	return nil
}

type ProductPage struct {
	Items []Product `json:"items"`
	Total int       `json:"total"`
	Page  int       `json:"page"`
	Size  int       `json:"size"`
}
