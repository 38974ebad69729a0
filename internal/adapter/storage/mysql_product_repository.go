package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rl1809/catalog-orders/internal/core/domain"
)

const productColumns = `id, part_number, name, description, specifications, category, image_url,
	price, active, stock, created_at, updated_at`

var productSortColumns = map[string]string{
	"name":        "name",
	"part_number": "part_number",
	"price":       "price",
	"stock":       "stock",
	"category":    "category",
	"created_at":  "created_at",
}

type productRepository struct {
	q querier
}

func scanProduct(s rowScanner) (domain.Product, error) {
	var (
		p     domain.Product
		specs []byte
	)
	err := s.Scan(&p.ID, &p.PartNumber, &p.Name, &p.Description, &specs, &p.Category, &p.ImageURL,
		&p.Price, &p.Active, &p.Stock, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return p, err
	}
	if len(specs) > 0 {
		p.Specifications = json.RawMessage(specs)
	}
	return p, nil
}

// jsonArg sends a JSON document as text; MySQL refuses JSON built from
// binary-charset strings.
func jsonArg(doc json.RawMessage) any {
	if len(doc) == 0 {
		return nil
	}
	return string(doc)
}

func (r *productRepository) getOne(ctx context.Context, query string, args ...any) (*domain.Product, error) {
	p, err := scanProduct(r.q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query product: %w", err)
	}
	return &p, nil
}

func (r *productRepository) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	return r.getOne(ctx, `SELECT `+productColumns+` FROM products WHERE id = ?`, id)
}

func (r *productRepository) GetProductByPartNumber(ctx context.Context, partNumber string) (*domain.Product, error) {
	return r.getOne(ctx, `SELECT `+productColumns+` FROM products WHERE part_number = ?`, partNumber)
}

// LockProducts takes the row locks in primary key order so concurrent
// orders touching the same products cannot lock them in opposite orders.
func (r *productRepository) LockProducts(ctx context.Context, ids []string) (map[string]*domain.Product, error) {
	out := make(map[string]*domain.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := r.q.QueryContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id IN (`+placeholders(len(ids))+`) ORDER BY id FOR UPDATE`,
		stringArgs(ids)...,
	)
	if err != nil {
		return nil, fmt.Errorf("lock products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out[p.ID] = &p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return out, nil
}

func productWhere(f domain.ProductFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.Category != "" {
		conds = append(conds, "category = ?")
		args = append(args, f.Category)
	}
	if f.Active != nil {
		conds = append(conds, "active = ?")
		args = append(args, *f.Active)
	}
	if f.NameContains != "" {
		conds = append(conds, "name LIKE ?")
		args = append(args, "%"+escapeLike(f.NameContains)+"%")
	}
	if f.MinPrice != nil {
		conds = append(conds, "price >= ?")
		args = append(args, *f.MinPrice)
	}
	if f.MaxPrice != nil {
		conds = append(conds, "price <= ?")
		args = append(args, *f.MaxPrice)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }

func (r *productRepository) ListProducts(ctx context.Context, filter domain.ProductFilter, page domain.Page) ([]domain.Product, int, error) {
	where, args := productWhere(filter)

	var total int
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	field, desc := page.SortField()
	column, ok := productSortColumns[field]
	if !ok {
		return nil, 0, domain.InvalidArgument("unsupported sort field %q", field)
	}
	order := column
	if desc {
		order += " DESC"
	}

	rows, err := r.q.QueryContext(ctx,
		`SELECT `+productColumns+` FROM products`+where+` ORDER BY `+order+`, id LIMIT ? OFFSET ?`,
		append(args, page.Size, page.Offset())...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := []domain.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate products: %w", err)
	}
	return products, total, nil
}

func (r *productRepository) InsertProduct(ctx context.Context, p domain.Product) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO products (id, part_number, name, description, specifications, category, image_url,
			price, active, stock, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.PartNumber, p.Name, p.Description, jsonArg(p.Specifications), p.Category, p.ImageURL,
		p.Price, p.Active, p.Stock, p.CreatedAt, p.UpdatedAt,
	)
	if mysqlErrorNumber(err) == erDupEntry {
		return domain.ProductAlreadyExists(p.PartNumber)
	}
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

func (r *productRepository) UpdateProduct(ctx context.Context, p domain.Product) error {
	_, err := r.q.ExecContext(ctx, `
		UPDATE products
		SET part_number = ?, name = ?, description = ?, specifications = ?, category = ?, image_url = ?,
			price = ?, active = ?, stock = ?, updated_at = ?
		WHERE id = ?`,
		p.PartNumber, p.Name, p.Description, jsonArg(p.Specifications), p.Category, p.ImageURL,
		p.Price, p.Active, p.Stock, p.UpdatedAt, p.ID,
	)
	if mysqlErrorNumber(err) == erDupEntry {
		return domain.ProductAlreadyExists(p.PartNumber)
	}
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	return nil
}

func (r *productRepository) DeleteProduct(ctx context.Context, id string) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	if mysqlErrorNumber(err) == erRowIsReferenced2 {
		return domain.ErrProductInUse
	}
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	return nil
}
