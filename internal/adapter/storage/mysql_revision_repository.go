package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rl1809/catalog-orders/internal/core/domain"
)

// revisionRepository keeps one row per write transaction in revisions and
// one snapshot row per changed entity in the *_revisions tables. Rows are
// only ever inserted.
type revisionRepository struct {
	q querier
}

func (r *revisionRepository) NewRevision(ctx context.Context, actor string, at time.Time) (domain.RevisionInfo, error) {
	res, err := r.q.ExecContext(ctx, `INSERT INTO revisions (created_at, actor) VALUES (?, ?)`, at, actor)
	if err != nil {
		return domain.RevisionInfo{}, fmt.Errorf("insert revision: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.RevisionInfo{}, fmt.Errorf("revision id: %w", err)
	}
	return domain.RevisionInfo{ID: id, Timestamp: at, Actor: actor}, nil
}

func (r *revisionRepository) AppendProductRevision(ctx context.Context, rev domain.RevisionInfo, kind domain.RevisionKind, p domain.Product) error {
	snapshot, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode product snapshot: %w", err)
	}
	_, err = r.q.ExecContext(ctx,
		`INSERT INTO product_revisions (rev_id, product_id, kind, snapshot) VALUES (?, ?, ?, ?)`,
		rev.ID, p.ID, string(kind), string(snapshot),
	)
	if err != nil {
		return fmt.Errorf("insert product revision: %w", err)
	}
	return nil
}

func (r *revisionRepository) AppendOrderRevision(ctx context.Context, rev domain.RevisionInfo, kind domain.RevisionKind, o domain.Order) error {
	snapshot, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("encode order snapshot: %w", err)
	}
	_, err = r.q.ExecContext(ctx,
		`INSERT INTO order_revisions (rev_id, order_id, kind, snapshot) VALUES (?, ?, ?, ?)`,
		rev.ID, o.ID, string(kind), string(snapshot),
	)
	if err != nil {
		return fmt.Errorf("insert order revision: %w", err)
	}
	if kind == domain.RevisionModified {
		return nil
	}

	for _, item := range o.Items {
		snapshot, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("encode item snapshot: %w", err)
		}
		_, err = r.q.ExecContext(ctx,
			`INSERT INTO order_item_revisions (rev_id, item_id, order_id, kind, snapshot) VALUES (?, ?, ?, ?, ?)`,
			rev.ID, item.ID, o.ID, string(kind), string(snapshot),
		)
		if err != nil {
			return fmt.Errorf("insert order item revision: %w", err)
		}
	}
	return nil
}

func (r *revisionRepository) ProductRevisions(ctx context.Context, productID string) ([]domain.Revision[domain.Product], error) {
	return queryRevisions[domain.Product](ctx, r.q, `
		SELECT r.id, r.created_at, r.actor, pr.kind, pr.snapshot
		FROM product_revisions pr JOIN revisions r ON r.id = pr.rev_id
		WHERE pr.product_id = ?
		ORDER BY pr.rev_id`, productID)
}

func (r *revisionRepository) OrderRevisions(ctx context.Context, orderID string) ([]domain.Revision[domain.Order], error) {
	return queryRevisions[domain.Order](ctx, r.q, `
		SELECT r.id, r.created_at, r.actor, o.kind, o.snapshot
		FROM order_revisions o JOIN revisions r ON r.id = o.rev_id
		WHERE o.order_id = ?
		ORDER BY o.rev_id`, orderID)
}

func (r *revisionRepository) OrderItemRevisions(ctx context.Context, orderID string) ([]domain.Revision[domain.OrderItem], error) {
	return queryRevisions[domain.OrderItem](ctx, r.q, `
		SELECT r.id, r.created_at, r.actor, ir.kind, ir.snapshot
		FROM order_item_revisions ir
		JOIN revisions r ON r.id = ir.rev_id
		JOIN order_items oi ON oi.id = ir.item_id
		WHERE ir.order_id = ?
		ORDER BY ir.rev_id, oi.line_no`, orderID)
}

func queryRevisions[T any](ctx context.Context, q querier, query, id string) ([]domain.Revision[T], error) {
	rows, err := q.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("query revisions: %w", err)
	}
	defer rows.Close()

	revs := []domain.Revision[T]{}
	for rows.Next() {
		var (
			rev      domain.Revision[T]
			kind     string
			snapshot []byte
		)
		if err := rows.Scan(&rev.ID, &rev.Timestamp, &rev.Actor, &kind, &snapshot); err != nil {
			return nil, fmt.Errorf("scan revision: %w", err)
		}
		if err := json.Unmarshal(snapshot, &rev.Snapshot); err != nil {
			return nil, fmt.Errorf("decode revision %d: %w", rev.ID, err)
		}
		rev.Kind = domain.RevisionKind(kind)
		revs = append(revs, rev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate revisions: %w", err)
	}
	return revs, nil
}
