package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderEventType string

const (
	OrderCreated       OrderEventType = "OrderCreated"
	OrderStatusChanged OrderEventType = "OrderStatusChanged"
)

// OrderEvent is published after an order write commits.
type OrderEvent struct {
	Type       OrderEventType  `json:"type"`
	OrderID    string          `json:"order_id"`
	UserID     string          `json:"user_id"`
	Status     OrderStatus     `json:"status"`
	Total      decimal.Decimal `json:"total"`
	RevisionID int64           `json:"revision_id"`
	OccurredAt time.Time       `json:"occurred_at"`
}

func NewOrderEvent(t OrderEventType, o *Order, rev RevisionInfo) OrderEvent {
	return OrderEvent{
		Type:       t,
		OrderID:    o.ID,
		UserID:     o.UserID,
		Status:     o.Status,
		Total:      o.Total,
		RevisionID: rev.ID,
		OccurredAt: rev.Timestamp,
	}
}
