package order

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderPlacedEvent is emitted once a checkout has been persisted.
type OrderPlacedEvent struct {
	OrderID    string
	UserID     string
	Items      int
	Total      decimal.Decimal
	OccurredAt time.Time
}

func (OrderPlacedEvent) EventName() string { return "order.placed" }

func NewOrderPlacedEvent(o *Order) OrderPlacedEvent {
	items := 0
	for _, l := range o.Items {
		items += l.Quantity
	}
	return OrderPlacedEvent{
		OrderID:    o.ID,
		UserID:     o.UserID,
		Items:      items,
		Total:      o.Total,
		OccurredAt: time.Now().UTC(),
	}
}

// OrderStatusChangedEvent is emitted after a lifecycle transition.
type OrderStatusChangedEvent struct {
	OrderID    string
	From       Status
	To         Status
	OccurredAt time.Time
}

func (OrderStatusChangedEvent) EventName() string { return "order.status_changed" }

func NewOrderStatusChangedEvent(o *Order, from Status) OrderStatusChangedEvent {
	return OrderStatusChangedEvent{
		OrderID:    o.ID,
		From:       from,
		To:         o.Status,
		OccurredAt: time.Now().UTC(),
	}
}
