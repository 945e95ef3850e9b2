package order

import "time"

// Lifecycle events published to the message bus.
const (
	EventCreated       = "order.created"
	EventAccepted      = "order.accepted"
	EventRejected      = "order.rejected"
	EventReady         = "order.ready"
	EventStatusUpdated = "order.status_updated"
)

// OrderEvent is the bus payload emitted on every lifecycle change.
type OrderEvent struct {
	Event        string    `json:"event"`
	OrderID      string    `json:"order_id"`
	RestaurantID string    `json:"restaurant_id"`
	CustomerID   string    `json:"customer_id,omitempty"`
	Status       string    `json:"status"`
	Total        float64   `json:"total"`
	OccurredAt   time.Time `json:"occurred_at"`
}
