package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// OrderItem is a single line item as placed by the customer. It is stored
// embedded in the order row (items column), not in a separate table.
type OrderItem struct {
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
	Note     string  `json:"note,omitempty"`
}

// Order is one customer order moving through the fulfilment lifecycle.
// OrderID is the shareable identifier; ID is the internal row key and never
// leaves the service.
type Order struct {
	bun.BaseModel `bun:"table:orders"`

	ID      int64  `bun:",pk,autoincrement"`
	OrderID string `bun:"order_id"`

	CustomerID      string  `bun:"customer_id"`
	CustomerName    string  `bun:"customer_name"`
	CustomerPhone   string  `bun:"customer_phone"`
	DeliveryAddress string  `bun:"delivery_address"`
	AddressNote     string  `bun:"address_note,nullzero"`
	DropLatitude    float64 `bun:"drop_latitude,nullzero"`
	DropLongitude   float64 `bun:"drop_longitude,nullzero"`

	RestaurantID   string `bun:"restaurant_id"`
	RestaurantName string `bun:"restaurant_name"`

	RiderID    string `bun:"rider_id,nullzero"`
	RiderName  string `bun:"rider_name,nullzero"`
	RiderPhone string `bun:"rider_phone,nullzero"`

	Items       []OrderItem `bun:"items,type:jsonb"`
	Subtotal    float64     `bun:"subtotal"`
	DeliveryFee float64     `bun:"delivery_fee"`
	PlatformFee float64     `bun:"platform_fee"`
	Total       float64     `bun:"total"`

	PaymentMethod PaymentMethod `bun:"payment_method"`
	PaymentStatus PaymentStatus `bun:"payment_status"`

	Status           Status `bun:"status"`
	PrepTimeMinutes  int    `bun:"prep_time_minutes,nullzero"`
	VerificationCode string `bun:"verification_code"`
	RejectionReason  string `bun:"rejection_reason,nullzero"`

	RefundStatus string  `bun:"refund_status,nullzero"`
	RefundAmount float64 `bun:"refund_amount,nullzero"`
	RefundReason string  `bun:"refund_reason,nullzero"`

	// DeliveryRef is the identifier assigned by the external delivery
	// subsystem once dispatch succeeds.
	DeliveryRef string `bun:"delivery_ref,nullzero"`

	CreatedAt   time.Time  `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
	AcceptedAt  *time.Time `bun:"accepted_at"`
	ReadyAt     *time.Time `bun:"ready_at"`
	PickedUpAt  *time.Time `bun:"picked_up_at"`
	DeliveredAt *time.Time `bun:"delivered_at"`
	RejectedAt  *time.Time `bun:"rejected_at"`
	CancelledAt *time.Time `bun:"cancelled_at"`
	UpdatedAt   time.Time  `bun:"updated_at,nullzero"`
}

// PaymentMethod distinguishes cash-on-delivery from captured online payments.
type PaymentMethod string

const (
	PaymentCOD    PaymentMethod = "cod"
	PaymentOnline PaymentMethod = "online"
)

// PaymentStatus tracks whether money changed hands for the order.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

const RefundInitiated = "initiated"

// Clone returns a deep copy of the order. The ephemeral store hands out
// clones so callers can never mutate stored state in place.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	cp := *o
	if o.Items != nil {
		cp.Items = make([]OrderItem, len(o.Items))
		copy(cp.Items, o.Items)
	}
	cp.AcceptedAt = cloneTime(o.AcceptedAt)
	cp.ReadyAt = cloneTime(o.ReadyAt)
	cp.PickedUpAt = cloneTime(o.PickedUpAt)
	cp.DeliveredAt = cloneTime(o.DeliveredAt)
	cp.RejectedAt = cloneTime(o.RejectedAt)
	cp.CancelledAt = cloneTime(o.CancelledAt)
	return &cp
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
