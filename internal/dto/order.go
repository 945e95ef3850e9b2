package dto

import (
	"time"

	"github.com/myezzsolution/MyEzz-Restaurants/internal/entity"
)

// OrderItem mirrors entity.OrderItem in the wire shape clients expect.
type OrderItem struct {
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
	Note     string  `json:"note,omitempty"`
}

// Order is an order as exposed via transport layers and hub events.
type Order struct {
	OrderID string `json:"orderId"`

	CustomerID      string  `json:"customerId"`
	CustomerName    string  `json:"customerName"`
	CustomerPhone   string  `json:"customerPhone"`
	DeliveryAddress string  `json:"deliveryAddress"`
	AddressNote     string  `json:"addressNote,omitempty"`
	DropLatitude    float64 `json:"dropLatitude,omitempty"`
	DropLongitude   float64 `json:"dropLongitude,omitempty"`

	RestaurantID   string `json:"restaurantId"`
	RestaurantName string `json:"restaurantName"`

	RiderID    string `json:"riderId,omitempty"`
	RiderName  string `json:"riderName,omitempty"`
	RiderPhone string `json:"riderPhone,omitempty"`

	Items       []OrderItem `json:"items"`
	Subtotal    float64     `json:"subtotal"`
	DeliveryFee float64     `json:"deliveryFee"`
	PlatformFee float64     `json:"platformFee"`
	Total       float64     `json:"total"`

	PaymentMethod string `json:"paymentMethod"`
	PaymentStatus string `json:"paymentStatus"`

	Status           string `json:"status"`
	PrepTime         int    `json:"prepTime,omitempty"`
	VerificationCode string `json:"verificationCode,omitempty"`
	RejectionReason  string `json:"rejectionReason,omitempty"`

	RefundStatus string  `json:"refundStatus,omitempty"`
	RefundAmount float64 `json:"refundAmount,omitempty"`
	RefundReason string  `json:"refundReason,omitempty"`

	DeliveryRef string `json:"deliveryRef,omitempty"`

	CreatedAt   time.Time  `json:"createdAt"`
	AcceptedAt  *time.Time `json:"acceptedAt,omitempty"`
	ReadyAt     *time.Time `json:"readyAt,omitempty"`
	PickedUpAt  *time.Time `json:"pickedUpAt,omitempty"`
	DeliveredAt *time.Time `json:"deliveredAt,omitempty"`
	RejectedAt  *time.Time `json:"rejectedAt,omitempty"`
	CancelledAt *time.Time `json:"cancelledAt,omitempty"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// Milestone is one step of the tracking timeline.
type Milestone struct {
	Status    string     `json:"status"`
	Label     string     `json:"label"`
	Completed bool       `json:"completed"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// TrackResponse is the customer-facing progress view: the order itself plus
// the derived milestone timeline.
type TrackResponse struct {
	Order    Order       `json:"order"`
	Timeline []Milestone `json:"timeline"`
}

// CreateOrderRequest is the payload for placing an order.
type CreateOrderRequest struct {
	CustomerID      string      `json:"customerId"`
	CustomerName    string      `json:"customerName"`
	CustomerPhone   string      `json:"customerPhone"`
	DeliveryAddress string      `json:"deliveryAddress"`
	AddressNote     string      `json:"addressNote"`
	DropLatitude    float64     `json:"dropLatitude"`
	DropLongitude   float64     `json:"dropLongitude"`
	RestaurantID    string      `json:"restaurantId"`
	RestaurantName  string      `json:"restaurantName"`
	Items           []OrderItem `json:"items"`
	Subtotal        float64     `json:"subtotal"`
	DeliveryFee     float64     `json:"deliveryFee"`
	PlatformFee     float64     `json:"platformFee"`
	Total           float64     `json:"total"`
	PaymentMethod   string      `json:"paymentMethod"`
	PaymentStatus   string      `json:"paymentStatus"`
}

// AcceptOrderRequest carries the restaurant's preparation estimate.
type AcceptOrderRequest struct {
	PrepTime int `json:"prepTime"`
}

// RejectOrderRequest carries the restaurant's rejection reason.
type RejectOrderRequest struct {
	Reason string `json:"reason"`
}

// UpdateStatusRequest moves an order to a new status, with optional rider
// details for rider_assigned and a delivery reference passthrough.
type UpdateStatusRequest struct {
	Status      string `json:"status"`
	RiderID     string `json:"riderId"`
	RiderName   string `json:"riderName"`
	RiderPhone  string `json:"riderPhone"`
	DeliveryRef string `json:"deliveryRef"`
}

// ConfirmDeliveryRequest carries the verification code collected by the rider.
type ConfirmDeliveryRequest struct {
	VerificationCode string `json:"verificationCode"`
}

// FromEntity maps a stored order to its wire shape.
func FromEntity(o *entity.Order) Order {
	items := make([]OrderItem, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, OrderItem{Name: it.Name, Quantity: it.Quantity, Price: it.Price, Note: it.Note})
	}
	return Order{
		OrderID:          o.OrderID,
		CustomerID:       o.CustomerID,
		CustomerName:     o.CustomerName,
		CustomerPhone:    o.CustomerPhone,
		DeliveryAddress:  o.DeliveryAddress,
		AddressNote:      o.AddressNote,
		DropLatitude:     o.DropLatitude,
		DropLongitude:    o.DropLongitude,
		RestaurantID:     o.RestaurantID,
		RestaurantName:   o.RestaurantName,
		RiderID:          o.RiderID,
		RiderName:        o.RiderName,
		RiderPhone:       o.RiderPhone,
		Items:            items,
		Subtotal:         o.Subtotal,
		DeliveryFee:      o.DeliveryFee,
		PlatformFee:      o.PlatformFee,
		Total:            o.Total,
		PaymentMethod:    string(o.PaymentMethod),
		PaymentStatus:    string(o.PaymentStatus),
		Status:           string(o.Status),
		PrepTime:         o.PrepTimeMinutes,
		VerificationCode: o.VerificationCode,
		RejectionReason:  o.RejectionReason,
		RefundStatus:     o.RefundStatus,
		RefundAmount:     o.RefundAmount,
		RefundReason:     o.RefundReason,
		DeliveryRef:      o.DeliveryRef,
		CreatedAt:        o.CreatedAt,
		AcceptedAt:       o.AcceptedAt,
		ReadyAt:          o.ReadyAt,
		PickedUpAt:       o.PickedUpAt,
		DeliveredAt:      o.DeliveredAt,
		RejectedAt:       o.RejectedAt,
		CancelledAt:      o.CancelledAt,
		UpdatedAt:        o.UpdatedAt,
	}
}

// FromEntities maps a list of stored orders.
func FromEntities(orders []*entity.Order) []Order {
	out := make([]Order, 0, len(orders))
	for _, o := range orders {
		out = append(out, FromEntity(o))
	}
	return out
}
