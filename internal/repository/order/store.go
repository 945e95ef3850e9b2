package order

import (
	"context"
	"errors"

	"github.com/myezzsolution/MyEzz-Restaurants/internal/entity"
)

// ErrNotFound is returned when an order is missing.
var ErrNotFound = errors.New("order not found")

// ErrStatusConflict is returned when a guarded status update loses the race:
// the order moved off the expected status between read and write.
var ErrStatusConflict = errors.New("order status conflict")

// Modes reported by Store.Mode.
const (
	ModePersistent = "persistent"
	ModeEphemeral  = "ephemeral"
)

// Store is the persistence surface for orders. Both the database-backed and
// the ephemeral implementation satisfy it, as does the fallback wrapper that
// picks between them at runtime.
type Store interface {
	Create(ctx context.Context, order *entity.Order) error
	GetByOrderID(ctx context.Context, orderID string) (*entity.Order, error)

	// UpdateStatus applies a mutation to the order only if its current
	// status still equals from. The check and the write are a single
	// compare-and-swap; losers receive ErrStatusConflict.
	UpdateStatus(ctx context.Context, orderID string, from entity.Status, apply func(*entity.Order)) (*entity.Order, error)

	SetDeliveryRef(ctx context.Context, orderID, ref string) error
	ListByCustomer(ctx context.Context, customerID string, limit int) ([]*entity.Order, error)

	// ListByRestaurant filters by the given statuses; nil means no filter.
	ListByRestaurant(ctx context.Context, restaurantID string, statuses []entity.Status, limit int) ([]*entity.Order, error)
	Delete(ctx context.Context, orderID string) error

	// Mode names the serving backend, ModePersistent or ModeEphemeral.
	Mode() string
}
