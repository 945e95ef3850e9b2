package order

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"

	"github.com/go-sql-driver/mysql"
	"github.com/uptrace/bun/driver/pgdriver"
	"go.uber.org/zap"

	"github.com/myezzsolution/MyEzz-Restaurants/internal/config"
	"github.com/myezzsolution/MyEzz-Restaurants/internal/entity"
)

// Fallback serves orders from the database until it observes a missing-schema
// error, then flips to the ephemeral store for the rest of the process
// lifetime. The flip is one-way: mixing half-written database state with
// in-memory state would hand clients inconsistent views.
type Fallback struct {
	primary   Store
	secondary Store
	allowed   bool
	degraded  atomic.Bool
	log       *zap.Logger
}

// NewFallback wraps the database store with the ephemeral fallback.
func NewFallback(primary *Repository, secondary *Ephemeral, cfg config.Config, log *zap.Logger) *Fallback {
	return &Fallback{
		primary:   primary,
		secondary: secondary,
		allowed:   cfg.Database.EphemeralFallback,
		log:       log,
	}
}

// Mode reports which backend is currently serving.
func (f *Fallback) Mode() string {
	if f.degraded.Load() {
		return ModeEphemeral
	}
	return ModePersistent
}

// trip flips to the ephemeral store when err indicates a missing schema.
// It reports whether the caller should retry against the fallback.
func (f *Fallback) trip(err error) bool {
	if err == nil || !f.allowed || !schemaMissing(err) {
		return false
	}
	if f.degraded.CompareAndSwap(false, true) {
		f.log.Warn("order schema unavailable, switching to ephemeral store", zap.Error(err))
	}
	return true
}

func (f *Fallback) Create(ctx context.Context, order *entity.Order) error {
	if f.degraded.Load() {
		return f.secondary.Create(ctx, order)
	}
	err := f.primary.Create(ctx, order)
	if f.trip(err) {
		return f.secondary.Create(ctx, order)
	}
	return err
}

func (f *Fallback) GetByOrderID(ctx context.Context, orderID string) (*entity.Order, error) {
	if f.degraded.Load() {
		return f.secondary.GetByOrderID(ctx, orderID)
	}
	order, err := f.primary.GetByOrderID(ctx, orderID)
	if f.trip(err) {
		return f.secondary.GetByOrderID(ctx, orderID)
	}
	return order, err
}

func (f *Fallback) UpdateStatus(ctx context.Context, orderID string, from entity.Status, apply func(*entity.Order)) (*entity.Order, error) {
	if f.degraded.Load() {
		return f.secondary.UpdateStatus(ctx, orderID, from, apply)
	}
	order, err := f.primary.UpdateStatus(ctx, orderID, from, apply)
	if f.trip(err) {
		return f.secondary.UpdateStatus(ctx, orderID, from, apply)
	}
	return order, err
}

func (f *Fallback) SetDeliveryRef(ctx context.Context, orderID, ref string) error {
	if f.degraded.Load() {
		return f.secondary.SetDeliveryRef(ctx, orderID, ref)
	}
	err := f.primary.SetDeliveryRef(ctx, orderID, ref)
	if f.trip(err) {
		return f.secondary.SetDeliveryRef(ctx, orderID, ref)
	}
	return err
}

func (f *Fallback) ListByCustomer(ctx context.Context, customerID string, limit int) ([]*entity.Order, error) {
	if f.degraded.Load() {
		return f.secondary.ListByCustomer(ctx, customerID, limit)
	}
	orders, err := f.primary.ListByCustomer(ctx, customerID, limit)
	if f.trip(err) {
		return f.secondary.ListByCustomer(ctx, customerID, limit)
	}
	return orders, err
}

func (f *Fallback) ListByRestaurant(ctx context.Context, restaurantID string, statuses []entity.Status, limit int) ([]*entity.Order, error) {
	if f.degraded.Load() {
		return f.secondary.ListByRestaurant(ctx, restaurantID, statuses, limit)
	}
	orders, err := f.primary.ListByRestaurant(ctx, restaurantID, statuses, limit)
	if f.trip(err) {
		return f.secondary.ListByRestaurant(ctx, restaurantID, statuses, limit)
	}
	return orders, err
}

func (f *Fallback) Delete(ctx context.Context, orderID string) error {
	if f.degraded.Load() {
		return f.secondary.Delete(ctx, orderID)
	}
	err := f.primary.Delete(ctx, orderID)
	if f.trip(err) {
		return f.secondary.Delete(ctx, orderID)
	}
	return err
}

// schemaMissing recognizes the undefined-table errors of the supported
// database drivers.
func schemaMissing(err error) bool {
	if err == nil {
		return false
	}
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) && pgErr.Field('C') == "42P01" {
		return true
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == 1146 {
		return true
	}
	return strings.Contains(err.Error(), "no such table")
}
