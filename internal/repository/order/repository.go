package order

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/myezzsolution/MyEzz-Restaurants/internal/database"
	"github.com/myezzsolution/MyEzz-Restaurants/internal/entity"
)

var repoTracer = otel.Tracer("github.com/myezzsolution/MyEzz-Restaurants/repository/order")

// Repository is the database-backed order store.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{
		writer: conns.Writer,
		reader: conns.Reader,
	}
}

// Mode labels the database-backed store.
func (r *Repository) Mode() string { return ModePersistent }

// Create persists a new order using the write connection.
func (r *Repository) Create(ctx context.Context, order *entity.Order) error {
	if order == nil {
		return errors.New("nil order")
	}
	ctx, span := repoTracer.Start(ctx, "OrderStore.Create", trace.WithAttributes(attribute.String("order.id", order.OrderID)))
	defer span.End()

	_, err := r.writer.NewInsert().Model(order).Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
	}
	return err
}

// GetByOrderID fetches an order by its public identifier, preferring the read
// replica when one is configured.
func (r *Repository) GetByOrderID(ctx context.Context, orderID string) (*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderStore.GetByOrderID", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()

	order := new(entity.Order)
	err := r.reader.NewSelect().Model(order).Where("order_id = ?", orderID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return order, nil
}

// UpdateStatus reloads the order on the writer, applies the mutation, and
// writes it back guarded by the expected status. The guard makes concurrent
// transitions safe: only one writer can move an order off a given status.
func (r *Repository) UpdateStatus(ctx context.Context, orderID string, from entity.Status, apply func(*entity.Order)) (*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderStore.UpdateStatus", trace.WithAttributes(
		attribute.String("order.id", orderID),
		attribute.String("order.from", string(from)),
	))
	defer span.End()

	order := new(entity.Order)
	err := r.writer.NewSelect().Model(order).Where("order_id = ?", orderID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	if order.Status != from {
		span.SetStatus(codes.Error, "status moved")
		return nil, ErrStatusConflict
	}

	apply(order)
	order.UpdatedAt = time.Now().UTC()

	res, err := r.writer.NewUpdate().
		Model(order).
		WherePK().
		Where("status = ?", from).
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if affected == 0 {
		span.SetStatus(codes.Error, "status moved")
		return nil, ErrStatusConflict
	}
	return order, nil
}

// SetDeliveryRef records the reference handed back by the delivery service.
func (r *Repository) SetDeliveryRef(ctx context.Context, orderID, ref string) error {
	ctx, span := repoTracer.Start(ctx, "OrderStore.SetDeliveryRef", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()

	res, err := r.writer.NewUpdate().
		Model((*entity.Order)(nil)).
		Set("delivery_ref = ?", ref).
		Set("updated_at = ?", time.Now().UTC()).
		Where("order_id = ?", orderID).
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		span.SetStatus(codes.Error, "not found")
		return ErrNotFound
	}
	return nil
}

// ListByCustomer returns a customer's orders, newest first.
func (r *Repository) ListByCustomer(ctx context.Context, customerID string, limit int) ([]*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderStore.ListByCustomer", trace.WithAttributes(attribute.String("customer.id", customerID)))
	defer span.End()

	var orders []*entity.Order
	q := r.reader.NewSelect().
		Model(&orders).
		Where("customer_id = ?", customerID).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return orders, nil
}

// ListByRestaurant returns a restaurant's orders, newest first, optionally
// narrowed to a status set.
func (r *Repository) ListByRestaurant(ctx context.Context, restaurantID string, statuses []entity.Status, limit int) ([]*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderStore.ListByRestaurant", trace.WithAttributes(
		attribute.String("restaurant.id", restaurantID),
		attribute.Int("statuses", len(statuses)),
	))
	defer span.End()

	var orders []*entity.Order
	q := r.reader.NewSelect().
		Model(&orders).
		Where("restaurant_id = ?", restaurantID).
		Order("created_at DESC")
	if len(statuses) > 0 {
		q = q.Where("status IN (?)", bun.In(statuses))
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return orders, nil
}

// Delete removes an order row entirely.
func (r *Repository) Delete(ctx context.Context, orderID string) error {
	ctx, span := repoTracer.Start(ctx, "OrderStore.Delete", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()

	res, err := r.writer.NewDelete().
		Model((*entity.Order)(nil)).
		Where("order_id = ?", orderID).
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete failed")
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		span.SetStatus(codes.Error, "not found")
		return ErrNotFound
	}
	return nil
}
