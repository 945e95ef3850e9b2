package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/myezzsolution/MyEzz-Restaurants/internal/cache"
	"github.com/myezzsolution/MyEzz-Restaurants/internal/config"
	"github.com/myezzsolution/MyEzz-Restaurants/internal/dto"
	"github.com/myezzsolution/MyEzz-Restaurants/internal/entity"
	"github.com/myezzsolution/MyEzz-Restaurants/internal/hub"
	"github.com/myezzsolution/MyEzz-Restaurants/internal/messaging"
	repo "github.com/myezzsolution/MyEzz-Restaurants/internal/repository/order"
	"github.com/myezzsolution/MyEzz-Restaurants/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/myezzsolution/MyEzz-Restaurants/service/order")

const (
	defaultCustomerLimit   = 20
	defaultRestaurantLimit = 50
	maxListLimit           = 100
)

// activeStatuses is what the restaurant dashboard means by "active": orders
// the kitchen still has in hand.
var activeStatuses = []entity.Status{
	entity.StatusPendingRestaurant,
	entity.StatusPreparing,
	entity.StatusReadyForPickup,
}

// Dispatcher hands accepted orders to the delivery connector.
type Dispatcher interface {
	Dispatch(ctx context.Context, order *entity.Order) (string, error)
}

// Notifier pushes events to connected clients.
type Notifier interface {
	EmitToRoom(kind hub.RoomKind, id, event string, data any)
	Broadcast(event string, data any)
}

// Extra carries the optional fields a generic status update may attach.
type Extra struct {
	RiderID     string
	RiderName   string
	RiderPhone  string
	DeliveryRef string
}

// Service owns the order lifecycle: it validates transitions, persists them,
// and emits the resulting events.
type Service struct {
	store           repo.Store
	cache           cache.Store
	cacheTTL        time.Duration
	logger          *zap.Logger
	publisher       messaging.Client
	dispatcher      Dispatcher
	notifier        Notifier
	messaging       messagingConfig
	dispatchTimeout time.Duration
}

// messagingConfig contains messaging specific knobs we care about.
type messagingConfig struct {
	enabled bool
	topic   string
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Store      repo.Store
	Cache      cache.Store
	Config     config.Config
	Logger     *zap.Logger
	Publisher  messaging.Client
	Dispatcher Dispatcher
	Notifier   Notifier
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return &Service{
		store:           p.Store,
		cache:           p.Cache,
		cacheTTL:        p.Config.Cache.DefaultTTL,
		logger:          p.Logger,
		publisher:       p.Publisher,
		dispatcher:      p.Dispatcher,
		notifier:        p.Notifier,
		dispatchTimeout: p.Config.Delivery.Timeout,
		messaging: messagingConfig{
			enabled: p.Config.Messaging.Enabled,
			topic:   p.Config.Messaging.Kafka.Topic,
		},
	}
}

// Create validates and persists a new order, then announces it to the
// restaurant's dashboard.
func (s *Service) Create(ctx context.Context, req dto.CreateOrderRequest) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Create", trace.WithAttributes(attribute.String("restaurant.id", req.RestaurantID)))
	defer span.End()

	if err := validateCreate(req); err != nil {
		return nil, err
	}

	items := make([]entity.OrderItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, entity.OrderItem{Name: it.Name, Quantity: it.Quantity, Price: it.Price, Note: it.Note})
	}

	subtotal := req.Subtotal
	if subtotal == 0 {
		for _, it := range items {
			subtotal += it.Price * float64(it.Quantity)
		}
	}

	method := entity.PaymentMethod(req.PaymentMethod)
	if method == "" {
		method = entity.PaymentCOD
	}
	payStatus := entity.PaymentStatus(req.PaymentStatus)
	if payStatus == "" {
		payStatus = entity.PaymentPending
	}

	now := time.Now().UTC()
	order := &entity.Order{
		OrderID:          newOrderID(),
		CustomerID:       req.CustomerID,
		CustomerName:     req.CustomerName,
		CustomerPhone:    req.CustomerPhone,
		DeliveryAddress:  req.DeliveryAddress,
		AddressNote:      req.AddressNote,
		DropLatitude:     req.DropLatitude,
		DropLongitude:    req.DropLongitude,
		RestaurantID:     req.RestaurantID,
		RestaurantName:   req.RestaurantName,
		Items:            items,
		Subtotal:         subtotal,
		DeliveryFee:      req.DeliveryFee,
		PlatformFee:      req.PlatformFee,
		Total:            req.Total,
		PaymentMethod:    method,
		PaymentStatus:    payStatus,
		Status:           entity.StatusPendingRestaurant,
		VerificationCode: newVerificationCode(),
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.store.Create(ctx, order); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "store error")
		return nil, errorbank.Internal("failed to create order", errorbank.WithCause(err))
	}

	s.writeCache(ctx, order)
	s.publish(ctx, EventCreated, order)
	s.notifier.EmitToRoom(hub.RoomRestaurant, order.RestaurantID, hub.EventNewOrder, dto.FromEntity(order))

	return order, nil
}

// Accept moves a pending order into preparation and kicks off delivery
// dispatch. Dispatch is best effort: its failure never fails the accept.
func (s *Service) Accept(ctx context.Context, orderID, restaurantID string, prepMinutes int) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Accept", trace.WithAttributes(
		attribute.String("order.id", orderID),
		attribute.String("restaurant.id", restaurantID),
	))
	defer span.End()

	if prepMinutes <= 0 {
		return nil, errorbank.BadRequest("prep time must be positive")
	}

	order, err := s.loadOwned(ctx, orderID, restaurantID)
	if err != nil {
		return nil, err
	}
	if order.Status != entity.StatusPendingRestaurant {
		return nil, errorbank.InvalidTransition(fmt.Sprintf("order is %s, not awaiting acceptance", order.Status))
	}

	now := time.Now().UTC()
	updated, err := s.store.UpdateStatus(ctx, orderID, entity.StatusPendingRestaurant, func(o *entity.Order) {
		o.Status = entity.StatusPreparing
		o.PrepTimeMinutes = prepMinutes
		o.AcceptedAt = &now
	})
	if err != nil {
		return nil, s.transitionError(span, err, entity.StatusPendingRestaurant)
	}

	s.writeCache(ctx, updated)
	s.publish(ctx, EventAccepted, updated)
	s.emitToParties(updated, hub.EventOrderStatusChanged)

	// Dispatch last so its cache drop cannot be overwritten by the write
	// above before the delivery ref lands.
	s.dispatchAsync(updated)

	return updated, nil
}

// Reject declines a pending order. Paid orders get a refund initiation
// recorded alongside the rejection.
func (s *Service) Reject(ctx context.Context, orderID, restaurantID, reason string) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Reject", trace.WithAttributes(
		attribute.String("order.id", orderID),
		attribute.String("restaurant.id", restaurantID),
	))
	defer span.End()

	order, err := s.loadOwned(ctx, orderID, restaurantID)
	if err != nil {
		return nil, err
	}
	if order.Status != entity.StatusPendingRestaurant {
		return nil, errorbank.InvalidTransition(fmt.Sprintf("order is %s, not awaiting acceptance", order.Status))
	}

	now := time.Now().UTC()
	updated, err := s.store.UpdateStatus(ctx, orderID, entity.StatusPendingRestaurant, func(o *entity.Order) {
		o.Status = entity.StatusRejected
		o.RejectionReason = reason
		o.RejectedAt = &now
		if o.PaymentStatus == entity.PaymentPaid {
			o.RefundStatus = entity.RefundInitiated
			o.RefundAmount = o.Total
			o.RefundReason = reason
		}
	})
	if err != nil {
		return nil, s.transitionError(span, err, entity.StatusPendingRestaurant)
	}

	s.writeCache(ctx, updated)
	s.publish(ctx, EventRejected, updated)
	s.emitToParties(updated, hub.EventOrderStatusChanged)

	return updated, nil
}

// MarkReady flags a preparing order as ready for pickup.
func (s *Service) MarkReady(ctx context.Context, orderID, restaurantID string) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.MarkReady", trace.WithAttributes(
		attribute.String("order.id", orderID),
		attribute.String("restaurant.id", restaurantID),
	))
	defer span.End()

	order, err := s.loadOwned(ctx, orderID, restaurantID)
	if err != nil {
		return nil, err
	}
	if order.Status != entity.StatusPreparing {
		return nil, errorbank.InvalidTransition(fmt.Sprintf("order is %s, not preparing", order.Status))
	}

	now := time.Now().UTC()
	updated, err := s.store.UpdateStatus(ctx, orderID, entity.StatusPreparing, func(o *entity.Order) {
		o.Status = entity.StatusReadyForPickup
		o.ReadyAt = &now
	})
	if err != nil {
		return nil, s.transitionError(span, err, entity.StatusPreparing)
	}

	s.writeCache(ctx, updated)
	s.publish(ctx, EventReady, updated)
	payload := dto.FromEntity(updated)
	s.emitToParties(updated, hub.EventOrderStatusChanged)
	s.notifier.EmitToRoom(hub.RoomOrder, updated.OrderID, hub.EventOrderUpdated, payload)

	return updated, nil
}

// UpdateStatus is the generic transition used by rider webhooks and admin
// tooling. It rejects unknown statuses and refuses to move terminal orders,
// but does not enforce adjacency: the webhook callers own the sequencing.
func (s *Service) UpdateStatus(ctx context.Context, orderID string, newStatus entity.Status, extra Extra) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.UpdateStatus", trace.WithAttributes(
		attribute.String("order.id", orderID),
		attribute.String("order.status", string(newStatus)),
	))
	defer span.End()

	if !entity.Known(newStatus) {
		return nil, errorbank.BadRequest(fmt.Sprintf("unknown status %q", newStatus))
	}

	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if entity.Terminal(order.Status) {
		return nil, errorbank.InvalidTransition(fmt.Sprintf("order is already %s", order.Status))
	}

	now := time.Now().UTC()
	updated, err := s.store.UpdateStatus(ctx, orderID, order.Status, func(o *entity.Order) {
		o.Status = newStatus
		switch newStatus {
		case entity.StatusRiderAssigned:
			if extra.RiderID != "" {
				o.RiderID = extra.RiderID
			}
			if extra.RiderName != "" {
				o.RiderName = extra.RiderName
			}
			if extra.RiderPhone != "" {
				o.RiderPhone = extra.RiderPhone
			}
		case entity.StatusReadyForPickup:
			if o.ReadyAt == nil {
				o.ReadyAt = &now
			}
		case entity.StatusPickedUp:
			if o.PickedUpAt == nil {
				o.PickedUpAt = &now
			}
		case entity.StatusDelivered:
			if o.DeliveredAt == nil {
				o.DeliveredAt = &now
			}
		case entity.StatusCancelled:
			if o.CancelledAt == nil {
				o.CancelledAt = &now
			}
		}
		if extra.DeliveryRef != "" {
			o.DeliveryRef = extra.DeliveryRef
		}
	})
	if err != nil {
		return nil, s.transitionError(span, err, order.Status)
	}

	s.writeCache(ctx, updated)
	s.publish(ctx, EventStatusUpdated, updated)

	// Status webhooks announce to everyone; the room-scoped emissions of
	// accept/reject stay narrower on purpose.
	payload := dto.FromEntity(updated)
	s.notifier.Broadcast(hub.EventOrderStatusUpdated, payload)
	s.notifier.EmitToRoom(hub.RoomOrder, updated.OrderID, hub.EventOrderUpdated, payload)

	return updated, nil
}

// ConfirmDelivered checks the hand-off code before marking the order
// delivered. A mismatch leaves the order untouched.
func (s *Service) ConfirmDelivered(ctx context.Context, orderID, code string) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.ConfirmDelivered", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()

	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(strings.TrimSpace(code), order.VerificationCode) {
		return nil, errorbank.InvalidCode("verification code does not match")
	}

	return s.UpdateStatus(ctx, orderID, entity.StatusDelivered, Extra{})
}

// GetByOrderID retrieves an order, consulting cache when available.
func (s *Service) GetByOrderID(ctx context.Context, orderID string) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.GetByOrderID", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()

	if order, err := s.readCache(ctx, orderID); err == nil {
		return order, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		if s.logger != nil {
			s.logger.Warn("orders cache read failed", zap.String("order_id", orderID), zap.Error(err))
		}
	}

	order, err := s.load(ctx, orderID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	s.writeCache(ctx, order)
	return order, nil
}

// ListCustomerOrders returns a customer's order history, newest first.
func (s *Service) ListCustomerOrders(ctx context.Context, customerID string, limit int) ([]*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.ListCustomerOrders", trace.WithAttributes(attribute.String("customer.id", customerID)))
	defer span.End()

	orders, err := s.store.ListByCustomer(ctx, customerID, clampLimit(limit, defaultCustomerLimit))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "store error")
		return nil, errorbank.Internal("failed to list orders", errorbank.WithCause(err))
	}
	return orders, nil
}

// ListRestaurantOrders returns a restaurant's queue. The filter may be empty,
// the logical "active", or an exact status.
func (s *Service) ListRestaurantOrders(ctx context.Context, restaurantID, filter string, limit int) ([]*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.ListRestaurantOrders", trace.WithAttributes(
		attribute.String("restaurant.id", restaurantID),
		attribute.String("filter", filter),
	))
	defer span.End()

	var statuses []entity.Status
	switch filter {
	case "":
	case "active":
		statuses = activeStatuses
	default:
		status := entity.Status(filter)
		if !entity.Known(status) {
			return nil, errorbank.BadRequest(fmt.Sprintf("unknown status %q", filter))
		}
		statuses = []entity.Status{status}
	}

	orders, err := s.store.ListByRestaurant(ctx, restaurantID, statuses, clampLimit(limit, defaultRestaurantLimit))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "store error")
		return nil, errorbank.Internal("failed to list orders", errorbank.WithCause(err))
	}
	return orders, nil
}

// Erase removes an order outright. Orders are normally retained forever;
// this exists for demo and test cleanup only.
func (s *Service) Erase(ctx context.Context, orderID string) error {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Erase", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()

	if err := s.store.Delete(ctx, orderID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return errorbank.NotFound("order not found")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "store error")
		return errorbank.Internal("failed to erase order", errorbank.WithCause(err))
	}
	s.dropCache(ctx, orderID)
	return nil
}

func validateCreate(req dto.CreateOrderRequest) error {
	switch {
	case strings.TrimSpace(req.CustomerName) == "":
		return errorbank.BadRequest("customer name is required")
	case strings.TrimSpace(req.CustomerPhone) == "":
		return errorbank.BadRequest("customer phone is required")
	case strings.TrimSpace(req.DeliveryAddress) == "":
		return errorbank.BadRequest("delivery address is required")
	case strings.TrimSpace(req.RestaurantID) == "":
		return errorbank.BadRequest("restaurant id is required")
	case strings.TrimSpace(req.RestaurantName) == "":
		return errorbank.BadRequest("restaurant name is required")
	case len(req.Items) == 0:
		return errorbank.BadRequest("at least one item is required")
	case req.Total <= 0:
		return errorbank.BadRequest("order total must be positive")
	}
	for i, it := range req.Items {
		if strings.TrimSpace(it.Name) == "" {
			return errorbank.BadRequest("item name is required", errorbank.WithDetail("index", i))
		}
		if it.Quantity <= 0 {
			return errorbank.BadRequest("item quantity must be positive", errorbank.WithDetail("index", i))
		}
	}
	return nil
}

// load fetches by public id and maps store errors onto the API taxonomy.
func (s *Service) load(ctx context.Context, orderID string) (*entity.Order, error) {
	order, err := s.store.GetByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, errorbank.NotFound("order not found")
		}
		return nil, errorbank.Internal("failed to load order", errorbank.WithCause(err))
	}
	return order, nil
}

// loadOwned additionally hides orders that belong to another restaurant.
func (s *Service) loadOwned(ctx context.Context, orderID, restaurantID string) (*entity.Order, error) {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.RestaurantID != restaurantID {
		return nil, errorbank.NotFound("order not found")
	}
	return order, nil
}

// transitionError maps guarded-update failures. A lost race reads the same
// as an illegal transition to the caller.
func (s *Service) transitionError(span trace.Span, err error, from entity.Status) error {
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return errorbank.NotFound("order not found")
	case errors.Is(err, repo.ErrStatusConflict):
		return errorbank.InvalidTransition(fmt.Sprintf("order is no longer %s", from))
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, "store error")
		return errorbank.Internal("failed to update order", errorbank.WithCause(err))
	}
}

func (s *Service) dispatchAsync(order *entity.Order) {
	if s.dispatcher == nil {
		return
	}
	snapshot := order.Clone()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.dispatchTimeout)
		defer cancel()

		ref, err := s.dispatcher.Dispatch(ctx, snapshot)
		if err != nil {
			if s.logger != nil {
				s.logger.Warn("delivery dispatch failed", zap.String("order_id", snapshot.OrderID), zap.Error(err))
			}
			return
		}
		if ref == "" {
			return
		}
		if err := s.store.SetDeliveryRef(ctx, snapshot.OrderID, ref); err != nil {
			if s.logger != nil {
				s.logger.Warn("store delivery ref failed", zap.String("order_id", snapshot.OrderID), zap.Error(err))
			}
			return
		}
		// The cached copy predates the ref; drop it so reads see the write.
		s.dropCache(ctx, snapshot.OrderID)
	}()
}

// emitToParties sends the event to the order's restaurant and customer rooms.
func (s *Service) emitToParties(order *entity.Order, event string) {
	payload := dto.FromEntity(order)
	s.notifier.EmitToRoom(hub.RoomRestaurant, order.RestaurantID, event, payload)
	if order.CustomerID != "" {
		s.notifier.EmitToRoom(hub.RoomCustomer, order.CustomerID, event, payload)
	}
}

func (s *Service) publish(ctx context.Context, event string, order *entity.Order) {
	if !s.messaging.enabled || s.publisher == nil {
		return
	}
	payload, err := json.Marshal(OrderEvent{
		Event:        event,
		OrderID:      order.OrderID,
		RestaurantID: order.RestaurantID,
		CustomerID:   order.CustomerID,
		Status:       string(order.Status),
		Total:        order.Total,
		OccurredAt:   time.Now().UTC(),
	})
	if err != nil {
		if s.logger != nil {
			s.logger.Error("marshal order event", zap.String("event", event), zap.Error(err))
		}
		return
	}
	if err := s.publisher.Publish(ctx, []byte(order.OrderID), payload); err != nil {
		if s.logger != nil {
			s.logger.Error("publish order event", zap.String("event", event), zap.Error(err))
		}
	}
}

func clampLimit(limit, def int) int {
	if limit <= 0 {
		return def
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

func (s *Service) cacheKey(orderID string) string {
	return "orders:" + orderID
}

func (s *Service) readCache(ctx context.Context, orderID string) (*entity.Order, error) {
	if s.cache == nil {
		return nil, cache.ErrCacheMiss
	}
	raw, err := s.cache.Get(ctx, s.cacheKey(orderID))
	if err != nil {
		return nil, err
	}
	var order entity.Order
	if err := json.Unmarshal(raw, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *Service) writeCache(ctx context.Context, order *entity.Order) {
	if s.cache == nil || order == nil {
		return
	}
	raw, err := json.Marshal(order)
	if err == nil {
		err = s.cache.Set(ctx, s.cacheKey(order.OrderID), raw, s.cacheTTL)
	}
	if err != nil && s.logger != nil {
		s.logger.Warn("orders cache write failed", zap.String("order_id", order.OrderID), zap.Error(err))
	}
}

func (s *Service) dropCache(ctx context.Context, orderID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, s.cacheKey(orderID)); err != nil && s.logger != nil {
		s.logger.Warn("orders cache delete failed", zap.String("order_id", orderID), zap.Error(err))
	}
}
