package order

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/myezzsolution/MyEzz-Restaurants/internal/dto"
	"github.com/myezzsolution/MyEzz-Restaurants/internal/entity"
	"github.com/myezzsolution/MyEzz-Restaurants/internal/presentation/http/response"
	service "github.com/myezzsolution/MyEzz-Restaurants/internal/service/order"
	"github.com/myezzsolution/MyEzz-Restaurants/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/myezzsolution/MyEzz-Restaurants/transport/http/order")

// Handler exposes the order lifecycle over HTTP.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs an order Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register wires the order routes onto the Echo server.
func Register(e *echo.Echo, h *Handler) {
	orders := e.Group("/orders")
	orders.POST("", h.create)
	orders.GET("/:orderId", h.getByID)
	orders.GET("/:orderId/track", h.track)
	orders.DELETE("/:orderId", h.erase)
	orders.POST("/:orderId/rider-assigned", h.riderAssigned)
	orders.POST("/:orderId/picked-up", h.pickedUp)
	orders.POST("/:orderId/out-for-delivery", h.outForDelivery)
	orders.POST("/:orderId/delivered", h.delivered)
	orders.POST("/:orderId/status", h.updateStatus)

	e.GET("/customer/:customerId/orders", h.customerOrders)

	restaurant := e.Group("/restaurant/:restaurantId")
	restaurant.GET("/orders", h.restaurantOrders)
	restaurant.GET("/orders/pending", h.pendingOrders)
	restaurant.POST("/orders/:orderId/accept", h.accept)
	restaurant.POST("/orders/:orderId/reject", h.reject)
	restaurant.POST("/orders/:orderId/ready", h.ready)
}

func (h *Handler) create(c echo.Context) error {
	b := response.New(c)

	var req dto.CreateOrderRequest
	if err := c.Bind(&req); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.create", trace.WithAttributes(attribute.String("restaurant.id", req.RestaurantID)))
	defer span.End()

	order, err := h.svc.Create(ctx, req)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithStatus(http.StatusCreated).WithData(dto.FromEntity(order)).WithMessage("order placed").Build()
}

func (h *Handler) getByID(c echo.Context) error {
	b := response.New(c)
	orderID := c.Param("orderId")

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.get", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()

	order, err := h.svc.GetByOrderID(ctx, orderID)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FromEntity(order)).Build()
}

func (h *Handler) track(c echo.Context) error {
	b := response.New(c)
	orderID := c.Param("orderId")

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.track", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()

	view, err := h.svc.Track(ctx, orderID)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(view).Build()
}

func (h *Handler) erase(c echo.Context) error {
	b := response.New(c)
	orderID := c.Param("orderId")

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.erase", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()

	if err := h.svc.Erase(ctx, orderID); err != nil {
		return b.WithError(err).Build()
	}
	return b.WithMessage("order erased").Build()
}

func (h *Handler) customerOrders(c echo.Context) error {
	b := response.New(c)
	customerID := c.Param("customerId")

	limit, err := limitParam(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.customerList", trace.WithAttributes(attribute.String("customer.id", customerID)))
	defer span.End()

	orders, err := h.svc.ListCustomerOrders(ctx, customerID, limit)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FromEntities(orders)).WithMeta("count", len(orders)).Build()
}

func (h *Handler) restaurantOrders(c echo.Context) error {
	b := response.New(c)
	restaurantID := c.Param("restaurantId")

	limit, err := limitParam(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.restaurantList", trace.WithAttributes(attribute.String("restaurant.id", restaurantID)))
	defer span.End()

	orders, err := h.svc.ListRestaurantOrders(ctx, restaurantID, c.QueryParam("status"), limit)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FromEntities(orders)).WithMeta("count", len(orders)).Build()
}

func (h *Handler) pendingOrders(c echo.Context) error {
	b := response.New(c)
	restaurantID := c.Param("restaurantId")

	limit, err := limitParam(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.restaurantPending", trace.WithAttributes(attribute.String("restaurant.id", restaurantID)))
	defer span.End()

	orders, err := h.svc.ListRestaurantOrders(ctx, restaurantID, string(entity.StatusPendingRestaurant), limit)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FromEntities(orders)).WithMeta("count", len(orders)).Build()
}

func (h *Handler) accept(c echo.Context) error {
	b := response.New(c)
	restaurantID := c.Param("restaurantId")
	orderID := c.Param("orderId")

	var req dto.AcceptOrderRequest
	if err := c.Bind(&req); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.accept", trace.WithAttributes(
		attribute.String("order.id", orderID),
		attribute.String("restaurant.id", restaurantID),
	))
	defer span.End()

	order, err := h.svc.Accept(ctx, orderID, restaurantID, req.PrepTime)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FromEntity(order)).WithMessage("order accepted").Build()
}

func (h *Handler) reject(c echo.Context) error {
	b := response.New(c)
	restaurantID := c.Param("restaurantId")
	orderID := c.Param("orderId")

	var req dto.RejectOrderRequest
	if err := c.Bind(&req); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.reject", trace.WithAttributes(
		attribute.String("order.id", orderID),
		attribute.String("restaurant.id", restaurantID),
	))
	defer span.End()

	order, err := h.svc.Reject(ctx, orderID, restaurantID, req.Reason)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FromEntity(order)).WithMessage("order rejected").Build()
}

func (h *Handler) ready(c echo.Context) error {
	b := response.New(c)
	restaurantID := c.Param("restaurantId")
	orderID := c.Param("orderId")

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.ready", trace.WithAttributes(
		attribute.String("order.id", orderID),
		attribute.String("restaurant.id", restaurantID),
	))
	defer span.End()

	order, err := h.svc.MarkReady(ctx, orderID, restaurantID)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FromEntity(order)).WithMessage("order ready for pickup").Build()
}

func (h *Handler) riderAssigned(c echo.Context) error {
	b := response.New(c)
	orderID := c.Param("orderId")

	var req dto.UpdateStatusRequest
	if err := c.Bind(&req); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.riderAssigned", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()

	order, err := h.svc.UpdateStatus(ctx, orderID, entity.StatusRiderAssigned, service.Extra{
		RiderID:    req.RiderID,
		RiderName:  req.RiderName,
		RiderPhone: req.RiderPhone,
	})
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FromEntity(order)).Build()
}

func (h *Handler) pickedUp(c echo.Context) error {
	return h.webhookTransition(c, "orders.pickedUp", entity.StatusPickedUp)
}

func (h *Handler) outForDelivery(c echo.Context) error {
	return h.webhookTransition(c, "orders.outForDelivery", entity.StatusOutForDelivery)
}

func (h *Handler) webhookTransition(c echo.Context, spanName string, status entity.Status) error {
	b := response.New(c)
	orderID := c.Param("orderId")

	ctx, span := httpTracer.Start(c.Request().Context(), spanName, trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()

	order, err := h.svc.UpdateStatus(ctx, orderID, status, service.Extra{})
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FromEntity(order)).Build()
}

func (h *Handler) delivered(c echo.Context) error {
	b := response.New(c)
	orderID := c.Param("orderId")

	var req dto.ConfirmDeliveryRequest
	if err := c.Bind(&req); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.delivered", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()

	order, err := h.svc.ConfirmDelivered(ctx, orderID, req.VerificationCode)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FromEntity(order)).WithMessage("delivery confirmed").Build()
}

func (h *Handler) updateStatus(c echo.Context) error {
	b := response.New(c)
	orderID := c.Param("orderId")

	var req dto.UpdateStatusRequest
	if err := c.Bind(&req); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}
	if req.Status == "" {
		return b.WithError(errorbank.BadRequest("status is required")).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.updateStatus", trace.WithAttributes(
		attribute.String("order.id", orderID),
		attribute.String("order.status", req.Status),
	))
	defer span.End()

	order, err := h.svc.UpdateStatus(ctx, orderID, entity.Status(req.Status), service.Extra{
		RiderID:     req.RiderID,
		RiderName:   req.RiderName,
		RiderPhone:  req.RiderPhone,
		DeliveryRef: req.DeliveryRef,
	})
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FromEntity(order)).Build()
}

func limitParam(c echo.Context) (int, error) {
	raw := c.QueryParam("limit")
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, errorbank.BadRequest("invalid limit", errorbank.WithDetail("limit", raw))
	}
	return limit, nil
}
