package order

import (
	"context"
	"encoding/json"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/myezzsolution/MyEzz-Restaurants/internal/config"
	"github.com/myezzsolution/MyEzz-Restaurants/internal/messaging"
	ordersvc "github.com/myezzsolution/MyEzz-Restaurants/internal/service/order"
	"github.com/myezzsolution/MyEzz-Restaurants/internal/worker"
)

var workerTracer = otel.Tracer("github.com/myezzsolution/MyEzz-Restaurants/worker/order")

// Module registers order-related worker handlers.
var Module = fx.Module("worker_order",
	fx.Provide(
		fx.Annotate(
			NewLifecycleHandler,
			fx.ResultTags(`group:"worker.handlers"`),
		),
	),
)

// NewLifecycleHandler sets up a worker handler that tails order lifecycle
// events for the ops/audit log.
func NewLifecycleHandler(logger *zap.Logger, cfg config.Config) worker.HandlerRegistration {
	handler := func(ctx context.Context, msg messaging.Message) error {
		ctx, span := workerTracer.Start(ctx, "worker.orders.process", trace.WithAttributes(
			attribute.String("messaging.topic", msg.Topic),
		))
		defer span.End()

		var event ordersvc.OrderEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			logger.Error("failed to decode order event", zap.Error(err))

			span.RecordError(err)
			span.SetStatus(codes.Error, "decode error")
			return err
		}

		span.SetAttributes(
			attribute.String("order.id", event.OrderID),
			attribute.String("order.event", event.Event),
		)

		logger.Info("order lifecycle event processed",
			zap.String("event", event.Event),
			zap.String("orderId", event.OrderID),
			zap.String("restaurantId", event.RestaurantID),
			zap.String("status", event.Status),
			zap.Float64("total", event.Total),
		)

		return nil
	}

	return worker.HandlerRegistration{
		Topic:   cfg.Messaging.Kafka.Topic,
		Handler: handler,
	}
}
