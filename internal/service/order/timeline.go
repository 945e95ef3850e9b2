package order

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/myezzsolution/MyEzz-Restaurants/internal/dto"
	"github.com/myezzsolution/MyEzz-Restaurants/internal/entity"
)

var milestoneLabels = map[entity.Status]string{
	entity.StatusPendingRestaurant: "Order placed",
	entity.StatusPreparing:         "Preparing",
	entity.StatusReadyForPickup:    "Ready for pickup",
	entity.StatusRiderAssigned:     "Rider assigned",
	entity.StatusPickedUp:          "Picked up",
	entity.StatusOutForDelivery:    "Out for delivery",
	entity.StatusDelivered:         "Delivered",
}

// Track returns the order together with its derived milestone timeline. The
// timeline is computed on read, never persisted.
func (s *Service) Track(ctx context.Context, orderID string) (*dto.TrackResponse, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Track", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()

	order, err := s.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	return &dto.TrackResponse{
		Order:    dto.FromEntity(order),
		Timeline: buildTimeline(order),
	}, nil
}

// buildTimeline marks each success-path milestone completed when its own
// timestamp is recorded or the order has progressed to or past it. Rejected
// and cancelled orders sit outside the success path, so only milestones with
// recorded timestamps stay completed.
func buildTimeline(order *entity.Order) []dto.Milestone {
	rank, onPath := entity.SuccessRank(order.Status)

	timeline := make([]dto.Milestone, 0, len(entity.SuccessPath()))
	for i, status := range entity.SuccessPath() {
		ts := milestoneTimestamp(order, status)
		completed := ts != nil || (onPath && rank >= i)
		timeline = append(timeline, dto.Milestone{
			Status:    string(status),
			Label:     milestoneLabels[status],
			Completed: completed,
			Timestamp: ts,
		})
	}
	return timeline
}

func milestoneTimestamp(order *entity.Order, status entity.Status) *time.Time {
	switch status {
	case entity.StatusPendingRestaurant:
		if order.CreatedAt.IsZero() {
			return nil
		}
		created := order.CreatedAt
		return &created
	case entity.StatusPreparing:
		return order.AcceptedAt
	case entity.StatusReadyForPickup:
		return order.ReadyAt
	case entity.StatusPickedUp:
		return order.PickedUpAt
	case entity.StatusDelivered:
		return order.DeliveredAt
	default:
		return nil
	}
}
