package seeder

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/myezzsolution/MyEzz-Restaurants/internal/database"
	"github.com/myezzsolution/MyEzz-Restaurants/internal/entity"
)

// Module provides the seeder to the Fx graph.
var Module = fx.Provide(New)

// Seeder performs database seeding for local/dev setups.
type Seeder struct {
	db     *bun.DB
	logger *zap.Logger
}

// New constructs a Seeder backed by the primary database connection.
func New(conns *database.Connections, logger *zap.Logger) (*Seeder, error) {
	if conns.Writer == nil {
		return nil, errors.New("database is disabled, nothing to seed")
	}
	return &Seeder{db: conns.Writer, logger: logger}, nil
}

// Orders seeds pending demo orders for two restaurants if they are missing.
func (s *Seeder) Orders(ctx context.Context) error {
	now := time.Now().UTC()
	samples := []entity.Order{
		{
			OrderID:         "ORD-DEMO-1000",
			CustomerID:      "cust-1001",
			CustomerName:    "Asha Nair",
			CustomerPhone:   "+91-98450-11001",
			DeliveryAddress: "14 Residency Road, Bengaluru",
			RestaurantID:    "rest-tandoori-house",
			RestaurantName:  "Tandoori House",
			Items: []entity.OrderItem{
				{Name: "Butter Chicken", Quantity: 1, Price: 320},
				{Name: "Garlic Naan", Quantity: 2, Price: 60},
			},
			Subtotal:         440,
			DeliveryFee:      40,
			PlatformFee:      10,
			Total:            490,
			PaymentMethod:    entity.PaymentCOD,
			PaymentStatus:    entity.PaymentPending,
			Status:           entity.StatusPendingRestaurant,
			VerificationCode: "DM42",
			CreatedAt:        now,
			UpdatedAt:        now,
		},
		{
			OrderID:         "ORD-DEMO-1001",
			CustomerID:      "cust-1002",
			CustomerName:    "Rahul Menon",
			CustomerPhone:   "+91-98450-11002",
			DeliveryAddress: "7 Lake View Street, Bengaluru",
			AddressNote:     "Gate 2, ask for the blue building",
			RestaurantID:    "rest-dosa-corner",
			RestaurantName:  "Dosa Corner",
			Items: []entity.OrderItem{
				{Name: "Masala Dosa", Quantity: 2, Price: 110},
				{Name: "Filter Coffee", Quantity: 2, Price: 40, Note: "less sugar"},
			},
			Subtotal:         300,
			DeliveryFee:      35,
			PlatformFee:      10,
			Total:            345,
			PaymentMethod:    entity.PaymentOnline,
			PaymentStatus:    entity.PaymentPaid,
			Status:           entity.StatusPendingRestaurant,
			VerificationCode: "DM77",
			CreatedAt:        now,
			UpdatedAt:        now,
		},
	}

	for _, sample := range samples {
		order := sample
		_, err := s.db.NewInsert().Model(&order).
			On("CONFLICT (order_id) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return err
		}
	}

	if s.logger != nil {
		s.logger.Info("seeded orders", zap.Int("count", len(samples)))
	}
	return nil
}
