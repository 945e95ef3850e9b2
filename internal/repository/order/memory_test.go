package order

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/myezzsolution/MyEzz-Restaurants/internal/entity"
)

func seedOrder(t *testing.T, s *Ephemeral, orderID, restaurantID, customerID string, status entity.Status, createdAt time.Time) {
	t.Helper()
	err := s.Create(context.Background(), &entity.Order{
		OrderID:      orderID,
		RestaurantID: restaurantID,
		CustomerID:   customerID,
		Status:       status,
		CreatedAt:    createdAt,
	})
	if err != nil {
		t.Fatalf("seed %s: %v", orderID, err)
	}
}

func TestEphemeralCreateAndGet(t *testing.T) {
	ctx := context.Background()
	store := NewEphemeral()

	order := &entity.Order{
		OrderID: "ORD-1",
		Status:  entity.StatusPendingRestaurant,
		Items:   []entity.OrderItem{{Name: "Test Item", Quantity: 2, Price: 150}},
	}
	if err := store.Create(ctx, order); err != nil {
		t.Fatalf("create: %v", err)
	}
	if order.ID == 0 {
		t.Error("expected an assigned row id")
	}
	if err := store.Create(ctx, &entity.Order{OrderID: "ORD-1"}); err == nil {
		t.Error("expected duplicate create to fail")
	}

	got, err := store.GetByOrderID(ctx, "ORD-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	// Returned orders are copies; mutations must not reach the store.
	got.Items[0].Quantity = 99
	again, _ := store.GetByOrderID(ctx, "ORD-1")
	if again.Items[0].Quantity != 2 {
		t.Error("store handed out shared state")
	}

	if _, err := store.GetByOrderID(ctx, "ORD-missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestEphemeralUpdateStatusGuard(t *testing.T) {
	ctx := context.Background()
	store := NewEphemeral()
	seedOrder(t, store, "ORD-1", "rest-1", "cust-1", entity.StatusPendingRestaurant, time.Now().UTC())

	updated, err := store.UpdateStatus(ctx, "ORD-1", entity.StatusPendingRestaurant, func(o *entity.Order) {
		o.Status = entity.StatusPreparing
		o.PrepTimeMinutes = 20
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Status != entity.StatusPreparing || updated.PrepTimeMinutes != 20 {
		t.Errorf("mutation not applied: %+v", updated)
	}
	if updated.UpdatedAt.IsZero() {
		t.Error("expected updated_at stamp")
	}

	// Guard miss: the order already moved off pending_restaurant.
	_, err = store.UpdateStatus(ctx, "ORD-1", entity.StatusPendingRestaurant, func(o *entity.Order) {
		o.Status = entity.StatusRejected
	})
	if !errors.Is(err, ErrStatusConflict) {
		t.Errorf("expected ErrStatusConflict, got %v", err)
	}

	got, _ := store.GetByOrderID(ctx, "ORD-1")
	if got.Status != entity.StatusPreparing {
		t.Errorf("losing update leaked: status %s", got.Status)
	}

	if _, err := store.UpdateStatus(ctx, "ORD-missing", entity.StatusPreparing, func(*entity.Order) {}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestEphemeralUpdateStatusConcurrent(t *testing.T) {
	ctx := context.Background()
	store := NewEphemeral()
	seedOrder(t, store, "ORD-1", "rest-1", "cust-1", entity.StatusPendingRestaurant, time.Now().UTC())

	const racers = 8
	start := make(chan struct{})
	errs := make(chan error, racers)
	var wg sync.WaitGroup

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := store.UpdateStatus(ctx, "ORD-1", entity.StatusPendingRestaurant, func(o *entity.Order) {
				o.Status = entity.StatusPreparing
			})
			errs <- err
		}()
	}

	close(start)
	wg.Wait()
	close(errs)

	wins := 0
	for err := range errs {
		if err == nil {
			wins++
		} else if !errors.Is(err, ErrStatusConflict) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}
}

func TestEphemeralListByRestaurant(t *testing.T) {
	ctx := context.Background()
	store := NewEphemeral()
	base := time.Now().UTC()
	seedOrder(t, store, "ORD-1", "rest-1", "cust-1", entity.StatusPendingRestaurant, base.Add(-3*time.Minute))
	seedOrder(t, store, "ORD-2", "rest-1", "cust-2", entity.StatusPreparing, base.Add(-2*time.Minute))
	seedOrder(t, store, "ORD-3", "rest-1", "cust-1", entity.StatusDelivered, base.Add(-1*time.Minute))
	seedOrder(t, store, "ORD-4", "rest-2", "cust-3", entity.StatusPreparing, base)

	all, err := store.ListByRestaurant(ctx, "rest-1", nil, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 orders, got %d", len(all))
	}
	if all[0].OrderID != "ORD-3" || all[2].OrderID != "ORD-1" {
		t.Errorf("expected newest first, got %s..%s", all[0].OrderID, all[2].OrderID)
	}

	active, err := store.ListByRestaurant(ctx, "rest-1", []entity.Status{
		entity.StatusPendingRestaurant,
		entity.StatusPreparing,
		entity.StatusReadyForPickup,
	}, 0)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("expected 2 active orders, got %d", len(active))
	}
	for _, o := range active {
		if o.Status == entity.StatusDelivered {
			t.Errorf("delivered order in active filter: %s", o.OrderID)
		}
	}

	limited, _ := store.ListByRestaurant(ctx, "rest-1", nil, 1)
	if len(limited) != 1 || limited[0].OrderID != "ORD-3" {
		t.Errorf("limit not applied, got %d orders", len(limited))
	}
}

func TestEphemeralListByCustomer(t *testing.T) {
	ctx := context.Background()
	store := NewEphemeral()
	base := time.Now().UTC()
	seedOrder(t, store, "ORD-1", "rest-1", "cust-1", entity.StatusPendingRestaurant, base.Add(-2*time.Minute))
	seedOrder(t, store, "ORD-2", "rest-2", "cust-1", entity.StatusDelivered, base)
	seedOrder(t, store, "ORD-3", "rest-1", "cust-2", entity.StatusPreparing, base)

	orders, err := store.ListByCustomer(ctx, "cust-1", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(orders) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(orders))
	}
	if orders[0].OrderID != "ORD-2" {
		t.Errorf("expected newest first, got %s", orders[0].OrderID)
	}
}

func TestEphemeralSetDeliveryRefAndDelete(t *testing.T) {
	ctx := context.Background()
	store := NewEphemeral()
	seedOrder(t, store, "ORD-1", "rest-1", "cust-1", entity.StatusPreparing, time.Now().UTC())

	if err := store.SetDeliveryRef(ctx, "ORD-1", "DLV-42"); err != nil {
		t.Fatalf("set ref: %v", err)
	}
	got, _ := store.GetByOrderID(ctx, "ORD-1")
	if got.DeliveryRef != "DLV-42" {
		t.Errorf("delivery ref = %q, want DLV-42", got.DeliveryRef)
	}
	if err := store.SetDeliveryRef(ctx, "ORD-missing", "DLV-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	if err := store.Delete(ctx, "ORD-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if store.Len() != 0 {
		t.Errorf("store not empty after delete")
	}
	if err := store.Delete(ctx, "ORD-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
