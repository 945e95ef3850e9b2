package order

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/myezzsolution/MyEzz-Restaurants/internal/entity"
)

// Ephemeral is a process-local order store. It backs the service when the
// database schema is unavailable; contents are lost on restart.
type Ephemeral struct {
	mu     sync.RWMutex
	orders map[string]*entity.Order
	nextID int64
}

// NewEphemeral constructs an empty in-memory store.
func NewEphemeral() *Ephemeral {
	return &Ephemeral{orders: make(map[string]*entity.Order)}
}

// Mode labels the in-memory store.
func (s *Ephemeral) Mode() string { return ModeEphemeral }

// Create stores a copy of the order keyed by its public identifier.
func (s *Ephemeral) Create(_ context.Context, order *entity.Order) error {
	if order == nil {
		return fmt.Errorf("nil order")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[order.OrderID]; ok {
		return fmt.Errorf("order %s already exists", order.OrderID)
	}
	s.nextID++
	order.ID = s.nextID
	s.orders[order.OrderID] = order.Clone()
	return nil
}

// GetByOrderID returns a copy of the stored order.
func (s *Ephemeral) GetByOrderID(_ context.Context, orderID string) (*entity.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, ok := s.orders[orderID]
	if !ok {
		return nil, ErrNotFound
	}
	return order.Clone(), nil
}

// UpdateStatus applies the mutation under the store lock, so the status
// check and the write are atomic with respect to other callers.
func (s *Ephemeral) UpdateStatus(_ context.Context, orderID string, from entity.Status, apply func(*entity.Order)) (*entity.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok {
		return nil, ErrNotFound
	}
	if order.Status != from {
		return nil, ErrStatusConflict
	}

	updated := order.Clone()
	apply(updated)
	updated.UpdatedAt = time.Now().UTC()
	s.orders[orderID] = updated
	return updated.Clone(), nil
}

// SetDeliveryRef records the delivery reference on the stored order.
func (s *Ephemeral) SetDeliveryRef(_ context.Context, orderID, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok {
		return ErrNotFound
	}
	order.DeliveryRef = ref
	order.UpdatedAt = time.Now().UTC()
	return nil
}

// ListByCustomer returns a customer's orders, newest first.
func (s *Ephemeral) ListByCustomer(_ context.Context, customerID string, limit int) ([]*entity.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var orders []*entity.Order
	for _, order := range s.orders {
		if order.CustomerID == customerID {
			orders = append(orders, order.Clone())
		}
	}
	return sortAndTrim(orders, limit), nil
}

// ListByRestaurant returns a restaurant's orders, newest first.
func (s *Ephemeral) ListByRestaurant(_ context.Context, restaurantID string, statuses []entity.Status, limit int) ([]*entity.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var orders []*entity.Order
	for _, order := range s.orders {
		if order.RestaurantID != restaurantID {
			continue
		}
		if len(statuses) > 0 && !statusIn(order.Status, statuses) {
			continue
		}
		orders = append(orders, order.Clone())
	}
	return sortAndTrim(orders, limit), nil
}

func statusIn(s entity.Status, set []entity.Status) bool {
	for _, candidate := range set {
		if s == candidate {
			return true
		}
	}
	return false
}

// Delete removes the order from the store.
func (s *Ephemeral) Delete(_ context.Context, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[orderID]; !ok {
		return ErrNotFound
	}
	delete(s.orders, orderID)
	return nil
}

// Len reports the number of stored orders.
func (s *Ephemeral) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orders)
}

func sortAndTrim(orders []*entity.Order, limit int) []*entity.Order {
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	if limit > 0 && len(orders) > limit {
		orders = orders[:limit]
	}
	return orders
}
