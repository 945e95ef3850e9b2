package ordersync

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Order is the slice of the order payload a dashboard client tracks. Push
// payloads and pull responses both decode into it; unknown fields are
// dropped.
type Order struct {
	OrderID        string    `json:"orderId"`
	RestaurantID   string    `json:"restaurantId"`
	RestaurantName string    `json:"restaurantName"`
	CustomerID     string    `json:"customerId"`
	CustomerName   string    `json:"customerName"`
	Status         string    `json:"status"`
	Total          float64   `json:"total"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// EventNewOrder is the push event that announces an order unseen by the
// client. Only this event triggers the OnNewOrder cue.
const EventNewOrder = "new_order"

const (
	defaultPollInterval = 15 * time.Second
	minPollInterval     = 5 * time.Second
	maxPollInterval     = 30 * time.Second
)

// FetchFunc pulls the authoritative active-order list, typically
// GET /restaurant/:id/orders?status=active.
type FetchFunc func(ctx context.Context) ([]Order, error)

// Config drives a Reconciler.
type Config struct {
	// PollInterval is clamped to 5s..30s; zero means 15s.
	PollInterval time.Duration

	// FetchActive is required; the reconciler is useless without a pull
	// source.
	FetchActive FetchFunc

	// OnNewOrder fires exactly once per order id, and only for orders
	// first seen through a new_order push.
	OnNewOrder func(Order)

	// OnChange fires after any mutation of local state with a fresh
	// snapshot. Optional.
	OnChange func([]Order)

	Logger *zap.Logger
}

// Reconciler merges push-delivered order updates with a periodic
// full-state pull so a dashboard self-heals after missed events. Push is
// immediate but lossy; the pull replaces local state wholesale and never
// triggers notification cues.
type Reconciler struct {
	cfg  Config
	log  *zap.Logger
	kick chan struct{}

	mu     sync.Mutex
	orders map[string]Order
	seen   map[string]bool
}

// New validates cfg and builds a Reconciler. Run must be called for the
// periodic pull to happen; ApplyPush works independently of Run.
func New(cfg Config) *Reconciler {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.PollInterval < minPollInterval {
		cfg.PollInterval = minPollInterval
	}
	if cfg.PollInterval > maxPollInterval {
		cfg.PollInterval = maxPollInterval
	}

	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Reconciler{
		cfg:    cfg,
		log:    log,
		kick:   make(chan struct{}, 1),
		orders: make(map[string]Order),
		seen:   make(map[string]bool),
	}
}

// Run pulls once immediately, then on every poll tick or reconnect kick
// until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) error {
	r.pull(ctx)

	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.pull(ctx)
		case <-r.kick:
			r.pull(ctx)
		}
	}
}

// NotifyReconnected requests an immediate pull instead of waiting for the
// next tick. Safe to call from the push transport's reconnect handler.
func (r *Reconciler) NotifyReconnected() {
	select {
	case r.kick <- struct{}{}:
	default:
	}
}

// ApplyPush folds one push event into local state. new_order for an
// unseen id fires OnNewOrder; every event upserts the order.
func (r *Reconciler) ApplyPush(event string, order Order) {
	if order.OrderID == "" {
		return
	}

	r.mu.Lock()
	fresh := event == EventNewOrder && !r.seen[order.OrderID]
	r.seen[order.OrderID] = true
	r.orders[order.OrderID] = order
	snapshot := r.snapshotLocked()
	r.mu.Unlock()

	if fresh && r.cfg.OnNewOrder != nil {
		r.cfg.OnNewOrder(order)
	}
	r.notifyChange(snapshot)
}

// Orders returns the current local state, newest first.
func (r *Reconciler) Orders() []Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Reconciler) pull(ctx context.Context) {
	if r.cfg.FetchActive == nil {
		return
	}

	fetched, err := r.cfg.FetchActive(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		r.log.Warn("order pull failed", zap.Error(err))

		return
	}

	next := make(map[string]Order, len(fetched))
	for _, o := range fetched {
		if o.OrderID == "" {
			continue
		}
		next[o.OrderID] = o
	}

	r.mu.Lock()
	for id := range next {
		r.seen[id] = true
	}
	r.orders = next
	snapshot := r.snapshotLocked()
	r.mu.Unlock()

	r.notifyChange(snapshot)
}

func (r *Reconciler) snapshotLocked() []Order {
	out := make([]Order, 0, len(r.orders))
	for _, o := range r.orders {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (r *Reconciler) notifyChange(snapshot []Order) {
	if r.cfg.OnChange != nil {
		r.cfg.OnChange(snapshot)
	}
}
