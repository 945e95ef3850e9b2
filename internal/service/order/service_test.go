package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

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

var (
	orderIDPattern = regexp.MustCompile(`^ORD-[0-9A-Z]+-[A-HJ-NP-Z2-9]{10}$`)
	codePattern    = regexp.MustCompile(`^[A-HJ-NP-Z2-9]{4}$`)
)

// mockDispatcher counts calls and signals each one on a channel.
type mockDispatcher struct {
	mu     sync.Mutex
	calls  int
	ref    string
	err    error
	called chan struct{}
}

func newMockDispatcher(ref string, err error) *mockDispatcher {
	return &mockDispatcher{ref: ref, err: err, called: make(chan struct{}, 16)}
}

func (m *mockDispatcher) Dispatch(_ context.Context, _ *entity.Order) (string, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	select {
	case m.called <- struct{}{}:
	default:
	}
	return m.ref, m.err
}

func (m *mockDispatcher) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *mockDispatcher) waitForCall(t *testing.T) {
	t.Helper()
	select {
	case <-m.called:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher was not invoked")
	}
}

// recordNotifier captures hub emissions as "room event" pairs.
type recordNotifier struct {
	mu    sync.Mutex
	emits []string
}

func (r *recordNotifier) EmitToRoom(kind hub.RoomKind, id, event string, _ any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emits = append(r.emits, fmt.Sprintf("%s_%s %s", kind, id, event))
}

func (r *recordNotifier) Broadcast(event string, _ any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emits = append(r.emits, "* "+event)
}

func (r *recordNotifier) has(entry string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.emits {
		if e == entry {
			return true
		}
	}
	return false
}

// recordPublisher captures published lifecycle events.
type recordPublisher struct {
	mu     sync.Mutex
	events []OrderEvent
	keys   []string
}

func (r *recordPublisher) Publish(_ context.Context, key, value []byte) error {
	var event OrderEvent
	if err := json.Unmarshal(value, &event); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	r.keys = append(r.keys, string(key))
	return nil
}

func (r *recordPublisher) Consume(ctx context.Context, _ messaging.Handler) error {
	<-ctx.Done()
	return ctx.Err()
}

func (r *recordPublisher) Topic() string { return "orders.events" }

func (r *recordPublisher) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Event)
	}
	return out
}

// mapCache is a minimal look-aside cache backend for the service tests.
type mapCache struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func newMapCache() *mapCache {
	return &mapCache{entries: make(map[string][]byte)}
}

func (c *mapCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if raw, ok := c.entries[key]; ok {
		return raw, nil
	}
	return nil, cache.ErrCacheMiss
}

func (c *mapCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
	return nil
}

func (c *mapCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

type fixture struct {
	svc        *Service
	store      *repo.Ephemeral
	dispatcher *mockDispatcher
	notifier   *recordNotifier
	publisher  *recordPublisher
}

func newFixture(t *testing.T, dispatcher *mockDispatcher) *fixture {
	t.Helper()
	if dispatcher == nil {
		dispatcher = newMockDispatcher("", nil)
	}

	cfg := config.Config{}
	cfg.Cache.DefaultTTL = time.Minute
	cfg.Delivery.Timeout = time.Second
	cfg.Messaging.Enabled = true
	cfg.Messaging.Kafka.Topic = "orders.events"

	store := repo.NewEphemeral()
	notifier := &recordNotifier{}
	publisher := &recordPublisher{}

	svc := NewService(Params{
		Store:      store,
		Cache:      nil,
		Config:     cfg,
		Logger:     zap.NewNop(),
		Publisher:  publisher,
		Dispatcher: dispatcher,
		Notifier:   notifier,
	})

	return &fixture{svc: svc, store: store, dispatcher: dispatcher, notifier: notifier, publisher: publisher}
}

func createReq() dto.CreateOrderRequest {
	return dto.CreateOrderRequest{
		CustomerID:      "cust-1",
		CustomerName:    "Asha Nair",
		CustomerPhone:   "+91-98450-11001",
		DeliveryAddress: "14 Residency Road",
		RestaurantID:    "rest-1",
		RestaurantName:  "Tandoori House",
		Items:           []dto.OrderItem{{Name: "Test Item", Quantity: 2, Price: 150}},
		DeliveryFee:     28,
		PlatformFee:     10,
		Total:           338.00,
		PaymentMethod:   "cod",
	}
}

func mustCreate(t *testing.T, f *fixture) *entity.Order {
	t.Helper()
	order, err := f.svc.Create(context.Background(), createReq())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return order
}

func assertKind(t *testing.T, err error, kind errorbank.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	var appErr *errorbank.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected AppError, got %T: %v", err, err)
	}
	if appErr.Kind() != kind {
		t.Fatalf("kind = %s, want %s (%v)", appErr.Kind(), kind, err)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestCreateOrder(t *testing.T) {
	f := newFixture(t, nil)
	order := mustCreate(t, f)

	if order.Status != entity.StatusPendingRestaurant {
		t.Errorf("status = %s, want %s", order.Status, entity.StatusPendingRestaurant)
	}
	if !orderIDPattern.MatchString(order.OrderID) {
		t.Errorf("order id %q does not match the documented format", order.OrderID)
	}
	if !codePattern.MatchString(order.VerificationCode) {
		t.Errorf("verification code %q is not 4 unambiguous characters", order.VerificationCode)
	}
	if order.Subtotal != 300 {
		t.Errorf("subtotal = %v, want 300 computed from items", order.Subtotal)
	}
	if order.Total != 338.00 {
		t.Errorf("total = %v, want 338.00", order.Total)
	}
	if order.CreatedAt.IsZero() {
		t.Error("created_at not stamped")
	}

	if !f.notifier.has("restaurant_rest-1 new_order") {
		t.Errorf("new_order not emitted to the restaurant room: %v", f.notifier.emits)
	}
	if names := f.publisher.names(); len(names) != 1 || names[0] != EventCreated {
		t.Errorf("published events = %v, want [%s]", names, EventCreated)
	}

	stored, err := f.store.GetByOrderID(context.Background(), order.OrderID)
	if err != nil {
		t.Fatalf("stored order missing: %v", err)
	}
	if stored.VerificationCode != order.VerificationCode {
		t.Error("stored verification code differs")
	}
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t, nil)

	cases := []struct {
		name   string
		mutate func(*dto.CreateOrderRequest)
	}{
		{"missing customer name", func(r *dto.CreateOrderRequest) { r.CustomerName = " " }},
		{"missing phone", func(r *dto.CreateOrderRequest) { r.CustomerPhone = "" }},
		{"missing address", func(r *dto.CreateOrderRequest) { r.DeliveryAddress = "" }},
		{"missing restaurant id", func(r *dto.CreateOrderRequest) { r.RestaurantID = "" }},
		{"missing restaurant name", func(r *dto.CreateOrderRequest) { r.RestaurantName = "" }},
		{"no items", func(r *dto.CreateOrderRequest) { r.Items = nil }},
		{"zero total", func(r *dto.CreateOrderRequest) { r.Total = 0 }},
		{"negative total", func(r *dto.CreateOrderRequest) { r.Total = -10 }},
		{"unnamed item", func(r *dto.CreateOrderRequest) { r.Items[0].Name = "" }},
		{"zero quantity", func(r *dto.CreateOrderRequest) { r.Items[0].Quantity = 0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := createReq()
			tc.mutate(&req)
			_, err := f.svc.Create(context.Background(), req)
			assertKind(t, err, errorbank.KindBadRequest)
		})
	}

	if f.store.Len() != 0 {
		t.Errorf("invalid requests persisted %d orders", f.store.Len())
	}
}

func TestAcceptOrder(t *testing.T) {
	// Dispatch failing must not fail the accept, and must still be tried
	// exactly once.
	dispatcher := newMockDispatcher("", errors.New("delivery service down"))
	f := newFixture(t, dispatcher)
	order := mustCreate(t, f)

	accepted, err := f.svc.Accept(context.Background(), order.OrderID, "rest-1", 20)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if accepted.Status != entity.StatusPreparing {
		t.Errorf("status = %s, want %s", accepted.Status, entity.StatusPreparing)
	}
	if accepted.PrepTimeMinutes != 20 {
		t.Errorf("prep time = %d, want 20", accepted.PrepTimeMinutes)
	}
	if accepted.AcceptedAt == nil {
		t.Error("accepted_at not stamped")
	}

	dispatcher.waitForCall(t)
	if got := dispatcher.callCount(); got != 1 {
		t.Errorf("dispatcher called %d times, want 1", got)
	}

	if !f.notifier.has("restaurant_rest-1 order_status_changed") {
		t.Errorf("restaurant room missed order_status_changed: %v", f.notifier.emits)
	}
	if !f.notifier.has("customer_cust-1 order_status_changed") {
		t.Errorf("customer room missed order_status_changed: %v", f.notifier.emits)
	}
}

func TestAcceptStoresDeliveryRef(t *testing.T) {
	dispatcher := newMockDispatcher("DLV-9", nil)
	f := newFixture(t, dispatcher)
	order := mustCreate(t, f)

	if _, err := f.svc.Accept(context.Background(), order.OrderID, "rest-1", 15); err != nil {
		t.Fatalf("accept: %v", err)
	}

	waitFor(t, "delivery ref write", func() bool {
		stored, err := f.store.GetByOrderID(context.Background(), order.OrderID)
		return err == nil && stored.DeliveryRef == "DLV-9"
	})
}

func TestAcceptRefreshesCachedOrder(t *testing.T) {
	dispatcher := newMockDispatcher("DLV-9", nil)
	store := repo.NewEphemeral()

	cfg := config.Config{}
	cfg.Cache.DefaultTTL = time.Minute
	cfg.Delivery.Timeout = time.Second

	svc := NewService(Params{
		Store:      store,
		Cache:      newMapCache(),
		Config:     cfg,
		Logger:     zap.NewNop(),
		Dispatcher: dispatcher,
		Notifier:   &recordNotifier{},
	})

	order, err := svc.Create(context.Background(), createReq())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Accept(context.Background(), order.OrderID, "rest-1", 15); err != nil {
		t.Fatalf("accept: %v", err)
	}

	// Accept caches the order before the delivery ref lands. Reads must not
	// be pinned to that copy until the cache expires it.
	waitFor(t, "cached order to carry the delivery ref", func() bool {
		got, err := svc.GetByOrderID(context.Background(), order.OrderID)
		return err == nil && got.DeliveryRef == "DLV-9"
	})
}

func TestAcceptGuards(t *testing.T) {
	f := newFixture(t, nil)
	order := mustCreate(t, f)

	if _, err := f.svc.Accept(context.Background(), order.OrderID, "rest-1", 0); err == nil {
		t.Error("expected prep time validation to fail")
	}

	_, err := f.svc.Accept(context.Background(), order.OrderID, "rest-other", 20)
	assertKind(t, err, errorbank.KindNotFound)

	_, err = f.svc.Accept(context.Background(), "ORD-MISSING", "rest-1", 20)
	assertKind(t, err, errorbank.KindNotFound)

	if _, err := f.svc.Accept(context.Background(), order.OrderID, "rest-1", 20); err != nil {
		t.Fatalf("accept: %v", err)
	}

	// The order is preparing now; accepting again is an illegal move and
	// must leave it untouched.
	before, _ := f.store.GetByOrderID(context.Background(), order.OrderID)
	_, err = f.svc.Accept(context.Background(), order.OrderID, "rest-1", 30)
	assertKind(t, err, errorbank.KindInvalidTransition)
	after, _ := f.store.GetByOrderID(context.Background(), order.OrderID)
	if after.PrepTimeMinutes != before.PrepTimeMinutes || !after.UpdatedAt.Equal(before.UpdatedAt) {
		t.Error("failed accept mutated the order")
	}
}

func TestConcurrentAcceptExactlyOneWins(t *testing.T) {
	dispatcher := newMockDispatcher("", nil)
	f := newFixture(t, dispatcher)
	order := mustCreate(t, f)

	const racers = 2
	start := make(chan struct{})
	errs := make(chan error, racers)
	var wg sync.WaitGroup

	for i := 0; i < racers; i++ {
		prep := 10 + i*10
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := f.svc.Accept(context.Background(), order.OrderID, "rest-1", prep)
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
			continue
		}
		assertKind(t, err, errorbank.KindInvalidTransition)
	}
	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}

	final, err := f.store.GetByOrderID(context.Background(), order.OrderID)
	if err != nil {
		t.Fatalf("load final order: %v", err)
	}
	if final.Status != entity.StatusPreparing {
		t.Errorf("final status = %s, want %s", final.Status, entity.StatusPreparing)
	}
	if final.AcceptedAt == nil || final.PrepTimeMinutes == 0 {
		t.Error("winner's prep time and accepted_at missing")
	}

	dispatcher.waitForCall(t)
	if got := dispatcher.callCount(); got != 1 {
		t.Errorf("dispatcher called %d times, want 1", got)
	}
}

func TestReject(t *testing.T) {
	f := newFixture(t, nil)
	order := mustCreate(t, f)

	rejected, err := f.svc.Reject(context.Background(), order.OrderID, "rest-1", "no capacity")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.Status != entity.StatusRejected {
		t.Errorf("status = %s, want %s", rejected.Status, entity.StatusRejected)
	}
	if rejected.RejectionReason != "no capacity" {
		t.Errorf("reason = %q, want %q", rejected.RejectionReason, "no capacity")
	}
	if rejected.RejectedAt == nil {
		t.Error("rejected_at not stamped")
	}
	if rejected.RefundStatus != "" {
		t.Errorf("unpaid order got refund status %q", rejected.RefundStatus)
	}
}

func TestRejectPreparingFails(t *testing.T) {
	f := newFixture(t, nil)
	order := mustCreate(t, f)
	if _, err := f.svc.Accept(context.Background(), order.OrderID, "rest-1", 20); err != nil {
		t.Fatalf("accept: %v", err)
	}

	_, err := f.svc.Reject(context.Background(), order.OrderID, "rest-1", "changed my mind")
	assertKind(t, err, errorbank.KindInvalidTransition)

	got, _ := f.store.GetByOrderID(context.Background(), order.OrderID)
	if got.Status != entity.StatusPreparing || got.RejectionReason != "" {
		t.Errorf("failed reject left marks: %s %q", got.Status, got.RejectionReason)
	}
}

func TestRejectPaidOrderInitiatesRefund(t *testing.T) {
	f := newFixture(t, nil)
	req := createReq()
	req.PaymentMethod = "online"
	req.PaymentStatus = "paid"
	order, err := f.svc.Create(context.Background(), req)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	rejected, err := f.svc.Reject(context.Background(), order.OrderID, "rest-1", "kitchen closed")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.RefundStatus != entity.RefundInitiated {
		t.Errorf("refund status = %q, want %q", rejected.RefundStatus, entity.RefundInitiated)
	}
	if rejected.RefundAmount != rejected.Total {
		t.Errorf("refund amount = %v, want %v", rejected.RefundAmount, rejected.Total)
	}
	if rejected.RefundReason != "kitchen closed" {
		t.Errorf("refund reason = %q", rejected.RefundReason)
	}
}

func TestMarkReady(t *testing.T) {
	f := newFixture(t, nil)
	order := mustCreate(t, f)

	_, err := f.svc.MarkReady(context.Background(), order.OrderID, "rest-1")
	assertKind(t, err, errorbank.KindInvalidTransition)

	if _, err := f.svc.Accept(context.Background(), order.OrderID, "rest-1", 20); err != nil {
		t.Fatalf("accept: %v", err)
	}
	ready, err := f.svc.MarkReady(context.Background(), order.OrderID, "rest-1")
	if err != nil {
		t.Fatalf("mark ready: %v", err)
	}
	if ready.Status != entity.StatusReadyForPickup {
		t.Errorf("status = %s, want %s", ready.Status, entity.StatusReadyForPickup)
	}
	if ready.ReadyAt == nil {
		t.Error("ready_at not stamped")
	}

	if !f.notifier.has(fmt.Sprintf("order_%s order_updated", order.OrderID)) {
		t.Errorf("order room missed order_updated: %v", f.notifier.emits)
	}
}

func TestUpdateStatusWebhookFlow(t *testing.T) {
	f := newFixture(t, nil)
	order := mustCreate(t, f)
	ctx := context.Background()

	if _, err := f.svc.Accept(ctx, order.OrderID, "rest-1", 20); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := f.svc.MarkReady(ctx, order.OrderID, "rest-1"); err != nil {
		t.Fatalf("ready: %v", err)
	}

	assigned, err := f.svc.UpdateStatus(ctx, order.OrderID, entity.StatusRiderAssigned, Extra{
		RiderID:     "rider-7",
		RiderName:   "Vikram",
		RiderPhone:  "+91-98450-22002",
		DeliveryRef: "DLV-77",
	})
	if err != nil {
		t.Fatalf("rider assigned: %v", err)
	}
	if assigned.RiderID != "rider-7" || assigned.RiderName != "Vikram" {
		t.Errorf("rider fields not recorded: %+v", assigned)
	}
	if assigned.DeliveryRef != "DLV-77" {
		t.Errorf("delivery ref = %q, want DLV-77", assigned.DeliveryRef)
	}

	picked, err := f.svc.UpdateStatus(ctx, order.OrderID, entity.StatusPickedUp, Extra{})
	if err != nil {
		t.Fatalf("picked up: %v", err)
	}
	if picked.PickedUpAt == nil {
		t.Error("picked_up_at not stamped")
	}

	if !f.notifier.has("* order_status_updated") {
		t.Errorf("status update not broadcast: %v", f.notifier.emits)
	}
	if !f.notifier.has(fmt.Sprintf("order_%s order_updated", order.OrderID)) {
		t.Errorf("order room missed order_updated: %v", f.notifier.emits)
	}
}

func TestUpdateStatusRejectsUnknown(t *testing.T) {
	f := newFixture(t, nil)
	order := mustCreate(t, f)

	_, err := f.svc.UpdateStatus(context.Background(), order.OrderID, "flying", Extra{})
	assertKind(t, err, errorbank.KindBadRequest)
}

func TestReplayedWebhookKeepsFirstTimestamp(t *testing.T) {
	f := newFixture(t, nil)
	order := mustCreate(t, f)
	ctx := context.Background()

	first, err := f.svc.UpdateStatus(ctx, order.OrderID, entity.StatusPickedUp, Extra{})
	if err != nil {
		t.Fatalf("picked up: %v", err)
	}
	if first.PickedUpAt == nil {
		t.Fatal("picked_up_at not stamped")
	}

	time.Sleep(5 * time.Millisecond)

	replayed, err := f.svc.UpdateStatus(ctx, order.OrderID, entity.StatusPickedUp, Extra{})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if !replayed.PickedUpAt.Equal(*first.PickedUpAt) {
		t.Errorf("picked_up_at restamped: %v then %v", first.PickedUpAt, replayed.PickedUpAt)
	}
}

func TestTerminalOrdersAreImmutable(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	// Webhook transitions skip adjacency on purpose, so an order can be
	// driven straight to a terminal state.
	order := mustCreate(t, f)
	if _, err := f.svc.UpdateStatus(ctx, order.OrderID, entity.StatusDelivered, Extra{}); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	_, err := f.svc.UpdateStatus(ctx, order.OrderID, entity.StatusCancelled, Extra{})
	assertKind(t, err, errorbank.KindInvalidTransition)

	rejectedOrder := mustCreate(t, f)
	if _, err := f.svc.Reject(ctx, rejectedOrder.OrderID, "rest-1", "no capacity"); err != nil {
		t.Fatalf("reject: %v", err)
	}
	_, err = f.svc.UpdateStatus(ctx, rejectedOrder.OrderID, entity.StatusPreparing, Extra{})
	assertKind(t, err, errorbank.KindInvalidTransition)

	got, _ := f.store.GetByOrderID(ctx, rejectedOrder.OrderID)
	if got.Status != entity.StatusRejected {
		t.Errorf("terminal order moved to %s", got.Status)
	}
}

func TestConfirmDelivered(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	order := mustCreate(t, f)

	for _, status := range []entity.Status{
		entity.StatusPreparing,
		entity.StatusReadyForPickup,
		entity.StatusRiderAssigned,
		entity.StatusPickedUp,
		entity.StatusOutForDelivery,
	} {
		if _, err := f.svc.UpdateStatus(ctx, order.OrderID, status, Extra{}); err != nil {
			t.Fatalf("advance to %s: %v", status, err)
		}
	}

	// "0" is excluded from the code alphabet, so this can never match.
	_, err := f.svc.ConfirmDelivered(ctx, order.OrderID, "0000")
	assertKind(t, err, errorbank.KindInvalidCode)
	mid, _ := f.store.GetByOrderID(ctx, order.OrderID)
	if mid.Status != entity.StatusOutForDelivery {
		t.Errorf("failed confirmation moved the order to %s", mid.Status)
	}

	// The code check is case-insensitive and tolerant of padding.
	sloppy := "  " + strings.ToLower(order.VerificationCode) + " "
	delivered, err := f.svc.ConfirmDelivered(ctx, order.OrderID, sloppy)
	if err != nil {
		t.Fatalf("confirm delivered: %v", err)
	}
	if delivered.Status != entity.StatusDelivered {
		t.Errorf("status = %s, want %s", delivered.Status, entity.StatusDelivered)
	}
	if delivered.DeliveredAt == nil {
		t.Error("delivered_at not stamped")
	}
}

func TestTrackTimeline(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	order := mustCreate(t, f)
	if _, err := f.svc.Accept(ctx, order.OrderID, "rest-1", 20); err != nil {
		t.Fatalf("accept: %v", err)
	}

	view, err := f.svc.Track(ctx, order.OrderID)
	if err != nil {
		t.Fatalf("track: %v", err)
	}
	if view.Order.OrderID != order.OrderID {
		t.Errorf("track returned order %s", view.Order.OrderID)
	}
	if len(view.Timeline) != 7 {
		t.Fatalf("timeline has %d milestones, want 7", len(view.Timeline))
	}

	for i, m := range view.Timeline {
		wantCompleted := i <= 1 // placed and preparing
		if m.Completed != wantCompleted {
			t.Errorf("milestone %s completed = %v, want %v", m.Status, m.Completed, wantCompleted)
		}
	}
	if view.Timeline[0].Timestamp == nil || view.Timeline[1].Timestamp == nil {
		t.Error("completed milestones missing timestamps")
	}
	if view.Timeline[2].Timestamp != nil {
		t.Error("future milestone carries a timestamp")
	}
	if view.Timeline[0].Label == "" {
		t.Error("milestones must carry display labels")
	}
}

func TestTrackRejectedOrder(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	order := mustCreate(t, f)
	if _, err := f.svc.Reject(ctx, order.OrderID, "rest-1", "no capacity"); err != nil {
		t.Fatalf("reject: %v", err)
	}

	view, err := f.svc.Track(ctx, order.OrderID)
	if err != nil {
		t.Fatalf("track: %v", err)
	}
	// Off the success path only recorded milestones stay completed.
	if !view.Timeline[0].Completed {
		t.Error("placed milestone should stay completed")
	}
	for _, m := range view.Timeline[1:] {
		if m.Completed {
			t.Errorf("milestone %s completed on a rejected order", m.Status)
		}
	}
}

func TestListRestaurantOrders(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	first := mustCreate(t, f)
	second := mustCreate(t, f)
	if _, err := f.svc.Accept(ctx, first.OrderID, "rest-1", 20); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := f.svc.UpdateStatus(ctx, second.OrderID, entity.StatusDelivered, Extra{}); err != nil {
		t.Fatalf("deliver: %v", err)
	}

	active, err := f.svc.ListRestaurantOrders(ctx, "rest-1", "active", 0)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 1 || active[0].OrderID != first.OrderID {
		t.Errorf("active filter returned %d orders", len(active))
	}

	preparing, err := f.svc.ListRestaurantOrders(ctx, "rest-1", string(entity.StatusPreparing), 0)
	if err != nil {
		t.Fatalf("list preparing: %v", err)
	}
	if len(preparing) != 1 {
		t.Errorf("exact filter returned %d orders", len(preparing))
	}

	all, err := f.svc.ListRestaurantOrders(ctx, "rest-1", "", 0)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("unfiltered list returned %d orders", len(all))
	}

	_, err = f.svc.ListRestaurantOrders(ctx, "rest-1", "nonsense", 0)
	assertKind(t, err, errorbank.KindBadRequest)
}

func TestListCustomerOrders(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	mustCreate(t, f)
	mustCreate(t, f)

	orders, err := f.svc.ListCustomerOrders(ctx, "cust-1", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(orders) != 2 {
		t.Errorf("customer list returned %d orders", len(orders))
	}

	none, err := f.svc.ListCustomerOrders(ctx, "cust-unknown", 0)
	if err != nil {
		t.Fatalf("list unknown: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("unknown customer got %d orders", len(none))
	}
}

func TestGetByOrderIDNotFound(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.GetByOrderID(context.Background(), "ORD-MISSING")
	assertKind(t, err, errorbank.KindNotFound)
}

func TestErase(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	order := mustCreate(t, f)

	if err := f.svc.Erase(ctx, order.OrderID); err != nil {
		t.Fatalf("erase: %v", err)
	}
	_, err := f.svc.GetByOrderID(ctx, order.OrderID)
	assertKind(t, err, errorbank.KindNotFound)

	err = f.svc.Erase(ctx, order.OrderID)
	assertKind(t, err, errorbank.KindNotFound)
}

func TestLifecycleEventsPublished(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	order := mustCreate(t, f)

	if _, err := f.svc.Accept(ctx, order.OrderID, "rest-1", 20); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := f.svc.MarkReady(ctx, order.OrderID, "rest-1"); err != nil {
		t.Fatalf("ready: %v", err)
	}
	if _, err := f.svc.UpdateStatus(ctx, order.OrderID, entity.StatusPickedUp, Extra{}); err != nil {
		t.Fatalf("picked up: %v", err)
	}

	want := []string{EventCreated, EventAccepted, EventReady, EventStatusUpdated}
	names := f.publisher.names()
	if len(names) != len(want) {
		t.Fatalf("published %d events %v, want %d", len(names), names, len(want))
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("event %d = %s, want %s", i, names[i], want[i])
		}
	}

	f.publisher.mu.Lock()
	defer f.publisher.mu.Unlock()
	for i, event := range f.publisher.events {
		if event.OrderID != order.OrderID {
			t.Errorf("event %d carries order %s", i, event.OrderID)
		}
		if f.publisher.keys[i] != order.OrderID {
			t.Errorf("event %d keyed by %q", i, f.publisher.keys[i])
		}
		if event.OccurredAt.IsZero() {
			t.Errorf("event %d missing occurred_at", i)
		}
	}
}

func TestOrderIDsAreUnique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 200; i++ {
		id := newOrderID()
		if !orderIDPattern.MatchString(id) {
			t.Fatalf("id %q does not match the documented format", id)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id after %d draws: %s", i, id)
		}
		seen[id] = struct{}{}
	}
}

func TestVerificationCodeAlphabet(t *testing.T) {
	for i := 0; i < 100; i++ {
		code := newVerificationCode()
		if !codePattern.MatchString(code) {
			t.Fatalf("code %q contains ambiguous characters", code)
		}
		if strings.ContainsAny(code, "01OIL") {
			t.Fatalf("code %q contains a lookalike character", code)
		}
	}
}
