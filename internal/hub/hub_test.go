package hub

import (
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"
)

// recorderConn keeps every envelope it receives.
type recorderConn struct {
	id string

	mu       sync.Mutex
	received []Envelope
	fail     bool
}

func newRecorderConn(id string) *recorderConn {
	return &recorderConn{id: id}
}

func (c *recorderConn) ID() string { return c.id }

func (c *recorderConn) Send(env Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("send failed")
	}
	c.received = append(c.received, env)
	return nil
}

func (c *recorderConn) events() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.received))
	for _, env := range c.received {
		out = append(out, env.Event)
	}
	return out
}

func contains(events []string, want string) bool {
	for _, e := range events {
		if e == want {
			return true
		}
	}
	return false
}

func TestJoinAndEmitToRoom(t *testing.T) {
	h := NewHub(zap.NewNop())
	member := newRecorderConn("c1")
	outsider := newRecorderConn("c2")
	h.Register(member)
	h.Register(outsider)

	if err := h.Join(member, RoomOrder, "ORD-1"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if !contains(member.events(), EventRoomJoined) {
		t.Error("expected a room_joined ack")
	}

	h.EmitToRoom(RoomOrder, "ORD-1", EventOrderUpdated, map[string]string{"orderId": "ORD-1"})

	if !contains(member.events(), EventOrderUpdated) {
		t.Error("room member missed the event")
	}
	if contains(outsider.events(), EventOrderUpdated) {
		t.Error("non-member received a room event")
	}
}

func TestLateJoinerMissesEarlierEvents(t *testing.T) {
	h := NewHub(zap.NewNop())
	late := newRecorderConn("c1")
	h.Register(late)

	h.EmitToRoom(RoomOrder, "ORD-1", EventOrderUpdated, nil)

	if err := h.Join(late, RoomOrder, "ORD-1"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if contains(late.events(), EventOrderUpdated) {
		t.Error("late joiner received an event emitted before it joined")
	}

	h.EmitToRoom(RoomOrder, "ORD-1", EventOrderUpdated, nil)
	if !contains(late.events(), EventOrderUpdated) {
		t.Error("joined connection missed the next event")
	}
}

func TestDisconnectedConnReceivesNothing(t *testing.T) {
	h := NewHub(zap.NewNop())
	conn := newRecorderConn("c1")
	h.Register(conn)
	if err := h.Join(conn, RoomOrder, "ORD-1"); err != nil {
		t.Fatalf("join: %v", err)
	}

	h.Disconnect(conn)
	h.EmitToRoom(RoomOrder, "ORD-1", EventOrderUpdated, nil)
	h.Broadcast(EventOrderStatusUpdated, nil)

	events := conn.events()
	if contains(events, EventOrderUpdated) || contains(events, EventOrderStatusUpdated) {
		t.Errorf("disconnected connection still received events: %v", events)
	}
}

func TestEmitToEmptyRoomIsNoOp(t *testing.T) {
	h := NewHub(zap.NewNop())
	// Must not panic or error.
	h.EmitToRoom(RoomRestaurant, "rest-none", EventNewOrder, nil)
}

func TestAuthenticateJoinsIdentityRoom(t *testing.T) {
	h := NewHub(zap.NewNop())
	conn := newRecorderConn("c1")
	h.Register(conn)

	if err := h.Authenticate(conn, RoomRestaurant, "rest-1"); err != nil {
		t.Fatalf("authenticate: %v", err)
	}

	h.EmitToRoom(RoomRestaurant, "rest-1", EventNewOrder, nil)
	if !contains(conn.events(), EventNewOrder) {
		t.Error("authenticated connection missed its identity room event")
	}

	// Re-authenticating moves the identity room membership.
	if err := h.Authenticate(conn, RoomRestaurant, "rest-2"); err != nil {
		t.Fatalf("re-authenticate: %v", err)
	}
	before := len(conn.events())
	h.EmitToRoom(RoomRestaurant, "rest-1", EventNewOrder, nil)
	if len(conn.events()) != before {
		t.Error("connection still in the previous identity room")
	}
	h.EmitToRoom(RoomRestaurant, "rest-2", EventNewOrder, nil)
	if len(conn.events()) != before+1 {
		t.Error("connection not in the new identity room")
	}
}

func TestAuthenticateRejectsBadInput(t *testing.T) {
	h := NewHub(zap.NewNop())
	conn := newRecorderConn("c1")
	h.Register(conn)

	if err := h.Authenticate(conn, RoomOrder, "ORD-1"); err == nil {
		t.Error("order is not a client type; expected an error")
	}
	if err := h.Authenticate(conn, "admin", "a1"); err == nil {
		t.Error("expected unknown client type to be rejected")
	}
	if err := h.Authenticate(conn, RoomCustomer, ""); err == nil {
		t.Error("expected missing id to be rejected")
	}
}

func TestLeaveOrderRoomOnly(t *testing.T) {
	h := NewHub(zap.NewNop())
	conn := newRecorderConn("c1")
	h.Register(conn)
	if err := h.Authenticate(conn, RoomCustomer, "cust-1"); err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if err := h.Join(conn, RoomOrder, "ORD-1"); err != nil {
		t.Fatalf("join: %v", err)
	}

	h.LeaveOrder(conn, "ORD-1")
	h.EmitToRoom(RoomOrder, "ORD-1", EventOrderUpdated, nil)
	if contains(conn.events(), EventOrderUpdated) {
		t.Error("connection received an event after leaving the order room")
	}

	// The identity room is untouched.
	h.EmitToRoom(RoomCustomer, "cust-1", EventOrderStatusChanged, nil)
	if !contains(conn.events(), EventOrderStatusChanged) {
		t.Error("leaving an order room should not affect the identity room")
	}
}

func TestBroadcastReachesEveryone(t *testing.T) {
	h := NewHub(zap.NewNop())
	conns := []*recorderConn{newRecorderConn("c1"), newRecorderConn("c2"), newRecorderConn("c3")}
	for _, c := range conns {
		h.Register(c)
	}
	if err := h.Authenticate(conns[0], RoomRestaurant, "rest-1"); err != nil {
		t.Fatalf("authenticate: %v", err)
	}

	h.Broadcast(EventOrderStatusUpdated, map[string]string{"status": "picked_up"})
	for _, c := range conns {
		if !contains(c.events(), EventOrderStatusUpdated) {
			t.Errorf("connection %s missed the broadcast", c.ID())
		}
	}
}

func TestSendFailureDropsSilently(t *testing.T) {
	h := NewHub(zap.NewNop())
	healthy := newRecorderConn("c1")
	broken := newRecorderConn("c2")
	broken.fail = true
	h.Register(healthy)
	h.Register(broken)
	if err := h.Join(healthy, RoomOrder, "ORD-1"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := h.Join(broken, RoomOrder, "ORD-1"); err != nil {
		t.Fatalf("join: %v", err)
	}

	// A failing member must not prevent delivery to the rest.
	h.EmitToRoom(RoomOrder, "ORD-1", EventOrderUpdated, nil)
	if !contains(healthy.events(), EventOrderUpdated) {
		t.Error("healthy connection missed the event")
	}
}

func TestStats(t *testing.T) {
	h := NewHub(zap.NewNop())
	restaurant := newRecorderConn("c1")
	customer := newRecorderConn("c2")
	anon := newRecorderConn("c3")
	h.Register(restaurant)
	h.Register(customer)
	h.Register(anon)
	if err := h.Authenticate(restaurant, RoomRestaurant, "rest-1"); err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if err := h.Authenticate(customer, RoomCustomer, "cust-1"); err != nil {
		t.Fatalf("authenticate: %v", err)
	}

	stats := h.Stats()
	if stats.Connections != 3 {
		t.Errorf("connections = %d, want 3", stats.Connections)
	}
	if stats.Authenticated != 2 {
		t.Errorf("authenticated = %d, want 2", stats.Authenticated)
	}
	if stats.ByType["restaurant"] != 1 || stats.ByType["customer"] != 1 {
		t.Errorf("unexpected type breakdown: %v", stats.ByType)
	}

	h.Disconnect(restaurant)
	stats = h.Stats()
	if stats.Connections != 2 || stats.Authenticated != 1 {
		t.Errorf("after disconnect: %+v", stats)
	}
}

func TestEnvelopeTimestampStamped(t *testing.T) {
	h := NewHub(zap.NewNop())
	conn := newRecorderConn("c1")
	h.Register(conn)
	if err := h.Join(conn, RoomOrder, "ORD-1"); err != nil {
		t.Fatalf("join: %v", err)
	}

	h.EmitToRoom(RoomOrder, "ORD-1", EventOrderUpdated, "payload")

	conn.mu.Lock()
	defer conn.mu.Unlock()
	for _, env := range conn.received {
		if env.Timestamp.IsZero() {
			t.Errorf("event %s missing timestamp", env.Event)
		}
	}
	if got := conn.received[len(conn.received)-1].Data; got != "payload" {
		t.Errorf("payload = %v", got)
	}
}
