package hub

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Event names pushed to connected clients.
const (
	EventConnected          = "connected"
	EventRoomJoined         = "room_joined"
	EventNewOrder           = "new_order"
	EventOrderStatusChanged = "order_status_changed"
	EventOrderStatusUpdated = "order_status_updated"
	EventOrderUpdated       = "order_updated"
	EventRiderLocation      = "rider_location"
)

// RoomKind partitions rooms by audience.
type RoomKind string

const (
	RoomRestaurant RoomKind = "restaurant"
	RoomCustomer   RoomKind = "customer"
	RoomRider      RoomKind = "rider"
	RoomOrder      RoomKind = "order"
)

// Envelope is the unit of delivery to a client. Timestamp is stamped when
// the event is emitted, not when it is written to the wire.
type Envelope struct {
	Event     string    `json:"event"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Conn is one attached client. Send must not block; transports buffer writes
// and drop the connection when the buffer overflows.
type Conn interface {
	ID() string
	Send(Envelope) error
}

// Stats is a point-in-time snapshot of hub occupancy.
type Stats struct {
	Connections   int            `json:"connections"`
	Authenticated int            `json:"authenticated"`
	ByType        map[string]int `json:"byType"`
	Rooms         int            `json:"rooms"`
}

type session struct {
	conn       Conn
	clientType RoomKind
	clientID   string
	rooms      map[string]struct{}
}

// Hub fans order events out to interested connections grouped into rooms.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]*session
	rooms    map[string]map[string]*session
	log      *zap.Logger
}

// Module provides the hub to the Fx graph.
var Module = fx.Provide(NewHub)

// NewHub constructs an empty hub.
func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		sessions: make(map[string]*session),
		rooms:    make(map[string]map[string]*session),
		log:      log,
	}
}

func roomKey(kind RoomKind, id string) string {
	return fmt.Sprintf("%s_%s", kind, id)
}

// Register attaches a connection with no identity yet.
func (h *Hub) Register(conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessionLocked(conn)
}

func (h *Hub) sessionLocked(conn Conn) *session {
	s, ok := h.sessions[conn.ID()]
	if !ok {
		s = &session{conn: conn, rooms: make(map[string]struct{})}
		h.sessions[conn.ID()] = s
	}
	return s
}

// Authenticate records the connection's identity and joins it to its identity
// room. Re-authenticating moves the connection to the new identity room; it
// does not touch order subscriptions.
func (h *Hub) Authenticate(conn Conn, clientType RoomKind, clientID string) error {
	switch clientType {
	case RoomRestaurant, RoomCustomer, RoomRider:
	default:
		return fmt.Errorf("unknown client type %q", clientType)
	}
	if clientID == "" {
		return fmt.Errorf("missing client id")
	}

	h.mu.Lock()
	s := h.sessionLocked(conn)
	if s.clientType != "" {
		h.leaveLocked(s, roomKey(s.clientType, s.clientID))
	}
	s.clientType = clientType
	s.clientID = clientID
	key := roomKey(clientType, clientID)
	h.joinLocked(s, key)
	h.mu.Unlock()

	h.ack(s.conn, key)
	return nil
}

// Join subscribes the connection to a room and acks with room_joined.
func (h *Hub) Join(conn Conn, kind RoomKind, id string) error {
	switch kind {
	case RoomRestaurant, RoomCustomer, RoomRider, RoomOrder:
	default:
		return fmt.Errorf("unknown room kind %q", kind)
	}
	if id == "" {
		return fmt.Errorf("missing room id")
	}

	key := roomKey(kind, id)
	h.mu.Lock()
	s := h.sessionLocked(conn)
	h.joinLocked(s, key)
	h.mu.Unlock()

	h.ack(s.conn, key)
	return nil
}

// LeaveOrder unsubscribes the connection from one order room.
func (h *Hub) LeaveOrder(conn Conn, orderID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.sessions[conn.ID()]
	if !ok {
		return
	}
	h.leaveLocked(s, roomKey(RoomOrder, orderID))
}

// Disconnect removes the connection from every room and forgets it.
func (h *Hub) Disconnect(conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.sessions[conn.ID()]
	if !ok {
		return
	}
	for key := range s.rooms {
		h.leaveLocked(s, key)
	}
	delete(h.sessions, conn.ID())
}

// EmitToRoom delivers an event to every member of the room. An empty or
// unknown room is a silent no-op.
func (h *Hub) EmitToRoom(kind RoomKind, id, event string, data any) {
	key := roomKey(kind, id)
	h.mu.RLock()
	members := h.rooms[key]
	conns := make([]Conn, 0, len(members))
	for _, s := range members {
		conns = append(conns, s.conn)
	}
	h.mu.RUnlock()

	h.deliver(conns, Envelope{Event: event, Data: data, Timestamp: time.Now().UTC()})
}

// Broadcast delivers an event to every attached connection.
func (h *Hub) Broadcast(event string, data any) {
	h.mu.RLock()
	conns := make([]Conn, 0, len(h.sessions))
	for _, s := range h.sessions {
		conns = append(conns, s.conn)
	}
	h.mu.RUnlock()

	h.deliver(conns, Envelope{Event: event, Data: data, Timestamp: time.Now().UTC()})
}

// Stats reports current occupancy.
func (h *Hub) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	stats := Stats{
		Connections: len(h.sessions),
		ByType:      make(map[string]int),
		Rooms:       len(h.rooms),
	}
	for _, s := range h.sessions {
		if s.clientType != "" {
			stats.Authenticated++
			stats.ByType[string(s.clientType)]++
		}
	}
	return stats
}

func (h *Hub) joinLocked(s *session, key string) {
	if _, ok := s.rooms[key]; ok {
		return
	}
	members, ok := h.rooms[key]
	if !ok {
		members = make(map[string]*session)
		h.rooms[key] = members
	}
	members[s.conn.ID()] = s
	s.rooms[key] = struct{}{}
}

func (h *Hub) leaveLocked(s *session, key string) {
	delete(s.rooms, key)
	if members, ok := h.rooms[key]; ok {
		delete(members, s.conn.ID())
		if len(members) == 0 {
			delete(h.rooms, key)
		}
	}
}

func (h *Hub) ack(conn Conn, room string) {
	h.deliver([]Conn{conn}, Envelope{
		Event:     EventRoomJoined,
		Data:      map[string]string{"room": room},
		Timestamp: time.Now().UTC(),
	})
}

func (h *Hub) deliver(conns []Conn, env Envelope) {
	for _, conn := range conns {
		if err := conn.Send(env); err != nil {
			h.log.Debug("dropping event for connection",
				zap.String("conn", conn.ID()),
				zap.String("event", env.Event),
				zap.Error(err))
		}
	}
}
