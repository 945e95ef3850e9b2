package ws

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/myezzsolution/MyEzz-Restaurants/internal/config"
	"github.com/myezzsolution/MyEzz-Restaurants/internal/hub"
)

const maxMessageSize = 4096

var (
	errConnClosed     = errors.New("connection closed")
	errSendBufferFull = errors.New("send buffer full")
)

// client binds one websocket connection to the hub. Reads and writes each
// run on their own goroutine; the buffered send channel decouples emitters
// from the socket.
type client struct {
	id   string
	conn *websocket.Conn
	hub  *hub.Hub
	log  *zap.Logger

	send chan hub.Envelope
	done chan struct{}
	once sync.Once

	writeWait  time.Duration
	pongWait   time.Duration
	pingPeriod time.Duration
}

func newClient(conn *websocket.Conn, h *hub.Hub, cfg config.Hub, log *zap.Logger) *client {
	return &client{
		id:         uuid.NewString(),
		conn:       conn,
		hub:        h,
		log:        log,
		send:       make(chan hub.Envelope, cfg.SendBuffer),
		done:       make(chan struct{}),
		writeWait:  cfg.WriteTimeout,
		pongWait:   cfg.PingInterval * 2,
		pingPeriod: cfg.PingInterval,
	}
}

func (c *client) ID() string { return c.id }

// Send queues an envelope without blocking. A full buffer means the reader
// on the other end stopped keeping up, so the connection is shut down.
func (c *client) Send(env hub.Envelope) error {
	select {
	case <-c.done:
		return errConnClosed
	default:
	}
	select {
	case c.send <- env:
		return nil
	default:
		c.shutdown()
		return errSendBufferFull
	}
}

func (c *client) shutdown() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// inbound is the envelope clients send to the server.
type inbound struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func (c *client) readPump() {
	defer func() {
		c.hub.Disconnect(c)
		c.shutdown()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Debug("websocket read failed", zap.String("conn", c.id), zap.Error(err))
			}
			return
		}
		c.handle(raw)
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(c.pingPeriod)
	defer func() {
		ticker.Stop()
		c.shutdown()
	}()

	for {
		select {
		case <-c.done:
			return
		case env := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
			if err := c.conn.WriteJSON(env); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *client) handle(raw []byte) {
	var msg inbound
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.log.Debug("malformed websocket message", zap.String("conn", c.id), zap.Error(err))
		return
	}

	switch msg.Event {
	case "authenticate":
		var p struct {
			Type string `json:"type"`
			ID   string `json:"id"`
		}
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			c.log.Debug("malformed authenticate payload", zap.String("conn", c.id), zap.Error(err))
			return
		}
		if err := c.hub.Authenticate(c, hub.RoomKind(p.Type), p.ID); err != nil {
			c.log.Debug("authenticate rejected", zap.String("conn", c.id), zap.Error(err))
		}
	case "restaurant:join":
		c.join(msg.Data, hub.RoomRestaurant)
	case "customer:join":
		c.join(msg.Data, hub.RoomCustomer)
	case "rider:join":
		c.join(msg.Data, hub.RoomRider)
	case "order:subscribe":
		if orderID := orderIDOf(msg.Data); orderID != "" {
			if err := c.hub.Join(c, hub.RoomOrder, orderID); err != nil {
				c.log.Debug("order subscribe rejected", zap.String("conn", c.id), zap.Error(err))
			}
		}
	case "order:unsubscribe":
		if orderID := orderIDOf(msg.Data); orderID != "" {
			c.hub.LeaveOrder(c, orderID)
		}
	case "rider:location":
		var p struct {
			OrderID string  `json:"orderId"`
			Lat     float64 `json:"lat"`
			Lng     float64 `json:"lng"`
		}
		if err := json.Unmarshal(msg.Data, &p); err != nil || p.OrderID == "" {
			return
		}
		c.hub.EmitToRoom(hub.RoomOrder, p.OrderID, hub.EventRiderLocation, p)
	default:
		c.log.Debug("unknown websocket event", zap.String("conn", c.id), zap.String("event", msg.Event))
	}
}

func (c *client) join(data json.RawMessage, kind hub.RoomKind) {
	var p struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.ID == "" {
		return
	}
	if err := c.hub.Join(c, kind, p.ID); err != nil {
		c.log.Debug("room join rejected", zap.String("conn", c.id), zap.Error(err))
	}
}

func orderIDOf(data json.RawMessage) string {
	var p struct {
		OrderID string `json:"orderId"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return ""
	}
	return p.OrderID
}
