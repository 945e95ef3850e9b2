package ws

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/myezzsolution/MyEzz-Restaurants/internal/config"
	"github.com/myezzsolution/MyEzz-Restaurants/internal/hub"
	"github.com/myezzsolution/MyEzz-Restaurants/internal/presentation/http/response"
)

// Handler upgrades websocket requests and attaches them to the hub.
type Handler struct {
	hub      *hub.Hub
	cfg      config.Hub
	sync     config.Sync
	log      *zap.Logger
	upgrader websocket.Upgrader
}

// NewHandler constructs the websocket handler.
func NewHandler(h *hub.Hub, cfg config.Config, log *zap.Logger) *Handler {
	return &Handler{
		hub:  h,
		cfg:  cfg.Hub,
		sync: cfg.Sync,
		log:  log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(cfg.Hub.AllowedOrigins),
		},
	}
}

// Register wires the websocket routes onto the Echo server.
func Register(e *echo.Echo, h *Handler) {
	e.GET("/ws", h.serve)
	e.GET("/ws/stats", h.stats)
}

func (h *Handler) serve(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade already wrote the failure response.
		h.log.Debug("websocket upgrade failed", zap.Error(err))
		return nil
	}

	client := newClient(conn, h.hub, h.cfg, h.log)
	h.hub.Register(client)

	go client.writePump()
	go client.readPump()

	// Advertise the pull cadence so dashboard reconcilers can configure
	// themselves from the hello.
	_ = client.Send(hub.Envelope{
		Event:     hub.EventConnected,
		Data:      map[string]any{"pollIntervalSeconds": int(h.sync.PollInterval.Seconds())},
		Timestamp: time.Now().UTC(),
	})
	return nil
}

func (h *Handler) stats(c echo.Context) error {
	return response.New(c).WithData(h.hub.Stats()).Build()
}

func originChecker(allowed []string) func(*http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		if origin == "*" {
			return func(*http.Request) bool { return true }
		}
		set[origin] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}
