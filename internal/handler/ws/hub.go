package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"TrendScanner/internal/domain/models"
	drepo "TrendScanner/internal/domain/repository"
	"TrendScanner/pkg/logger"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Message is the envelope pushed to subscribers.
type Message struct {
	Type    string             `json:"type"`
	Payload *models.ScanResult `json:"payload"`
}

const (
	TypeSnapshot = "snapshot"
	TypeScan     = "scan"
)

// LatestFunc returns the result sent to a client right after it connects.
type LatestFunc func(ctx context.Context) (*models.ScanResult, error)

type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Hub broadcasts completed scan cycles to websocket subscribers. It is a
// result sink, so the delivery pipeline feeds it like any other output.
type Hub struct {
	log     *logger.Logger
	latest  LatestFunc
	path    string
	mu      sync.RWMutex
	clients map[*websocket.Conn]*client
}

var _ drepo.ResultSink = (*Hub)(nil)

func NewHub(log *logger.Logger, path string, latest LatestFunc) *Hub {
	if log == nil {
		log = logger.NewNop()
	}
	if path == "" {
		path = "/ws/scan"
	}
	return &Hub{
		log:     log,
		latest:  latest,
		path:    path,
		clients: make(map[*websocket.Conn]*client),
	}
}

func (h *Hub) Name() string { return "websocket" }

func (h *Hub) RegisterRoutes(e *echo.Echo) {
	e.GET(h.path, h.Handle)
}

// Clients returns the number of connected subscribers.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Handle upgrades the connection and keeps it registered until the peer
// goes away. Incoming messages are discarded.
func (h *Hub) Handle(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", logger.Error(err))
		return nil
	}
	cl := &client{conn: conn}

	h.mu.Lock()
	h.clients[conn] = cl
	n := len(h.clients)
	h.mu.Unlock()
	h.log.Debug("websocket client connected", logger.String("remote", c.RealIP()), logger.Int("clients", n))

	if h.latest != nil {
		if res, err := h.latest(c.Request().Context()); err == nil && res != nil {
			if data, err := json.Marshal(Message{Type: TypeSnapshot, Payload: res}); err == nil {
				if err := cl.write(data); err != nil {
					h.remove(conn)
					return nil
				}
			}
		}
	}

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.remove(conn)
	return nil
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
	_ = conn.Close()
}

// Deliver pushes res to every subscriber. Clients that fail the write are
// dropped; delivery itself never fails because of a slow peer.
func (h *Hub) Deliver(_ context.Context, res *models.ScanResult) error {
	data, err := json.Marshal(Message{Type: TypeScan, Payload: res})
	if err != nil {
		return err
	}

	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for _, cl := range h.clients {
		clients = append(clients, cl)
	}
	h.mu.RUnlock()

	for _, cl := range clients {
		if err := cl.write(data); err != nil {
			h.log.Warn("websocket push failed, dropping client", logger.Error(err))
			h.remove(cl.conn)
		}
	}
	return nil
}

// Close disconnects every subscriber.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, cl := range h.clients {
		cl.mu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutdown"),
			time.Now().Add(time.Second))
		cl.mu.Unlock()
		_ = conn.Close()
		delete(h.clients, conn)
	}
	return nil
}
