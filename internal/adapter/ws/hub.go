package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/iho/beanbank/internal/domain"
	"github.com/iho/beanbank/internal/infrastructure/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10 // must be less than pongWait
	maxMessageSize = 4096
	sendBufferSize = 64
)

// Message types sent to clients.
const (
	MessageTypeChange     = "change"
	MessageTypeSubscribed = "subscribed"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Msg is a message sent to clients.
type Msg struct {
	Type        string              `json:"type"`
	Event       *domain.ChangeEvent `json:"event,omitempty"`
	Collections []domain.Collection `json:"collections,omitempty"`
}

// subscribeMsg filters the collections a client hears about:
// {"action":"subscribe","collections":["orders","market_history"]}.
// An empty filter receives every event.
type subscribeMsg struct {
	Action      string              `json:"action"`
	Collections []domain.Collection `json:"collections"`
}

// Hub fans change events out to WebSocket clients.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]bool

	logger  zerolog.Logger
	metrics *metrics.Metrics
}

type client struct {
	hub  *Hub
	ws   *websocket.Conn
	send chan []byte

	mu     sync.RWMutex
	filter map[domain.Collection]bool
}

// NewHub creates a Hub. m may be nil.
func NewHub(logger zerolog.Logger, m *metrics.Metrics) *Hub {
	return &Hub{
		clients: make(map[*client]bool),
		logger:  logger.With().Str("component", "ws_hub").Logger(),
		metrics: m,
	}
}

// Name implements eventpublisher.Sink.
func (h *Hub) Name() string { return "ws" }

// Publish sends event to every interested client. Slow clients miss the
// event instead of blocking the others.
func (h *Hub) Publish(_ context.Context, event domain.ChangeEvent) error {
	b, err := json.Marshal(Msg{Type: MessageTypeChange, Event: &event})
	if err != nil {
		return fmt.Errorf("ws: encode change event: %w", err)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !c.wants(event.Collections) {
			continue
		}
		select {
		case c.send <- b:
		default:
			h.logger.Warn().Int64("seq", event.Seq).Msg("dropping event for slow client")
			if h.metrics != nil {
				h.metrics.FeedDropped.WithLabelValues("ws_client").Inc()
			}
		}
	}
	return nil
}

// Forward publishes events from ch until it closes or ctx is cancelled.
// It bridges a Redis subscription into the hub.
func (h *Hub) Forward(ctx context.Context, ch <-chan domain.ChangeEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-ch:
			if !ok {
				h.logger.Warn().Msg("change subscription closed")
				return
			}
			_ = h.Publish(ctx, event)
		}
	}
}

// HandleWS is the HTTP handler for WebSocket connections.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &client{
		hub:    h,
		ws:     conn,
		send:   make(chan []byte, sendBufferSize),
		filter: make(map[domain.Collection]bool),
	}

	h.mu.Lock()
	h.clients[c] = true
	total := len(h.clients)
	h.mu.Unlock()
	if h.metrics != nil {
		h.metrics.WSConnections.Inc()
	}
	h.logger.Debug().Int("total_clients", total).Msg("client connected")

	go c.writePump()
	go c.readPump()
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.removeConn(c)
	}
}

func (h *Hub) removeConn(c *client) {
	h.mu.Lock()
	if !h.clients[c] {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	close(c.send)
	total := len(h.clients)
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.WSConnections.Dec()
	}
	h.logger.Debug().Int("total_clients", total).Msg("client disconnected")
}

func (c *client) wants(collections []domain.Collection) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.filter) == 0 {
		return true
	}
	for _, col := range collections {
		if c.filter[col] {
			return true
		}
	}
	return false
}

func (c *client) applySubscription(msg subscribeMsg) []domain.Collection {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch msg.Action {
	case "subscribe":
		for _, col := range msg.Collections {
			c.filter[col] = true
		}
	case "unsubscribe":
		for _, col := range msg.Collections {
			delete(c.filter, col)
		}
	}

	out := make([]domain.Collection, 0, len(c.filter))
	for _, col := range domain.AllCollections {
		if c.filter[col] {
			out = append(out, col)
		}
	}
	return out
}

func (c *client) readPump() {
	defer func() {
		c.hub.removeConn(c)
		c.ws.Close()
	}()

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn().Err(err).Msg("unexpected close")
			}
			return
		}

		var sub subscribeMsg
		if err := json.Unmarshal(raw, &sub); err != nil || sub.Action == "" {
			continue
		}
		active := c.applySubscription(sub)
		ack, err := json.Marshal(Msg{Type: MessageTypeSubscribed, Collections: active})
		if err != nil {
			continue
		}
		c.hub.mu.RLock()
		if c.hub.clients[c] {
			select {
			case c.send <- ack:
			default:
			}
		}
		c.hub.mu.RUnlock()
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
