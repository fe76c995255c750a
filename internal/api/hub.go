package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"presale-ledger/internal/domain"
	"presale-ledger/internal/observability"
)

// HubConfig configures websocket fan-out.
type HubConfig struct {
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is how long a client may stay silent, pongs included.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
	// SendBuffer is the number of events queued per client before it is dropped.
	SendBuffer int
}

// DefaultHubConfig returns default hub configuration.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		PingInterval: 30 * time.Second,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 10 * time.Second,
		SendBuffer:   64,
	}
}

// Hub broadcasts committed events to websocket clients.
// It implements host.Publisher and never blocks the publisher.
type Hub struct {
	config   HubConfig
	upgrader websocket.Upgrader
	logger   zerolog.Logger

	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *wsClient) close() {
	c.once.Do(func() { close(c.send) })
}

// NewHub creates a Hub.
func NewHub(config HubConfig, logger zerolog.Logger) *Hub {
	return &Hub{
		config: config,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger:  logger.With().Str("component", "ws_hub").Logger(),
		clients: make(map[*wsClient]struct{}),
	}
}

// Publish queues e for every connected client. Clients whose queue is
// full are disconnected.
func (h *Hub) Publish(e *domain.SaleEvent) {
	payload, err := json.Marshal(viewOf(e))
	if err != nil {
		h.logger.Error().Err(err).Str("event_id", e.EventID).Msg("Failed to encode event")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			h.logger.Warn().Str("remote_addr", c.conn.RemoteAddr().String()).Msg("Dropping slow websocket client")
			delete(h.clients, c)
			c.close()
		}
	}
	observability.SetWSClients(len(h.clients))
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the connection and streams events until it closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}

	c := &wsClient{conn: conn, send: make(chan []byte, h.config.SendBuffer)}
	h.register(c)

	go h.writeLoop(c)
	h.readLoop(c)
}

func (h *Hub) register(c *wsClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()

	observability.SetWSClients(n)
	h.logger.Debug().Str("remote_addr", c.conn.RemoteAddr().String()).Msg("Websocket client connected")
}

func (h *Hub) unregister(c *wsClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.close()
	}
	n := len(h.clients)
	h.mu.Unlock()

	observability.SetWSClients(n)
}

// readLoop discards client frames and detects disconnects.
func (h *Hub) readLoop(c *wsClient) {
	defer h.unregister(c)

	c.conn.SetReadDeadline(time.Now().Add(h.config.ReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(h.config.ReadTimeout))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug().Err(err).Msg("Websocket client closed unexpectedly")
			}
			return
		}
	}
}

// writeLoop sends queued events and periodic pings. It owns all writes.
func (h *Hub) writeLoop(c *wsClient) {
	ticker := time.NewTicker(h.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		delete(h.clients, c)
		c.close()
	}
	observability.SetWSClients(0)
}
