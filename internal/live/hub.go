package live

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog/log"

	"github.com/despachantemarcelino/hookd/internal/config"
	"github.com/despachantemarcelino/hookd/internal/events"
	"github.com/despachantemarcelino/hookd/internal/metrics"
	"github.com/despachantemarcelino/hookd/internal/webhooks"
)

// TokenParam carries the secret for browsers, which cannot set headers on a
// websocket handshake.
const TokenParam = "token"

// Hub tracks live clients and broadcasts deliveries to them.
type Hub struct {
	auth       *webhooks.Authenticator
	maxClients int
	bufferSize int
	origins    []string

	mu      sync.RWMutex
	clients map[string]*Client
	closed  bool
}

// NewHub creates a hub that admits clients presenting the webhook secret.
// origins are passed to the websocket handshake as accepted origin patterns.
func NewHub(cfg *config.LiveConfig, auth *webhooks.Authenticator, origins []string) *Hub {
	return &Hub{
		auth:       auth,
		maxClients: cfg.MaxClients,
		bufferSize: cfg.BufferSize,
		origins:    origins,
		clients:    make(map[string]*Client),
	}
}

// Observe broadcasts d to every connected client. Only the sanitized payload
// of a recognized event is sent; the raw body never reaches the feed.
func (h *Hub) Observe(_ context.Context, d *events.Delivery) error {
	normalized, err := events.PayloadJSON(d.Event)
	if err != nil {
		return fmt.Errorf("encoding live delivery: %w", err)
	}
	payload, err := json.Marshal(&DeliveryPayload{
		ID:         d.ID,
		Event:      d.Event.Name(),
		Known:      d.Event.Kind().Known(),
		Data:       normalized,
		RequestID:  d.RequestID,
		ReceivedAt: d.ReceivedAt,
	})
	if err != nil {
		return fmt.Errorf("encoding live delivery: %w", err)
	}
	data, err := json.Marshal(&Message{ID: d.ID, Type: MessageTypeDelivery, Payload: payload})
	if err != nil {
		return fmt.Errorf("encoding live delivery: %w", err)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		c.enqueue(data)
	}
	return nil
}

// ServeHTTP upgrades an authenticated request and runs the client until it
// disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	secret := webhooks.ExtractSecret(r)
	if secret == "" {
		secret = r.URL.Query().Get(TokenParam)
	}
	if !h.auth.Verify(secret) {
		http.Error(w, webhooks.ErrorUnauthorized, http.StatusUnauthorized)
		return
	}

	h.mu.RLock()
	full := h.maxClients > 0 && len(h.clients) >= h.maxClients
	closed := h.closed
	h.mu.RUnlock()
	if full || closed {
		http.Error(w, "Live feed unavailable", http.StatusServiceUnavailable)
		return
	}

	// The server's read and write timeouts would otherwise carry over to
	// the hijacked connection.
	rc := http.NewResponseController(w)
	_ = rc.SetReadDeadline(time.Time{})
	_ = rc.SetWriteDeadline(time.Time{})

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.origins,
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to accept live connection")
		return
	}

	client := newClient(conn, h.bufferSize)
	if !h.register(client) {
		client.Close(websocket.StatusTryAgainLater, "live feed full")
		return
	}
	defer h.unregister(client.ID)

	connected, _ := json.Marshal(&ConnectedPayload{ClientID: client.ID})
	_ = client.Send(&Message{Type: MessageTypeConnected, Payload: connected})

	client.Run()
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[string]*Client)
	h.mu.Unlock()

	metrics.SetLiveClients(0)
	for _, c := range clients {
		c.Close(websocket.StatusGoingAway, "server shutting down")
	}
}

func (h *Hub) register(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed || (h.maxClients > 0 && len(h.clients) >= h.maxClients) {
		return false
	}
	h.clients[c.ID] = c
	metrics.SetLiveClients(len(h.clients))
	log.Debug().Str("client_id", c.ID).Int("total_clients", len(h.clients)).Msg("Live client connected")
	return true
}

func (h *Hub) unregister(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[id]; !ok {
		return
	}
	delete(h.clients, id)
	metrics.SetLiveClients(len(h.clients))
	log.Debug().Str("client_id", id).Int("total_clients", len(h.clients)).Msg("Live client disconnected")
}
