package network

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/MRamiBalles/ResourceRush/server/internal/config"
	"github.com/MRamiBalles/ResourceRush/server/internal/events"
	"github.com/MRamiBalles/ResourceRush/server/internal/platform/logger"
	"github.com/MRamiBalles/ResourceRush/server/internal/platform/metrics"
)

var (
	// ErrUserConnected means the user already has a connection on this hub.
	ErrUserConnected = errors.New("network: user already connected")
	// ErrHubFull means the hub reached its client limit.
	ErrHubFull = errors.New("network: too many clients")
)

// Hub routes engine notifications to the connection of each user. It
// implements events.Notifier; Notify never blocks on a slow peer.
type Hub struct {
	clients    map[string]*Client
	unregister chan *Client
	mu         sync.RWMutex
	maxClients int
	logger     *logger.Logger
}

// NewHub initializes a new WebSocket Hub.
func NewHub(log *logger.Logger, tuning config.Tuning) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		unregister: make(chan *Client, tuning.HubUnregisterBuffer),
		maxClients: tuning.MaxClients,
		logger:     log,
	}
}

// Run processes disconnections until ctx ends.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("WebSocket Hub shutting down.")
			return
		case client := <-h.unregister:
			if h.remove(client) {
				h.logger.Info("WebSocket client %s of %s disconnected", client.id, client.userID)
			}
		}
	}
}

// Register reserves the user's slot before the session is joined, so that
// the notifications of the join are buffered for the connection.
func (h *Hub) Register(c *Client) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.clients[c.userID]; exists {
		return ErrUserConnected
	}
	if h.maxClients > 0 && len(h.clients) >= h.maxClients {
		return ErrHubFull
	}
	h.clients[c.userID] = c
	metrics.Get().RecordWSConnection(1)
	return nil
}

// Unregister queues c for removal. When the queue is full the client is
// removed inline.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	default:
		h.remove(c)
	}
}

// remove drops c if it still owns its user's slot and closes its queue.
func (h *Hub) remove(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cur, ok := h.clients[c.userID]; !ok || cur != c {
		return false
	}
	delete(h.clients, c.userID)
	close(c.send)
	metrics.Get().RecordWSConnection(-1)
	return true
}

// Notify serializes n and queues it for the user's connection. Users
// without a connection are skipped; a full queue drops the message.
func (h *Hub) Notify(userID string, n events.Notification) {
	payload, err := json.Marshal(n)
	if err != nil {
		h.logger.Error("Failed to serialize %s for %s: %v", n.Kind, userID, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	client, ok := h.clients[userID]
	if !ok {
		return
	}
	select {
	case client.send <- payload:
	default:
		metrics.Get().RecordWSError()
		h.logger.Warn("Send queue of %s full, dropped %s", userID, n.Kind)
	}
}

// Connected reports whether the user holds a slot on the hub.
func (h *Hub) Connected(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[userID]
	return ok
}

// Count is the number of connected users.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
