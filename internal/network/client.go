package network

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/MRamiBalles/ResourceRush/server/internal/engine"
	"github.com/MRamiBalles/ResourceRush/server/internal/platform/metrics"
	"github.com/MRamiBalles/ResourceRush/server/internal/session"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from peer.
	maxMessageSize = 512
	// Time allowed for the final save after the peer went away.
	leaveTimeout = 15 * time.Second
)

// Inbound action types.
const (
	ActionManual     = "MANUAL_ACTION"
	ActionPurchase   = "PURCHASE"
	ActionPrestige   = "PRESTIGE"
	ActionClaimDaily = "CLAIM_DAILY"
	ActionSync       = "SYNC"
)

// Engine is the part of the economy engine a connection drives.
type Engine interface {
	Join(ctx context.Context, userID string) error
	Leave(ctx context.Context, userID string) error
	ManualAction(userID string) error
	Purchase(userID string, generatorID int, amount engine.Amount) error
	Prestige(userID string) error
	ClaimDaily(userID string) error
	Resync(userID string) error
}

// PlayerAction represents an incoming command from the frontend.
type PlayerAction struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// PurchasePayload is the payload of a PURCHASE action. Amount is a positive
// integer or the string "max"; it defaults to 1.
type PurchasePayload struct {
	GeneratorID int             `json:"generator_id"`
	Amount      json.RawMessage `json:"amount,omitempty"`
}

// ParseAmount decodes the amount field of a purchase.
func (p PurchasePayload) ParseAmount() (engine.Amount, error) {
	raw := bytes.TrimSpace(p.Amount)
	if len(raw) == 0 || string(raw) == "null" {
		return engine.Units(1), nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "max" {
			return engine.MaxAffordable, nil
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return engine.Amount{}, fmt.Errorf("amount %q is neither a count nor \"max\"", s)
		}
		return engine.Units(n), nil
	}
	var n int
	if err := json.Unmarshal(raw, &n); err != nil {
		return engine.Amount{}, fmt.Errorf("amount: %w", err)
	}
	return engine.Units(n), nil
}

// Client is one WebSocket connection bound to one user.
type Client struct {
	id      string
	userID  string
	hub     *Hub
	engine  Engine
	conn    *websocket.Conn
	send    chan []byte
	limiter *rate.Limiter
}

// NewClient creates a client for userID. The connection is attached once
// the upgrade succeeds; until then notifications wait in the send queue.
func NewClient(hub *Hub, eng Engine, userID string, sendBuffer int, limit rate.Limit, burst int) *Client {
	return &Client{
		id:      uuid.NewString(),
		userID:  userID,
		hub:     hub,
		engine:  eng,
		send:    make(chan []byte, sendBuffer),
		limiter: rate.NewLimiter(limit, burst),
	}
}

func (c *Client) ID() string     { return c.id }
func (c *Client) UserID() string { return c.userID }

// Attach binds the upgraded connection.
func (c *Client) Attach(conn *websocket.Conn) {
	c.conn = conn
}

// leave ends the session after a disconnect. A session already drained
// by someone else, usually server shutdown, is not an error here.
func (c *Client) leave() {
	ctx, cancel := context.WithTimeout(context.Background(), leaveTimeout)
	defer cancel()
	err := c.engine.Leave(ctx, c.userID)
	if err != nil && !errors.Is(err, session.ErrNoSession) {
		c.hub.logger.Error("Leave for %s after disconnect: %v", c.userID, err)
	}
}

// ReadPump pumps actions from the websocket connection to the engine. When
// the peer goes away it releases the hub slot and leaves the session.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
		c.leave()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				metrics.Get().RecordWSError()
				c.hub.logger.Warn("WebSocket read error for %s: %v", c.userID, err)
			}
			break
		}
		metrics.Get().RecordWSMessage(true)

		var action PlayerAction
		if err := json.Unmarshal(message, &action); err != nil {
			c.hub.logger.Warn("Failed to parse PlayerAction from %s: %v", c.userID, err)
			continue
		}
		c.handlePlayerAction(action)
	}
}

func (c *Client) handlePlayerAction(action PlayerAction) {
	// 1. Rate limiting
	if !c.limiter.Allow() {
		metrics.Get().RecordAction(false)
		return
	}

	// 2. Route
	var err error
	switch action.Type {
	case ActionManual:
		err = c.engine.ManualAction(c.userID)
	case ActionPurchase:
		err = c.handlePurchase(action.Payload)
	case ActionPrestige:
		err = c.engine.Prestige(c.userID)
	case ActionClaimDaily:
		err = c.engine.ClaimDaily(c.userID)
	case ActionSync:
		err = c.engine.Resync(c.userID)
	default:
		c.hub.logger.Warn("Unknown PlayerAction type %q from %s", action.Type, c.userID)
		return
	}

	// Rejections are stale UI state; the next snapshot shows the truth.
	if err != nil && !errors.Is(err, engine.ErrRejected) {
		c.hub.logger.Warn("%s for %s failed: %v", action.Type, c.userID, err)
	}
}

func (c *Client) handlePurchase(raw json.RawMessage) error {
	var p PurchasePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return fmt.Errorf("%w: purchase payload: %v", engine.ErrRejected, err)
	}
	amount, err := p.ParseAmount()
	if err != nil {
		return fmt.Errorf("%w: %v", engine.ErrRejected, err)
	}
	return c.engine.Purchase(c.userID, p.GeneratorID, amount)
}

// WritePump pumps notifications from the hub to the websocket connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)
			metrics.Get().RecordWSMessage(false)

			// Add queued messages to the current websocket message.
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
				metrics.Get().RecordWSMessage(false)
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
