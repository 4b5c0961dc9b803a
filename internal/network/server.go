package network

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/MRamiBalles/ResourceRush/server/internal/config"
	"github.com/MRamiBalles/ResourceRush/server/internal/platform/logger"
	"github.com/MRamiBalles/ResourceRush/server/internal/session"
)

const maxUserIDLength = 64

// Server is the /ws endpoint. The session is joined before the upgrade so
// a refused join is a plain HTTP error.
type Server struct {
	hub      *Hub
	engine   Engine
	logger   *logger.Logger
	tuning   config.Tuning
	upgrader websocket.Upgrader
}

func NewServer(hub *Hub, eng Engine, log *logger.Logger, tuning config.Tuning) *Server {
	return &Server{
		hub:    hub,
		engine: eng,
		logger: log,
		tuning: tuning,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // the display is served from another origin in development
			},
		},
	}
}

// ServeHTTP handles websocket requests from the peer. The user identity
// comes from the "user" query parameter.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user")
	if userID == "" || len(userID) > maxUserIDLength {
		http.Error(w, "missing or invalid user", http.StatusBadRequest)
		return
	}

	client := NewClient(s.hub, s.engine, userID, s.tuning.ClientSendBuffer,
		rate.Limit(s.tuning.MaxActionsPerSecond), s.tuning.ActionBurst)
	if err := s.hub.Register(client); err != nil {
		s.refuse(w, userID, err)
		return
	}

	if err := s.engine.Join(r.Context(), userID); err != nil {
		s.hub.remove(client)
		s.refuse(w, userID, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade websocket connection for %s: %v", userID, err)
		s.hub.remove(client)
		ctx, cancel := context.WithTimeout(context.Background(), leaveTimeout)
		defer cancel()
		_ = s.engine.Leave(ctx, userID)
		return
	}
	client.Attach(conn)
	s.logger.Info("WebSocket client %s connected for %s", client.ID(), userID)

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.WritePump()
	go client.ReadPump()
}

func (s *Server) refuse(w http.ResponseWriter, userID string, err error) {
	switch {
	case errors.Is(err, ErrUserConnected), errors.Is(err, session.ErrSessionExists):
		s.logger.Warn("Connection for %s refused: %v", userID, err)
		http.Error(w, "session already active", http.StatusConflict)
	case errors.Is(err, ErrHubFull):
		w.Header().Set("Retry-After", "5")
		http.Error(w, "server full", http.StatusServiceUnavailable)
	default:
		s.logger.Error("Join for %s failed: %v", userID, err)
		w.Header().Set("Retry-After", "2")
		http.Error(w, "session unavailable, retry later", http.StatusServiceUnavailable)
	}
}
