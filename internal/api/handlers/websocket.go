package handlers

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/zyra-ai/zyra/internal/api/dto"
	"github.com/zyra-ai/zyra/internal/api/middleware"
	ws "github.com/zyra-ai/zyra/internal/api/websocket"
	"github.com/zyra-ai/zyra/internal/domain/models"
	"github.com/zyra-ai/zyra/internal/execution"
)

// WebSocketHandler streams the events of one background execution.
//
// In relay mode events reach the hub through the Redis subscriber, so any
// replica can serve the stream. Otherwise each connection subscribes to the
// local tracker directly.
type WebSocketHandler struct {
	hub            *ws.Hub
	tracker        *execution.Tracker
	tokens         middleware.TokenValidator
	relay          bool
	allowedOrigins []string
	upgrader       websocket.Upgrader
}

type WebSocketOptions struct {
	// Tokens enables ?token= authentication when set.
	Tokens         middleware.TokenValidator
	Relay          bool
	AllowedOrigins []string
}

func NewWebSocketHandler(hub *ws.Hub, tracker *execution.Tracker, opts WebSocketOptions) *WebSocketHandler {
	h := &WebSocketHandler{
		hub:            hub,
		tracker:        tracker,
		tokens:         opts.Tokens,
		relay:          opts.Relay,
		allowedOrigins: opts.AllowedOrigins,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	// If no origins configured, allow all (dev mode)
	if len(h.allowedOrigins) == 0 {
		return true
	}

	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	parsedOrigin, err := url.Parse(origin)
	if err != nil {
		log.Warn().Str("origin", origin).Msg("Invalid origin URL")
		return false
	}

	originHost := parsedOrigin.Host
	for _, allowed := range h.allowedOrigins {
		if allowed == "*" || allowed == origin || allowed == originHost {
			return true
		}
		// Wildcard subdomain match (e.g., "*.example.com")
		if strings.HasPrefix(allowed, "*.") {
			domain := allowed[1:]
			if strings.HasSuffix(originHost, domain) || originHost == domain[1:] {
				return true
			}
		}
	}

	log.Warn().Str("origin", origin).Strs("allowed", h.allowedOrigins).Msg("WebSocket origin not allowed")
	return false
}

func (h *WebSocketHandler) Stream(w http.ResponseWriter, r *http.Request) {
	if h.tokens != nil {
		token := r.URL.Query().Get("token")
		if token == "" {
			dto.Unauthorized(w, "missing token")
			return
		}
		if _, err := h.tokens.ValidateToken(token); err != nil {
			dto.Unauthorized(w, "invalid token")
			return
		}
	}

	executionID := chi.URLParam(r, "executionID")
	if _, err := h.tracker.Get(executionID); err != nil {
		writeError(w, r, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	client := ws.NewClient(h.hub, conn, executionID)
	// events that arrive before the snapshot is queued wait behind it
	client.Hold()
	h.hub.Register(client)

	unsubscribe := func() {}
	if !h.relay {
		unsubscribe = h.tracker.Subscribe(executionID, func(event execution.Event) {
			if data, err := json.Marshal(event); err == nil {
				client.Send(data)
			}
			if event.Terminal() {
				client.Close()
			}
		})
	}

	var first []byte
	snapshot, err := h.tracker.Get(executionID)
	if err == nil {
		first, _ = json.Marshal(execution.SnapshotEvent(snapshot))
	}
	client.Release(first)
	if err == nil && models.IsTerminalStatus(snapshot.Status) {
		client.Close()
	}

	go client.WritePump()
	go func() {
		client.ReadPump()
		unsubscribe()
	}()
}
