// Package gateway is the boundary in front of the connection registry: the
// WebSocket handshake endpoint, the connected-deliverer roster, the
// broadcast endpoint, and health.
package gateway

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/1vKSfvhNz/farm-backend/internal/metrics"
	"github.com/1vKSfvhNz/farm-backend/internal/registry"
	"github.com/1vKSfvhNz/farm-backend/internal/router"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler serves the realtime endpoints.
type Handler struct {
	registry     *registry.Registry
	router       *router.Router
	verifier     Verifier
	users        UserLookup
	writeTimeout time.Duration
	logger       *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(reg *registry.Registry, rt *router.Router, verifier Verifier, users UserLookup, writeTimeout time.Duration, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		registry:     reg,
		router:       rt,
		verifier:     verifier,
		users:        users,
		writeTimeout: writeTimeout,
		logger:       logger,
	}
}

// Notifications is the WebSocket endpoint. The token must verify before the
// registry allocates anything; an invalid handshake closes the socket with
// a policy-violation reason and leaves no entry, no heartbeat, no
// persistence write behind.
func (h *Handler) Notifications(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	ch := newChannel(conn, h.writeTimeout)

	token := c.QueryParam("token")
	if token == "" {
		ch.Close(registry.CloseReason{Code: 1008, Text: "authentication token missing"})
		return nil
	}

	ident, err := h.verifier.Verify(token)
	if err != nil {
		h.logger.Warn("websocket authentication failed", "error", err)
		ch.Close(registry.ReasonAuthFailed)
		return nil
	}

	user, err := h.users.Lookup(c.Request().Context(), ident.ID)
	if err != nil {
		h.logger.Warn("websocket user lookup failed", "user_id", ident.ID, "error", err)
		ch.Close(registry.CloseReason{Code: 1008, Text: "user not found"})
		return nil
	}

	meta := registry.Metadata{
		"user_id":               user.ID,
		"role":                  user.Role,
		"username":              user.Username,
		"email":                 user.Email,
		"notifications_enabled": user.NotificationsEnabled,
		"status":                "online",
		"connected_at":          time.Now().UTC().Format(time.RFC3339),
		"muted_conversations":   []string{},
		"preferences":           map[string]any{},
	}

	if !h.registry.Connect(ch, user.ID, meta) {
		ch.Close(registry.ReasonInternal)
		return nil
	}

	// Snapshot the installed entry so cleanup can never tear down a newer
	// connection that superseded this one while the read loop was running.
	entry := h.registry.Get(user.ID)
	if entry == nil || entry.Channel != ch {
		return nil
	}
	defer h.registry.Evict(entry, registry.ReasonNormal, metrics.CauseExplicit)

	// Inbound frames are observed, not parsed; the read loop exists to
	// detect disconnection.
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Info("websocket disconnected", "user_id", user.ID)
			} else {
				h.logger.Warn("websocket read error", "user_id", user.ID, "error", err)
			}
			return nil
		}
		h.logger.Debug("received message", "user_id", user.ID, "size", len(data))
	}
}

// broadcastRequest is the body of the broadcast endpoint.
type broadcastRequest struct {
	Message    json.RawMessage `json:"message"`
	Role       string          `json:"role,omitempty"`
	UserIDs    []string        `json:"user_ids,omitempty"`
	ExcludeIDs []string        `json:"exclude_ids,omitempty"`
}

// Broadcast fans a message out to live connections selected by the request
// filters and reports per-target delivery results.
func (h *Handler) Broadcast(c echo.Context) error {
	var req broadcastRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if len(req.Message) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "message is required")
	}

	results := h.router.Broadcast(req.Message, router.Filter{
		Role:       req.Role,
		UserIDs:    req.UserIDs,
		ExcludeIDs: req.ExcludeIDs,
	})

	return c.JSON(http.StatusOK, map[string]any{
		"success":   true,
		"results":   results,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
