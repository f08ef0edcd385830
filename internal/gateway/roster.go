package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// deliverRole is the metadata role of delivery drivers.
const deliverRole = "deliver"

// Deliverers returns the connected delivery drivers with their connection
// metadata, enriched with contact details from the user directory.
func (h *Handler) Deliverers(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	result := make(map[string]any)
	for _, userID := range h.registry.ByRole(deliverRole) {
		conn := h.registry.Get(userID)
		if conn == nil {
			continue
		}

		status, _ := conn.Metadata["status"].(string)
		if status == "" {
			status = "online"
		}

		entry := map[string]any{
			"user_id":               userID,
			"username":              conn.Metadata["username"],
			"role":                  conn.Metadata.Role(),
			"notifications_enabled": conn.Metadata["notifications_enabled"],
			"status":                status,
			"last_seen":             conn.LastSeen().UTC().Format(time.RFC3339),
			"connected_since":       conn.ConnectedAt.Format(time.RFC3339),
		}

		if user, err := h.users.Lookup(ctx, userID); err == nil {
			entry["email"] = user.Email
			entry["phone"] = user.Phone
		} else {
			h.logger.Warn("deliverer lookup failed", "user_id", userID, "error", err)
		}

		result[userID] = entry
	}

	return c.JSON(http.StatusOK, map[string]any{
		"success":   true,
		"data":      result,
		"count":     len(result),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
