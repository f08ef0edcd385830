package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"

	"github.com/1vKSfvhNz/farm-backend/internal/registry"
	"github.com/1vKSfvhNz/farm-backend/internal/store"
)

// Health reports component status: database reachability, cache tier
// availability, and the live connection count.
func Health(pool *pgxpool.Pool, cache *store.Cache, reg *registry.Registry) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		health := struct {
			Status     string         `json:"status"`
			Components map[string]any `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]any),
		}

		if pool != nil {
			if err := pool.Ping(ctx); err != nil {
				health.Status = "unhealthy"
				health.Components["database"] = map[string]string{
					"status": "disconnected",
					"error":  err.Error(),
				}
			} else {
				health.Components["database"] = "connected"
			}
		}

		if cache != nil {
			if cache.Available() {
				health.Components["cache"] = "connected"
			} else {
				// Cache is best-effort; its loss degrades, never fails.
				if health.Status == "healthy" {
					health.Status = "degraded"
				}
				health.Components["cache"] = "disabled"
			}
		}

		health.Components["connections"] = map[string]any{
			"active": reg.Count(),
		}

		code := http.StatusOK
		if health.Status == "unhealthy" {
			code = http.StatusServiceUnavailable
		}
		return c.JSON(code, health)
	}
}
