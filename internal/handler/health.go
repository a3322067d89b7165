package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// Health answers liveness checks from load balancers.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// ReadyHandler reports the state of the backing stores.  A nil store is
// reported as disabled.
type ReadyHandler struct {
	DB      Pinger
	Redis   *redis.Client
	Timeout time.Duration
}

const (
	stateUp       = "up"
	stateDown     = "down"
	stateDisabled = "disabled"
)

// Ready returns 503 when MySQL is configured and unreachable.  Redis only
// backs the login rate limiter, which fails open, so a Redis outage is
// reported without failing the check.
func (h *ReadyHandler) Ready(c echo.Context) error {
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
	defer cancel()

	mysqlState := stateDisabled
	if h.DB != nil {
		mysqlState = stateUp
		if err := h.DB.PingContext(ctx); err != nil {
			mysqlState = stateDown
		}
	}
	redisState := stateDisabled
	if h.Redis != nil {
		redisState = stateUp
		if err := h.Redis.Ping(ctx).Err(); err != nil {
			redisState = stateDown
		}
	}

	status, code := "ok", http.StatusOK
	switch {
	case mysqlState == stateDown:
		status, code = "unavailable", http.StatusServiceUnavailable
	case redisState == stateDown:
		status = "degraded"
	}
	return c.JSON(code, echo.Map{"status": status, "mysql": mysqlState, "redis": redisState})
}
