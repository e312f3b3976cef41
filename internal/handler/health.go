package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// Check reports whether one dependency answers.
type Check func(ctx context.Context) error

// HealthHandler serves liveness and readiness.  Readiness runs every
// registered check; the booking and slot stores are the usual ones.
type HealthHandler struct {
	Checks  map[string]Check
	Timeout time.Duration
	Log     logrus.FieldLogger
}

// NewHealthHandler returns a handler with a 2s check timeout.
func NewHealthHandler(log logrus.FieldLogger, checks map[string]Check) *HealthHandler {
	return &HealthHandler{Checks: checks, Timeout: 2 * time.Second, Log: log}
}

// Live handles GET /healthz.  It only says the process is serving.
func (h *HealthHandler) Live(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// Ready handles GET /readyz: 200 when every check passes, 503 otherwise,
// with the outcome of each check by name.
func (h *HealthHandler) Ready(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.Timeout)
	defer cancel()

	status, code := "ok", http.StatusOK
	results := make(map[string]string, len(h.Checks))
	for name, check := range h.Checks {
		if err := check(ctx); err != nil {
			h.Log.WithError(err).WithField("dependency", name).Warn("readiness check failed")
			results[name] = err.Error()
			status, code = "degraded", http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}
	return c.JSON(code, map[string]any{"status": status, "checks": results})
}
