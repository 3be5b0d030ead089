package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/litscout/backend/internal/health"
)

type HealthHandler struct {
	checker *health.HealthChecker
	timeout time.Duration
}

func NewHealthHandler(checker *health.HealthChecker, timeout time.Duration) *HealthHandler {
	return &HealthHandler{checker: checker, timeout: timeout}
}

// HandleHealth reports every dependency; 503 when any is unhealthy.
func (h *HealthHandler) HandleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	report := h.checker.CheckAll(ctx)

	status := http.StatusOK
	if report.Status != health.StatusHealthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, report)
}
