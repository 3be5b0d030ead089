package health

import (
	"context"
	"time"

	"github.com/litscout/backend/internal/database"
	"github.com/sirupsen/logrus"
)

const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// CheckFunc reports whether one dependency is reachable.
type CheckFunc func(ctx context.Context) error

// Pinger is anything with a reachability probe, such as the E-utilities
// client.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthChecker runs the registered dependency checks in order.
type HealthChecker struct {
	names   []string
	checks  map[string]CheckFunc
	logger  *logrus.Logger
	started time.Time
}

// NewHealthChecker registers the upstream check plus Postgres and Redis
// checks for whichever connections dbManager holds.
func NewHealthChecker(upstream Pinger, dbManager *database.Manager, logger *logrus.Logger) *HealthChecker {
	h := &HealthChecker{
		checks:  make(map[string]CheckFunc),
		logger:  logger,
		started: time.Now(),
	}

	if upstream != nil {
		h.Register("eutils", upstream.Ping)
	}
	if dbManager != nil && dbManager.DB != nil {
		h.Register("postgresql", dbManager.PingDatabase)
	}
	if dbManager != nil && dbManager.Redis != nil {
		h.Register("redis", dbManager.PingRedis)
	}

	return h
}

func (h *HealthChecker) Register(name string, check CheckFunc) {
	if _, exists := h.checks[name]; !exists {
		h.names = append(h.names, name)
	}
	h.checks[name] = check
}

// ServiceHealth represents the health status of a service
type ServiceHealth struct {
	Name         string `json:"name"`
	Status       string `json:"status"`
	ResponseTime int    `json:"response_time_ms"`
	Error        string `json:"error,omitempty"`
	LastChecked  string `json:"last_checked"`
}

// OverallHealth represents the overall system health
type OverallHealth struct {
	Status   string          `json:"status"`
	Services []ServiceHealth `json:"services"`
	Uptime   string          `json:"uptime"`
}

func (h *HealthChecker) check(ctx context.Context, name string) ServiceHealth {
	start := time.Now()
	err := h.checks[name](ctx)
	responseTime := int(time.Since(start).Milliseconds())

	status := StatusHealthy
	errorMsg := ""
	if err != nil {
		status = StatusUnhealthy
		errorMsg = err.Error()
		h.logger.WithError(err).WithField("service", name).Error("Health check failed")
	}

	return ServiceHealth{
		Name:         name,
		Status:       status,
		ResponseTime: responseTime,
		Error:        errorMsg,
		LastChecked:  time.Now().Format(time.RFC3339),
	}
}

// CheckAll performs health checks on all services
func (h *HealthChecker) CheckAll(ctx context.Context) OverallHealth {
	services := make([]ServiceHealth, 0, len(h.names))
	overallStatus := StatusHealthy

	for _, name := range h.names {
		service := h.check(ctx, name)
		if service.Status != StatusHealthy {
			overallStatus = StatusUnhealthy
		}
		services = append(services, service)
	}

	return OverallHealth{
		Status:   overallStatus,
		Services: services,
		Uptime:   time.Since(h.started).Round(time.Second).String(),
	}
}
