package health

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
)

// Pinger checks a dependency round trip. The Redis client satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// GraphChecker checks graph database connectivity.
type GraphChecker interface {
	VerifyConnectivity(ctx context.Context) error
}

// Checker handles health check endpoints
type Checker struct {
	db        *sqlx.DB
	redis     Pinger
	graph     GraphChecker
	version   string
	startTime time.Time
	ready     atomic.Bool
}

// NewChecker creates a new health checker
func NewChecker(db *sqlx.DB, redis Pinger, graph GraphChecker, version string) *Checker {
	return &Checker{
		db:        db,
		redis:     redis,
		graph:     graph,
		version:   version,
		startTime: time.Now(),
	}
}

// SetReady sets the readiness state
func (c *Checker) SetReady(ready bool) {
	c.ready.Store(ready)
}

// RegisterRoutes registers health check endpoints
func (c *Checker) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/v1/health", c.Health)
	e.GET("/api/v1/health/live", c.Live)
	e.GET("/api/v1/health/ready", c.Ready)
}

// HealthStatus represents the health check response
type HealthStatus struct {
	Status     string                  `json:"status"`
	Version    string                  `json:"version"`
	Uptime     string                  `json:"uptime"`
	Checks     map[string]*CheckResult `json:"checks"`
	ReportedAt time.Time               `json:"reported_at"`
}

// CheckResult represents an individual check result
type CheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// Health returns the overall health status
func (c *Checker) Health(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()

	status := &HealthStatus{
		Status:     "healthy",
		Version:    c.version,
		Uptime:     time.Since(c.startTime).Round(time.Second).String(),
		Checks:     make(map[string]*CheckResult),
		ReportedAt: time.Now(),
	}

	// Check staging database
	if c.db != nil {
		status.addCheck("database", func() error { return c.db.PingContext(reqCtx) })
	} else {
		status.Status = "unhealthy"
		status.Checks["database"] = &CheckResult{
			Status:  "unhealthy",
			Message: "database not configured",
		}
	}

	// Check Redis (cursor store) if configured
	if c.redis != nil {
		status.addCheck("redis", func() error { return c.redis.Ping(reqCtx) })
	}

	// Check graph database if configured
	if c.graph != nil {
		status.addCheck("graph", func() error { return c.graph.VerifyConnectivity(reqCtx) })
	}

	httpStatus := http.StatusOK
	if status.Status == "unhealthy" {
		httpStatus = http.StatusServiceUnavailable
	}

	return ctx.JSON(httpStatus, status)
}

func (s *HealthStatus) addCheck(name string, check func() error) {
	start := time.Now()
	err := check()
	latency := time.Since(start)

	if err != nil {
		s.Status = "unhealthy"
		s.Checks[name] = &CheckResult{
			Status:  "unhealthy",
			Message: err.Error(),
		}
		return
	}
	s.Checks[name] = &CheckResult{
		Status:  "healthy",
		Latency: latency.String(),
	}
}

// Live returns the liveness status (is the service running)
func (c *Checker) Live(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]string{"status": "alive"})
}

// Ready returns the readiness status (is the service ready to accept traffic)
func (c *Checker) Ready(ctx echo.Context) error {
	if c.ready.Load() {
		return ctx.JSON(http.StatusOK, map[string]string{"status": "ready"})
	}
	return ctx.JSON(http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
}
