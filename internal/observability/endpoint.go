package observability

import (
	"context"
	"errors"
	"net"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/tphakala/cropguard/internal/backup"
	"github.com/tphakala/cropguard/internal/detection"
	"github.com/tphakala/cropguard/internal/logger"
)

const (
	shutdownTimeout = 5 * time.Second

	defaultDetectionLimit = 20
	maxDetectionLimit     = 500
)

// StatsSource provides the counter snapshot served on /api/v1/stats.
type StatsSource interface {
	Snapshot(ctx context.Context) (detection.Snapshot, error)
}

// ConfirmationSource reports the fan-outs whose answer window is open.
type ConfirmationSource interface {
	Open() int
	Pending() int
}

// DetectionLog lists the backup ledger.
type DetectionLog interface {
	Entries() ([]backup.Entry, error)
}

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// EndpointOption adds an optional data source.
type EndpointOption func(*Endpoint)

// WithConfirmations adds open fan-out and pending request counts to
// /api/v1/stats.
func WithConfirmations(c ConfirmationSource) EndpointOption {
	return func(e *Endpoint) { e.confirmations = c }
}

// WithDetectionLog serves the most recent ledger entries on /api/v1/detections.
func WithDetectionLog(l DetectionLog) EndpointOption {
	return func(e *Endpoint) { e.detections = l }
}

// Endpoint serves /metrics, /healthz, /api/v1/stats and /api/v1/detections.
type Endpoint struct {
	echo          *echo.Echo
	listen        string
	metrics       *Metrics
	stats         StatsSource
	confirmations ConfirmationSource
	detections    DetectionLog
	health        map[string]HealthCheck
	log           logger.Logger
}

// NewEndpoint builds the HTTP routes. stats may be nil, in which case the
// stats route answers 503; the same holds for detections without a log.
func NewEndpoint(listen string, m *Metrics, stats StatsSource, health map[string]HealthCheck, opts ...EndpointOption) *Endpoint {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	ep := &Endpoint{
		echo:    e,
		listen:  listen,
		metrics: m,
		stats:   stats,
		health:  health,
		log:     GetLogger(),
	}
	for _, opt := range opts {
		opt(ep)
	}

	e.GET("/metrics", echo.WrapHandler(m.Handler()))
	e.GET("/healthz", ep.handleHealth)
	e.GET("/api/v1/stats", ep.handleStats)
	e.GET("/api/v1/detections", ep.handleDetections)
	return ep
}

// Handler exposes the router, mainly for tests.
func (e *Endpoint) Handler() http.Handler {
	return e.echo
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (e *Endpoint) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", e.listen)
	if err != nil {
		return err
	}
	e.echo.Listener = ln
	e.log.Info("telemetry endpoint listening", logger.String("address", ln.Addr().String()))

	errCh := make(chan error, 1)
	go func() {
		errCh <- e.echo.Start("")
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.echo.Shutdown(shutdownCtx); err != nil {
		e.log.Warn("telemetry endpoint shutdown error", logger.Error(err))
	}
	<-errCh
	return nil
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (e *Endpoint) handleHealth(c echo.Context) error {
	resp := healthResponse{Status: "ok", Checks: make(map[string]string, len(e.health))}
	code := http.StatusOK
	for name, check := range e.health {
		if err := check(c.Request().Context()); err != nil {
			resp.Checks[name] = err.Error()
			resp.Status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	return c.JSON(code, resp)
}

type statsResponse struct {
	Categories    []detection.Category `json:"categories"`
	Counts        detection.Snapshot   `json:"counts"`
	Confirmations *confirmationStats   `json:"confirmations,omitempty"`
}

type confirmationStats struct {
	OpenFanOuts     int `json:"open_fanouts"`
	PendingRequests int `json:"pending_requests"`
}

type detectionRecord struct {
	Sequence    int                `json:"sequence"`
	Category    detection.Category `json:"category"`
	Time        time.Time          `json:"time"`
	Temperature *float64           `json:"temperature"`
}

func (e *Endpoint) handleStats(c echo.Context) error {
	if e.stats == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "stats unavailable")
	}
	snap, err := e.stats.Snapshot(c.Request().Context())
	if err != nil {
		e.log.Warn("stats snapshot failed", logger.Error(err))
		return echo.NewHTTPError(http.StatusServiceUnavailable, "stats unavailable")
	}
	resp := statsResponse{
		Categories: detection.Categories(),
		Counts:     snap,
	}
	if e.confirmations != nil {
		resp.Confirmations = &confirmationStats{
			OpenFanOuts:     e.confirmations.Open(),
			PendingRequests: e.confirmations.Pending(),
		}
	}
	return c.JSON(http.StatusOK, resp)
}

// handleDetections returns the newest ledger entries first. ?limit=N
// bounds the count.
func (e *Endpoint) handleDetections(c echo.Context) error {
	if e.detections == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "detection log unavailable")
	}
	limit := defaultDetectionLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = min(n, maxDetectionLimit)
	}

	entries, err := e.detections.Entries()
	if err != nil {
		e.log.Warn("reading detection log failed", logger.Error(err))
		return echo.NewHTTPError(http.StatusServiceUnavailable, "detection log unavailable")
	}
	if len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	out := make([]detectionRecord, 0, len(entries))
	for _, en := range slices.Backward(entries) {
		out = append(out, detectionRecord{
			Sequence:    en.Sequence,
			Category:    en.Category,
			Time:        en.Time,
			Temperature: en.Temperature,
		})
	}
	return c.JSON(http.StatusOK, out)
}
