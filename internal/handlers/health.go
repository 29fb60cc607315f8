package handlers

import (
	"log/slog"
	"math"
	"net/http"
	"runtime"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/memohai/lineassist/internal/config"
	"github.com/memohai/lineassist/internal/healthcheck"
	"github.com/memohai/lineassist/internal/version"
)

// HealthHandler serves liveness, readiness, and service index routes.
type HealthHandler struct {
	logger   *slog.Logger
	env      string
	checkers []healthcheck.Checker
	started  time.Time
	now      func() time.Time
}

func NewHealthHandler(log *slog.Logger, cfg config.Config) *HealthHandler {
	if log == nil {
		log = slog.Default()
	}
	return &HealthHandler{
		logger:   log.With(slog.String("handler", "health")),
		env:      cfg.Env,
		checkers: []healthcheck.Checker{healthcheck.NewCredentialsChecker(cfg)},
		started:  time.Now(),
		now:      time.Now,
	}
}

func (h *HealthHandler) Register(e *echo.Echo) {
	e.GET("/", h.Index)
	e.GET("/api", h.APIIndex)
	e.GET("/ping", h.Ping)
	e.HEAD("/health", h.PingHead)
	e.GET("/health", h.Health)
	e.GET("/health/detailed", h.Detailed)
	e.GET("/health/ready", h.Ready)
	e.GET("/health/live", h.Live)
}

type HealthResponse struct {
	Status      string  `json:"status"`
	Timestamp   string  `json:"timestamp"`
	Uptime      float64 `json:"uptime"`
	Environment string  `json:"environment"`
	Version     string  `json:"version"`
}

type MemoryStats struct {
	Used       float64 `json:"used"`
	Total      float64 `json:"total"`
	Free       float64 `json:"free"`
	Percentage int     `json:"percentage"`
	System     float64 `json:"system"`
}

type DetailedHealthResponse struct {
	HealthResponse
	Memory     MemoryStats `json:"memory"`
	Goroutines int         `json:"goroutines"`
	Platform   string      `json:"platform"`
	GoVersion  string      `json:"goVersion"`
}

type ProbeResponse struct {
	Status    string                    `json:"status"`
	Timestamp string                    `json:"timestamp"`
	Checks    []healthcheck.CheckResult `json:"checks,omitempty"`
}

func (h *HealthHandler) Ping(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

func (h *HealthHandler) PingHead(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

func (h *HealthHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, h.basic())
}

// Detailed adds Go runtime statistics. Memory figures are MiB of heap.
func (h *HealthHandler) Detailed(c echo.Context) error {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	used := float64(ms.HeapAlloc)
	total := float64(ms.HeapSys)
	percentage := 0
	if total > 0 {
		percentage = int(math.Round(used / total * 100))
	}
	return c.JSON(http.StatusOK, DetailedHealthResponse{
		HealthResponse: h.basic(),
		Memory: MemoryStats{
			Used:       mebibytes(used),
			Total:      mebibytes(total),
			Free:       mebibytes(total - used),
			Percentage: percentage,
			System:     mebibytes(float64(ms.Sys)),
		},
		Goroutines: runtime.NumGoroutine(),
		Platform:   runtime.GOOS + "/" + runtime.GOARCH,
		GoVersion:  runtime.Version(),
	})
}

// Ready runs the readiness checks. Warnings keep the service ready; any
// error result answers 503.
func (h *HealthHandler) Ready(c echo.Context) error {
	checks := healthcheck.Run(c.Request().Context(), h.checkers...)
	if !healthcheck.Ready(checks) {
		h.logger.Warn("readiness check failed", slog.Any("checks", checks))
		return c.JSON(http.StatusServiceUnavailable, ProbeResponse{Status: "not ready", Timestamp: h.timestamp(), Checks: checks})
	}
	return c.JSON(http.StatusOK, ProbeResponse{Status: "ready", Timestamp: h.timestamp(), Checks: checks})
}

func (h *HealthHandler) Live(c echo.Context) error {
	return c.JSON(http.StatusOK, ProbeResponse{Status: "alive", Timestamp: h.timestamp()})
}

// Index describes the service and its main routes.
func (h *HealthHandler) Index(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"message": "Welcome to the LINE assistant webhook API",
		"version": version.Version,
		"status":  "running",
		"endpoints": map[string]string{
			"health":      "/health",
			"api":         "/api",
			"lineWebhook": "/line-webhook",
			"metrics":     "/metrics",
		},
	})
}

func (h *HealthHandler) APIIndex(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"message": "API is working!",
		"endpoints": map[string]string{
			"health":      "/health",
			"api":         "/api",
			"root":        "/",
			"lineWebhook": "/line-webhook",
		},
	})
}

func (h *HealthHandler) basic() HealthResponse {
	now := h.now()
	return HealthResponse{
		Status:      "OK",
		Timestamp:   now.UTC().Format(time.RFC3339Nano),
		Uptime:      now.Sub(h.started).Seconds(),
		Environment: h.env,
		Version:     version.Version,
	}
}

func (h *HealthHandler) timestamp() string {
	return h.now().UTC().Format(time.RFC3339Nano)
}

func mebibytes(b float64) float64 {
	return math.Round(b/1024/1024*100) / 100
}
