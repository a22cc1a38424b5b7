package handlers

import (
	"context"
	"net/http"
	"runtime"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/irfndi/intelliinspect-go/internal/cache"
	"github.com/irfndi/intelliinspect-go/internal/services"
)

var startTime = time.Now()

// HealthChecker is implemented by the Postgres and Redis connections.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// PredictorHealth reports predictor reachability.
type PredictorHealth interface {
	HealthCheck(ctx context.Context) bool
}

// BookmarkReporter exposes replay bookmark hit/miss counters.
type BookmarkReporter interface {
	Stats() cache.BookmarkStats
}

type HealthHandler struct {
	dependencies map[string]HealthChecker
	predictor    PredictorHealth
	breaker      *services.CircuitBreaker
	bookmarks    BookmarkReporter
	version      string
	timeout      time.Duration
}

type HealthResponse struct {
	Status    string               `json:"status"`
	Timestamp time.Time            `json:"timestamp"`
	Services  map[string]string    `json:"services"`
	Predictor PredictorStatus      `json:"predictor"`
	Bookmarks *cache.BookmarkStats `json:"bookmarks,omitempty"`
	System    SystemStats          `json:"system"`
	Version   string               `json:"version"`
	Uptime    string               `json:"uptime"`
}

type PredictorStatus struct {
	Status  string                       `json:"status"`
	Circuit string                       `json:"circuit,omitempty"`
	Stats   *services.CircuitBreakerStats `json:"stats,omitempty"`
}

type SystemStats struct {
	Goroutines    int     `json:"goroutines"`
	CPUCores      int     `json:"cpu_cores"`
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
}

// NewHealthHandler creates a health handler. dependencies are required for a
// healthy status; a down predictor only degrades it. predictor and breaker may be nil.
func NewHealthHandler(dependencies map[string]HealthChecker, predictor PredictorHealth, breaker *services.CircuitBreaker, version string) *HealthHandler {
	return &HealthHandler{
		dependencies: dependencies,
		predictor:    predictor,
		breaker:      breaker,
		version:      version,
		timeout:      5 * time.Second,
	}
}

// WithBookmarks adds bookmark counters to the health output.
func (h *HealthHandler) WithBookmarks(bookmarks BookmarkReporter) *HealthHandler {
	h.bookmarks = bookmarks
	return h
}

// HealthCheck reports dependency, predictor and host status.
// @Summary Health check
// @Tags health
// @Produce json
// @Router /health [get]
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	overallStatus := "healthy"
	servicesStatus := make(map[string]string, len(h.dependencies))

	names := make([]string, 0, len(h.dependencies))
	for name := range h.dependencies {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := h.dependencies[name].HealthCheck(ctx); err != nil {
			servicesStatus[name] = "unhealthy: " + err.Error()
			overallStatus = "unhealthy"
		} else {
			servicesStatus[name] = "healthy"
		}
	}

	predictor := h.predictorStatus(ctx)
	if predictor.Status != "healthy" && overallStatus == "healthy" {
		overallStatus = "degraded"
	}

	response := HealthResponse{
		Status:    overallStatus,
		Timestamp: time.Now(),
		Services:  servicesStatus,
		Predictor: predictor,
		System:    systemStats(ctx),
		Version:   h.version,
		Uptime:    time.Since(startTime).String(),
	}
	if h.bookmarks != nil {
		stats := h.bookmarks.Stats()
		response.Bookmarks = &stats
	}

	statusCode := http.StatusOK
	if overallStatus == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}
	c.JSON(statusCode, response)
}

func (h *HealthHandler) predictorStatus(ctx context.Context) PredictorStatus {
	status := PredictorStatus{Status: "not configured"}
	if h.predictor != nil {
		status.Status = "unhealthy"
		if h.predictor.HealthCheck(ctx) {
			status.Status = "healthy"
		}
	}
	if h.breaker != nil {
		stats := h.breaker.GetStats()
		status.Circuit = stats.State
		status.Stats = &stats
	}
	return status
}

func systemStats(ctx context.Context) SystemStats {
	stats := SystemStats{
		Goroutines: runtime.NumGoroutine(),
		CPUCores:   runtime.NumCPU(),
	}
	if percent, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(percent) > 0 {
		stats.CPUPercent = percent[0]
	}
	if memInfo, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		stats.MemoryPercent = memInfo.UsedPercent
	}
	return stats
}
