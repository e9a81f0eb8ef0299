package http

import (
	"net/http"
	"runtime"
	"time"
)

// HubStats exposes the connection counts the health endpoints report.
type HubStats interface {
	ClientCount() int
	RoomCount() int
}

// UpstreamChecker reports whether any upstream change stream is live.
// A nil checker means the service started without upstream credentials.
type UpstreamChecker interface {
	Connected() bool
	StreamCount() int
}

// HealthHandler handles health check requests
type HealthHandler struct {
	hub       HubStats
	upstream  UpstreamChecker
	startTime time.Time
	version   string
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(hub HubStats, upstream UpstreamChecker, version string) *HealthHandler {
	return &HealthHandler{
		hub:       hub,
		upstream:  upstream,
		startTime: time.Now(),
		version:   version,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string           `json:"status"`
	Timestamp string           `json:"timestamp"`
	Version   string           `json:"version,omitempty"`
	Uptime    string           `json:"uptime,omitempty"`
	Checks    map[string]Check `json:"checks,omitempty"`
}

// Check represents an individual health check result
type Check struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HandleLiveness handles liveness probe requests (is the service running?)
// Used by Kubernetes to know when to restart a container
func (h *HealthHandler) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	WriteJSON(w, http.StatusOK, response)
}

// HandleReadiness handles readiness probe requests (can the service accept
// traffic?). A degraded upstream does not fail readiness: connections are
// still served, only change events are missing.
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	checks := map[string]Check{
		"upstream": h.checkUpstream(),
	}

	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   h.version,
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Checks:    checks,
	}
	if checks["upstream"].Status != "healthy" {
		response.Status = "degraded"
	}

	WriteJSON(w, http.StatusOK, response)
}

// HandleHealth handles detailed health check requests (for monitoring/debugging)
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	checks := map[string]Check{
		"upstream": h.checkUpstream(),
	}

	overallStatus := "healthy"
	if checks["upstream"].Status != "healthy" {
		overallStatus = "degraded"
	}

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	response := struct {
		HealthResponse
		Connections int `json:"connections"`
		Rooms       int `json:"rooms"`
		Memory      struct {
			Alloc      uint64 `json:"alloc_bytes"`
			TotalAlloc uint64 `json:"total_alloc_bytes"`
			Sys        uint64 `json:"sys_bytes"`
			NumGC      uint32 `json:"num_gc"`
		} `json:"memory"`
		Goroutines int `json:"goroutines"`
	}{
		HealthResponse: HealthResponse{
			Status:    overallStatus,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   h.version,
			Uptime:    time.Since(h.startTime).Round(time.Second).String(),
			Checks:    checks,
		},
		Connections: h.hub.ClientCount(),
		Rooms:       h.hub.RoomCount(),
		Goroutines:  runtime.NumGoroutine(),
	}
	response.Memory.Alloc = memStats.Alloc
	response.Memory.TotalAlloc = memStats.TotalAlloc
	response.Memory.Sys = memStats.Sys
	response.Memory.NumGC = memStats.NumGC

	WriteJSON(w, http.StatusOK, response)
}

// checkUpstream reports the state of the change source.
func (h *HealthHandler) checkUpstream() Check {
	if h.upstream == nil {
		return Check{
			Status:  "degraded",
			Message: "upstream not configured, relaying no change events",
		}
	}
	if !h.upstream.Connected() {
		return Check{
			Status:  "unhealthy",
			Message: "no upstream streams listening",
		}
	}
	return Check{Status: "healthy"}
}
