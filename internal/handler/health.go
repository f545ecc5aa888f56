package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"safarank-api/pkg/apierror"
	"safarank-api/pkg/response"
)

// Pinger is anything whose connectivity can be checked.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependency is a named backend checked by the readiness probe.
type Dependency struct {
	Name   string
	Pinger Pinger
}

// Handler serves the health and status endpoints.
type Handler struct {
	service   string
	version   string
	startTime time.Time
	deps      []Dependency
}

// New creates a health handler.
func New(service, version string, deps ...Dependency) *Handler {
	return &Handler{service: service, version: version, startTime: time.Now(), deps: deps}
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

// Health handles GET /api/v1/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	response.OK(w, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Version:   h.version,
	})
}

// ReadyResponse represents the readiness check response.
type ReadyResponse struct {
	Ready     bool      `json:"ready"`
	Timestamp time.Time `json:"timestamp"`
	Checks    []Check   `json:"checks"`
}

// Check represents an individual readiness check.
type Check struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func (h *Handler) runChecks(ctx context.Context) ([]Check, bool) {
	checks := []Check{{Name: "api", Status: "ok"}}
	ready := true
	for _, d := range h.deps {
		pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := d.Pinger.Ping(pctx)
		cancel()

		c := Check{Name: d.Name, Status: "ok"}
		if err != nil {
			c.Status = "error"
			c.Error = err.Error()
			ready = false
		}
		checks = append(checks, c)
	}
	return checks, ready
}

// Ready handles GET /api/v1/ready
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	checks, ready := h.runChecks(r.Context())
	if !ready {
		var failed []apierror.FieldError
		for _, c := range checks {
			if c.Status != "ok" {
				failed = append(failed, apierror.FieldError{Field: c.Name, Message: c.Error})
			}
		}
		response.Error(w, apierror.ServiceUnavailable("dependencies unavailable").WithDetails(failed...))
		return
	}

	response.OK(w, ReadyResponse{
		Ready:     true,
		Timestamp: time.Now().UTC(),
		Checks:    checks,
	})
}

// StatusResponse is the compact status document for uptime monitors.
type StatusResponse struct {
	Service       string            `json:"service"`
	Status        string            `json:"status"`
	Timestamp     string            `json:"timestamp"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	PingMS        int64             `json:"ping_ms"`
	MemoryMB      float64           `json:"memory_mb"`
	Checks        map[string]string `json:"checks"`
}

// Status handles GET /api/status
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	checks, ready := h.runChecks(r.Context())

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	memoryMB := float64(memStats.Alloc) / 1024 / 1024

	resp := StatusResponse{
		Service:       h.service,
		Status:        "ok",
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		PingMS:        time.Since(start).Milliseconds(),
		MemoryMB:      float64(int(memoryMB*100)) / 100,
		Checks:        make(map[string]string, len(checks)),
	}
	for _, c := range checks {
		resp.Checks[c.Name] = c.Status
	}
	if !ready {
		resp.Status = "degraded"
	}

	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
	response.OK(w, resp)
}
