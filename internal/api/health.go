package api

import (
	"context"
	"net/http"
	"time"
)

type HealthResponse struct {
	Status        string            `json:"status"`
	Version       string            `json:"version"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Checks        map[string]string `json:"checks"`
	Engines       map[string]bool   `json:"engines,omitempty"`
}

type HealthHandler struct {
	deps      Deps
	version   string
	startTime time.Time
}

func NewHealthHandler(deps Deps, version string, startTime time.Time) *HealthHandler {
	return &HealthHandler{deps: deps, version: version, startTime: startTime}
}

// ServeHTTP reports engine health. "degraded" (still 200) means an optional
// collaborator is down; only a failing persistent store flips the status to
// "unhealthy" with a 503, since then cached results are no longer durable.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := make(map[string]string)
	status := "healthy"

	if h.deps.DB != nil {
		if err := h.deps.DB.HealthCheck(ctx); err != nil {
			checks["database"] = "error: " + err.Error()
			status = "unhealthy"
		} else {
			checks["database"] = "ok"
		}
	} else {
		checks["database"] = "disabled"
	}

	if h.deps.MQTT != nil {
		if h.deps.MQTT.IsConnected() {
			checks["mqtt"] = "ok"
		} else {
			checks["mqtt"] = "disconnected"
			if status == "healthy" {
				status = "degraded"
			}
		}
	} else {
		checks["mqtt"] = "disabled"
	}

	if h.deps.WatcherStatus != nil {
		if s := h.deps.WatcherStatus(); s != "" {
			checks["watcher"] = s
		} else {
			checks["watcher"] = "disabled"
		}
	} else {
		checks["watcher"] = "disabled"
	}

	engines := make(map[string]bool, len(h.deps.Engines))
	for _, e := range h.deps.Engines {
		engines[string(e.Tier())] = e.Available(ctx)
	}

	code := http.StatusOK
	if status == "unhealthy" {
		code = http.StatusServiceUnavailable
	}

	WriteJSON(w, code, HealthResponse{
		Status:        status,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Checks:        checks,
		Engines:       engines,
	})
}
