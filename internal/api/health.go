package api

import (
	"context"
	"net/http"
	"time"
)

// HealthChecker is satisfied by *database.DB.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type HealthResponse struct {
	Status        string            `json:"status"`
	Version       string            `json:"version"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Checks        map[string]string `json:"checks"`
}

type HealthHandler struct {
	db        HealthChecker
	svc       Transcriber
	converter bool
	version   string
	startTime time.Time
}

// NewHealthHandler creates the health handler. db may be nil when the
// transcript log is disabled.
func NewHealthHandler(db HealthChecker, svc Transcriber, converter bool, version string, startTime time.Time) *HealthHandler {
	return &HealthHandler{
		db:        db,
		svc:       svc,
		converter: converter,
		version:   version,
		startTime: startTime,
	}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	status := "healthy"
	httpStatus := http.StatusOK

	// Providers: with none configured every request will fail.
	if len(h.svc.Providers()) > 0 {
		checks["providers"] = "ok"
	} else {
		checks["providers"] = "none_configured"
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	// Database check
	if h.db != nil {
		if err := h.db.HealthCheck(r.Context()); err != nil {
			checks["database"] = "error"
			if status == "healthy" {
				status = "degraded"
			}
		} else {
			checks["database"] = "ok"
		}
	} else {
		checks["database"] = "not_configured"
	}

	// Format conversion is optional; without it some providers get raw bytes.
	if h.converter {
		checks["ffmpeg"] = "ok"
	} else {
		checks["ffmpeg"] = "not_found"
		if status == "healthy" {
			status = "degraded"
		}
	}

	WriteJSON(w, httpStatus, HealthResponse{
		Status:        status,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Checks:        checks,
	})
}
