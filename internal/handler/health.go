// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/olegiv/viscend/internal/kv"
	"github.com/olegiv/viscend/internal/logging"
	"github.com/olegiv/viscend/internal/scheduler"
)

// Version is reported by the health endpoint. Overridden at build time.
var Version = "dev"

// HealthConfig holds the sources a HealthHandler reports on.
type HealthConfig struct {
	Store   kv.Store
	Backend kv.Backend

	// Visitors reports the number of tracked visitors. Optional.
	Visitors func() int
	// Jobs lists scheduled maintenance jobs. Optional.
	Jobs func() []scheduler.JobInfo
}

// HealthHandler handles health check requests.
type HealthHandler struct {
	store     kv.Store
	backend   kv.Backend
	visitors  func() int
	jobs      func() []scheduler.JobInfo
	startTime time.Time
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(cfg HealthConfig) *HealthHandler {
	return &HealthHandler{
		store:     cfg.Store,
		backend:   cfg.Backend,
		visitors:  cfg.Visitors,
		jobs:      cfg.Jobs,
		startTime: time.Now(),
	}
}

// HealthStatus represents the overall health status.
type HealthStatus struct {
	Status    string           `json:"status"`
	Timestamp time.Time        `json:"timestamp"`
	Uptime    string           `json:"uptime"`
	Version   string           `json:"version"`
	Checks    map[string]Check `json:"checks"`
	System    *SystemInfo      `json:"system,omitempty"`
}

// Check represents a single health check result.
type Check struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// SystemInfo contains process-level information.
type SystemInfo struct {
	GoVersion    string      `json:"go_version"`
	NumGoroutine int         `json:"num_goroutines"`
	Visitors     int         `json:"visitors"`
	Events       int         `json:"events"`
	Jobs         []JobStatus `json:"jobs,omitempty"`
}

// JobStatus describes a scheduled job.
type JobStatus struct {
	Name     string     `json:"name"`
	Schedule string     `json:"schedule"`
	LastRun  *time.Time `json:"last_run,omitempty"`
	NextRun  *time.Time `json:"next_run,omitempty"`
}

// Health handles GET /health.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	storeCheck := h.checkStore(r.Context())

	status := HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Version:   Version,
		Checks:    map[string]Check{"kv": storeCheck},
	}

	code := http.StatusOK
	if storeCheck.Status != "healthy" {
		status.Status = "degraded"
		code = http.StatusServiceUnavailable
	}

	if r.URL.Query().Get("verbose") == "true" {
		info := &SystemInfo{
			GoVersion:    runtime.Version(),
			NumGoroutine: runtime.NumGoroutine(),
		}
		if h.visitors != nil {
			info.Visitors = h.visitors()
		}
		// Stored warnings and errors; left at zero when the store is down.
		if events, err := logging.ListEvents(r.Context(), h.store); err == nil {
			info.Events = len(events)
		}
		if h.jobs != nil {
			for _, j := range h.jobs() {
				info.Jobs = append(info.Jobs, JobStatus{
					Name:     j.Name,
					Schedule: j.Schedule,
					LastRun:  optionalTime(j.LastRun),
					NextRun:  optionalTime(j.NextRun),
				})
			}
		}
		status.System = info
	}

	writeJSON(w, code, status)
}

// Liveness handles GET /health/live - simple liveness check.
func (h *HealthHandler) Liveness(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// checkStore verifies the key-value store responds.
func (h *HealthHandler) checkStore(ctx context.Context) Check {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	start := time.Now()
	err := h.store.Ping(ctx)
	latency := time.Since(start)

	if err != nil {
		return Check{
			Status:  "unhealthy",
			Message: err.Error(),
			Latency: latency.String(),
		}
	}

	return Check{
		Status:  "healthy",
		Message: string(h.backend),
		Latency: latency.String(),
	}
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
