// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/olegiv/viscend/internal/kv"
	"github.com/olegiv/viscend/internal/logging"
	"github.com/olegiv/viscend/internal/scheduler"
)

func newTestHealthHandler(t *testing.T) (*HealthHandler, *kv.MemoryStore) {
	t.Helper()
	store := kv.NewMemoryStore()
	next := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	return NewHealthHandler(HealthConfig{
		Store:    store,
		Backend:  kv.BackendMemory,
		Visitors: func() int { return 3 },
		Jobs: func() []scheduler.JobInfo {
			return []scheduler.JobInfo{{Name: "prune-events", Schedule: scheduler.Daily, NextRun: next}}
		},
	}), store
}

func TestHealthHandler_Health(t *testing.T) {
	h, _ := newTestHealthHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	h.Health(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q; want application/json", ct)
	}

	var resp HealthStatus
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.Status != "healthy" {
		t.Errorf("status = %q; want healthy", resp.Status)
	}
	check, ok := resp.Checks["kv"]
	if !ok {
		t.Fatal("missing kv check")
	}
	if check.Status != "healthy" || check.Message != "memory" {
		t.Errorf("kv check = %+v", check)
	}
	if resp.System != nil {
		t.Error("system info should only be included with verbose=true")
	}
}

func TestHealthHandler_Verbose(t *testing.T) {
	h, store := newTestHealthHandler(t)

	logger := slog.New(logging.NewEventLogHandler(slog.NewTextHandler(io.Discard, nil), store))
	logger.Warn("redis unavailable")
	logger.Error("failed to send notification")

	req := httptest.NewRequest(http.MethodGet, "/health?verbose=true", nil)
	w := httptest.NewRecorder()
	h.Health(w, req)

	var resp HealthStatus
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.System == nil {
		t.Fatal("expected system info")
	}
	if resp.System.Visitors != 3 {
		t.Errorf("visitors = %d; want 3", resp.System.Visitors)
	}
	if resp.System.GoVersion == "" {
		t.Error("expected go version")
	}
	if resp.System.Events != 2 {
		t.Errorf("events = %d; want 2", resp.System.Events)
	}
	if len(resp.System.Jobs) != 1 {
		t.Fatalf("jobs = %+v; want one job", resp.System.Jobs)
	}
	job := resp.System.Jobs[0]
	if job.Name != "prune-events" || job.LastRun != nil || job.NextRun == nil {
		t.Errorf("job = %+v", job)
	}
}

func TestHealthHandler_Degraded(t *testing.T) {
	h, store := newTestHealthHandler(t)
	_ = store.Close()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	h.Health(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d; want %d", w.Code, http.StatusServiceUnavailable)
	}

	var resp HealthStatus
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.Status != "degraded" {
		t.Errorf("status = %q; want degraded", resp.Status)
	}
	if resp.Checks["kv"].Message != kv.ErrClosed.Error() {
		t.Errorf("kv message = %q", resp.Checks["kv"].Message)
	}
}

func TestHealthHandler_Liveness(t *testing.T) {
	h, _ := newTestHealthHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	w := httptest.NewRecorder()
	h.Liveness(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d; want %d", w.Code, http.StatusOK)
	}

	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp["status"] != "alive" {
		t.Errorf("status = %q; want alive", resp["status"])
	}
}
