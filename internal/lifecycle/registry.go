// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package lifecycle

import (
	"log/slog"
	"sync"
	"time"
)

// Registry owns one Machine per visitor.
type Registry struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	machines map[string]*visitor
	closed   bool
}

type visitor struct {
	machine  *Machine
	lastSeen time.Time
}

// NewRegistry creates a registry whose machines are built from cfg.
func NewRegistry(cfg Config, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		cfg:      cfg.withDefaults(),
		logger:   logger,
		machines: make(map[string]*visitor),
	}
}

// Get returns the visitor's machine, creating it on first use.
// A closed registry hands out machines that are already closed.
func (r *Registry) Get(visitorID string) *Machine {
	now := r.cfg.Clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	if v, ok := r.machines[visitorID]; ok {
		v.lastSeen = now
		return v.machine
	}

	m := New(r.cfg)
	if r.closed {
		m.Close()
		return m
	}
	r.machines[visitorID] = &visitor{machine: m, lastSeen: now}
	r.logger.Debug("visitor lifecycle started", "visitor_id", visitorID)
	return m
}

// Len returns the number of tracked visitors.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.machines)
}

// Reap closes and forgets machines not requested within idle.
// It returns the number of visitors removed.
func (r *Registry) Reap(idle time.Duration) int {
	cutoff := r.cfg.Clock.Now().Add(-idle)

	r.mu.Lock()
	var stale []*Machine
	for id, v := range r.machines {
		if v.lastSeen.Before(cutoff) {
			stale = append(stale, v.machine)
			delete(r.machines, id)
		}
	}
	r.mu.Unlock()

	for _, m := range stale {
		m.Close()
	}
	if len(stale) > 0 {
		r.logger.Info("reaped idle visitors", "count", len(stale))
	}
	return len(stale)
}

// Close closes every machine and stops tracking visitors.
func (r *Registry) Close() {
	r.mu.Lock()
	machines := r.machines
	r.machines = make(map[string]*visitor)
	r.closed = true
	r.mu.Unlock()

	for _, v := range machines {
		v.machine.Close()
	}
}
