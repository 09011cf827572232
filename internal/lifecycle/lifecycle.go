// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package lifecycle implements the per-visitor site lifecycle:
// intro, then loading, then the content pages.
//
// Phases only move forward. The intro advances after a dwell time or when
// the visitor completes it, whichever comes first; loading advances to the
// home page after a short delay. Once content is shown the only transition
// is navigation between the fixed set of pages.
package lifecycle

import (
	"fmt"
	"sync"
	"time"
)

// Default phase durations.
const (
	DefaultIntroDwell   = 4000 * time.Millisecond
	DefaultLoadingDelay = 500 * time.Millisecond
)

// Phase is a lifecycle phase.
type Phase int

// Lifecycle phases, in order.
const (
	PhaseIntro Phase = iota
	PhaseLoading
	PhaseReady
)

func (p Phase) String() string {
	switch p {
	case PhaseIntro:
		return "intro"
	case PhaseLoading:
		return "loading"
	case PhaseReady:
		return "ready"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Page identifies one of the site's content pages.
type Page string

// Content pages.
const (
	PageHome      Page = "home"
	PageAbout     Page = "about"
	PageServices  Page = "services"
	PagePortfolio Page = "portfolio"
	PageContact   Page = "contact"
)

var pages = []Page{PageHome, PageAbout, PageServices, PagePortfolio, PageContact}

// Pages returns the content pages in navigation order.
func Pages() []Page {
	out := make([]Page, len(pages))
	copy(out, pages)
	return out
}

// ParsePage returns the page named s, if it is one of the content pages.
func ParsePage(s string) (Page, bool) {
	for _, p := range pages {
		if string(p) == s {
			return p, true
		}
	}
	return "", false
}

// State is a lifecycle snapshot. Page is set only in PhaseReady.
type State struct {
	Phase Phase
	Page  Page
}

func (s State) String() string {
	if s.Phase == PhaseReady {
		return fmt.Sprintf("ready(%s)", s.Page)
	}
	return s.Phase.String()
}

// Transition describes one applied state change.
type Transition struct {
	From State
	To   State
	// ScrollToTop is set for navigation: the view scrolls smoothly to the top
	// as part of the same step.
	ScrollToTop bool
}

// Config configures a Machine.
type Config struct {
	IntroDwell   time.Duration
	LoadingDelay time.Duration
	Clock        Clock
	// OnTransition is called after every applied transition, outside the
	// machine's lock. Calls for one machine never overlap and arrive in the
	// order the transitions were applied; a transition applied while an
	// earlier one is being delivered is delivered by that same goroutine.
	OnTransition func(Transition)
}

func (c Config) withDefaults() Config {
	if c.IntroDwell <= 0 {
		c.IntroDwell = DefaultIntroDwell
	}
	if c.LoadingDelay <= 0 {
		c.LoadingDelay = DefaultLoadingDelay
	}
	if c.Clock == nil {
		c.Clock = SystemClock()
	}
	return c
}

// Machine is a single visitor's lifecycle. It is safe for concurrent use.
type Machine struct {
	cfg Config

	mu       sync.Mutex
	state    State
	timer    Timer
	deadline time.Time
	closed   bool

	// Transitions waiting for OnTransition, oldest first.
	outbox     []Transition
	delivering bool
}

// New creates a machine in the intro phase and starts the dwell timer.
func New(cfg Config) *Machine {
	m := &Machine{cfg: cfg.withDefaults()}

	m.mu.Lock()
	m.state = State{Phase: PhaseIntro}
	m.schedule(m.cfg.IntroDwell, m.introElapsed)
	m.mu.Unlock()

	return m
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Remaining returns the time left before the current phase advances on its
// own. It is zero once content is shown.
func (m *Machine) Remaining() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Phase == PhaseReady || m.closed {
		return 0
	}
	if d := m.deadline.Sub(m.cfg.Clock.Now()); d > 0 {
		return d
	}
	return 0
}

// CompleteIntro signals that the intro finished early. It reports whether
// the signal moved the machine to loading; repeated or late signals are
// no-ops.
func (m *Machine) CompleteIntro() bool {
	m.mu.Lock()
	if m.closed || m.state.Phase != PhaseIntro {
		m.mu.Unlock()
		return false
	}
	m.stopTimer()
	m.enterLoading()
	m.mu.Unlock()

	m.flush()
	return true
}

// Navigate requests the content page p. Requests before content is shown
// and pages outside the fixed set are ignored and report false.
func (m *Machine) Navigate(p Page) (Transition, bool) {
	if _, ok := ParsePage(string(p)); !ok {
		return Transition{}, false
	}

	m.mu.Lock()
	if m.closed || m.state.Phase != PhaseReady {
		m.mu.Unlock()
		return Transition{}, false
	}
	t := Transition{
		From:        m.state,
		To:          State{Phase: PhaseReady, Page: p},
		ScrollToTop: true,
	}
	m.state = t.To
	m.queue(t)
	m.mu.Unlock()

	m.flush()
	return t, true
}

// Close cancels any pending timer. After Close the state no longer changes.
func (m *Machine) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.stopTimer()
}

// Closed reports whether Close has been called.
func (m *Machine) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *Machine) introElapsed() {
	m.mu.Lock()
	if m.closed || m.state.Phase != PhaseIntro {
		m.mu.Unlock()
		return
	}
	m.timer = nil
	m.enterLoading()
	m.mu.Unlock()

	m.flush()
}

func (m *Machine) loadingElapsed() {
	m.mu.Lock()
	if m.closed || m.state.Phase != PhaseLoading {
		m.mu.Unlock()
		return
	}
	m.timer = nil
	t := Transition{From: m.state, To: State{Phase: PhaseReady, Page: PageHome}}
	m.state = t.To
	m.deadline = time.Time{}
	m.queue(t)
	m.mu.Unlock()

	m.flush()
}

// enterLoading must be called with mu held.
func (m *Machine) enterLoading() {
	t := Transition{From: m.state, To: State{Phase: PhaseLoading}}
	m.state = t.To
	m.queue(t)
	m.schedule(m.cfg.LoadingDelay, m.loadingElapsed)
}

// schedule must be called with mu held.
func (m *Machine) schedule(d time.Duration, f func()) {
	m.deadline = m.cfg.Clock.Now().Add(d)
	m.timer = m.cfg.Clock.AfterFunc(d, f)
}

// stopTimer must be called with mu held.
func (m *Machine) stopTimer() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

// queue must be called with mu held.
func (m *Machine) queue(t Transition) {
	if m.cfg.OnTransition != nil {
		m.outbox = append(m.outbox, t)
	}
}

// flush delivers queued transitions unless another goroutine already is.
func (m *Machine) flush() {
	m.mu.Lock()
	if m.delivering {
		m.mu.Unlock()
		return
	}
	m.delivering = true
	for len(m.outbox) > 0 {
		t := m.outbox[0]
		m.outbox = m.outbox[1:]
		m.mu.Unlock()

		m.cfg.OnTransition(t)

		m.mu.Lock()
	}
	m.delivering = false
	m.mu.Unlock()
}
