// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"context"
	"html/template"
	"io"
	"io/fs"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/olegiv/viscend/internal/i18n"
	"github.com/olegiv/viscend/internal/inquiry"
	"github.com/olegiv/viscend/internal/kv"
	"github.com/olegiv/viscend/internal/lifecycle"
	"github.com/olegiv/viscend/internal/notify"
	"github.com/olegiv/viscend/internal/render"
	"github.com/olegiv/viscend/internal/session"
	"github.com/olegiv/viscend/internal/testutil"
	"github.com/olegiv/viscend/web"
)

// testSite is a running site backed by a temporary database and a manual
// clock, with a client that keeps cookies and does not follow redirects.
type testSite struct {
	server   *httptest.Server
	client   *http.Client
	clock    *lifecycle.ManualClock
	store    kv.Store
	catalog  *i18n.Catalog
	visitors *lifecycle.Registry
	mail     *recordingNotifier
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notify.Message
}

func (n *recordingNotifier) Send(_ context.Context, msg notify.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return nil
}

func (n *recordingNotifier) subjects() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.sent))
	for _, m := range n.sent {
		out = append(out, m.Subject)
	}
	return out
}

func newTestSite(t *testing.T) *testSite {
	t.Helper()

	db, cleanup := testutil.TestDB(t)
	t.Cleanup(cleanup)

	logger := testutil.TestLoggerSilent()

	catalog, err := i18n.New(logger)
	require.NoError(t, err)

	sm := session.New(db, true)

	templatesFS, err := fs.Sub(web.Templates, "templates")
	require.NoError(t, err)
	renderer, err := render.New(render.Config{
		TemplatesFS:    templatesFS,
		SessionManager: sm,
		Logger:         logger,
	})
	require.NoError(t, err)

	clock := lifecycle.NewManualClock(time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC))
	visitors := lifecycle.NewRegistry(lifecycle.Config{
		IntroDwell:   4 * time.Second,
		LoadingDelay: 500 * time.Millisecond,
		Clock:        clock,
	}, logger)
	t.Cleanup(visitors.Close)

	store := kv.NewSQLStore(db)
	mail := &recordingNotifier{}
	inquiries := inquiry.NewService(inquiry.Options{
		Store:    store,
		Notifier: mail,
		Logger:   logger,
	})

	staticFS, err := fs.Sub(web.Static, "static")
	require.NoError(t, err)

	health := NewHealthHandler(HealthConfig{
		Store:    store,
		Backend:  kv.BackendSQLite,
		Visitors: visitors.Len,
	})

	router := NewRouter(RouterConfig{
		Frontend: NewFrontendHandler(FrontendConfig{
			Renderer:       renderer,
			SessionManager: sm,
			Visitors:       visitors,
			Inquiries:      inquiries,
			Logger:         logger,
		}),
		API:             NewAPIHandler(inquiries, logger),
		Health:          health,
		SessionManager:  sm,
		Catalog:         catalog,
		DefaultLanguage: i18n.English,
		IsDevelopment:   true,
		CORSOrigins:     []string{"*"},
		CSRFKey:         []byte("0123456789abcdefghijklmnopqrstuv"),
		Static:          staticFS,
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &testSite{
		server: server,
		client: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		clock:    clock,
		store:    store,
		catalog:  catalog,
		visitors: visitors,
		mail:     mail,
	}
}

// response is a fully read HTTP response.
type response struct {
	Status int
	Header http.Header
	Body   string
}

// browserUA identifies test requests as an ordinary desktop browser.
const browserUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

func (s *testSite) do(t *testing.T, req *http.Request) response {
	t.Helper()

	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", browserUA)
	}

	resp, err := s.client.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return response{Status: resp.StatusCode, Header: resp.Header, Body: string(body)}
}

func (s *testSite) get(t *testing.T, path string) response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, s.server.URL+path, nil)
	require.NoError(t, err)
	return s.do(t, req)
}

func (s *testSite) postForm(t *testing.T, path string, form url.Values) response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, s.server.URL+path, strings.NewReader(form.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return s.do(t, req)
}

func (s *testSite) postJSON(t *testing.T, path, body string) response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, s.server.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	return s.do(t, req)
}

// ready drives the visitor through the intro and loading phases.
func (s *testSite) ready(t *testing.T) {
	t.Helper()

	resp := s.get(t, "/")
	require.Equal(t, http.StatusOK, resp.Status)

	s.clock.Advance(4 * time.Second)
	s.clock.Advance(500 * time.Millisecond)

	resp = s.get(t, "/")
	require.Equal(t, http.StatusFound, resp.Status, "expected redirect once content is ready")
}

// text returns the English translation of key as it appears in HTML.
func (s *testSite) text(key string) string {
	escaped := template.HTMLEscapeString(s.catalog.Resolve(key, i18n.English))
	return strings.ReplaceAll(escaped, "+", "&#43;")
}
