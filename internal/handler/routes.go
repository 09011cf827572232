// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/olegiv/viscend/internal/i18n"
	"github.com/olegiv/viscend/internal/middleware"
)

// Route patterns.
const (
	RouteRoot           = "/"
	RouteSegment        = "/{seg}"
	RouteLangPage       = "/{lang}/{page}"
	RouteLangContact    = "/{lang}/contact"
	RouteLangNewsletter = "/{lang}/newsletter"
	RouteIntroComplete  = "/intro/complete"
	RouteLanguage       = "/language"

	RouteAPIContact    = "/contact"
	RouteAPINewsletter = "/newsletter"
	RouteAPIContacts   = "/contacts"

	RouteHealth     = "/health"
	RouteHealthLive = "/health/live"
	RouteStatic     = "/static/*"
)

// Request rates per client IP.
const (
	formRate  = 1.0
	formBurst = 5
	apiRate   = 10.0
	apiBurst  = 20
)

// RouterConfig holds everything NewRouter wires together.
type RouterConfig struct {
	Frontend *FrontendHandler
	API      *APIHandler
	Health   *HealthHandler

	SessionManager  *scs.SessionManager
	Catalog         *i18n.Catalog
	DefaultLanguage i18n.Language

	IsDevelopment bool
	CORSOrigins   []string
	// CSRFKey enables cross-origin protection for HTML forms when set.
	CSRFKey []byte

	// Static serves /static/ when set.
	Static fs.FS
}

// NewRouter builds the application router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.GetHead)
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(chimw.RedirectSlashes)
	r.Use(middleware.SecurityHeaders(middleware.DefaultSecurityHeadersConfig(cfg.IsDevelopment)))
	r.Use(cfg.SessionManager.LoadAndSave)
	r.Use(middleware.Language(cfg.Catalog, cfg.DefaultLanguage))

	r.Get(RouteHealth, cfg.Health.Health)
	r.Get(RouteHealthLive, cfg.Health.Liveness)

	if cfg.Static != nil {
		r.Handle(RouteStatic, http.StripPrefix("/static/", http.FileServer(http.FS(cfg.Static))))
	}

	// JSON API
	r.Group(func(r chi.Router) {
		r.Use(middleware.CORS(middleware.CORSConfig{AllowedOrigins: cfg.CORSOrigins}))
		r.Use(middleware.NewRateLimiter(apiRate, apiBurst).Middleware())

		r.Post(RouteAPIContact, cfg.API.Contact)
		r.Post(RouteAPINewsletter, cfg.API.Newsletter)
		r.Get(RouteAPIContacts, cfg.API.Contacts)

		// Preflight requests are answered by the CORS middleware.
		for _, route := range []string{RouteAPIContact, RouteAPINewsletter, RouteAPIContacts} {
			r.Options(route, noContent)
		}
	})

	// Site pages
	r.Get(RouteRoot, cfg.Frontend.Root)
	r.Get(RouteSegment, cfg.Frontend.Segment)
	r.Get(RouteLangPage, cfg.Frontend.Page)

	// Site forms
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewRateLimiter(formRate, formBurst).HTMLMiddleware())
		if len(cfg.CSRFKey) > 0 {
			r.Use(middleware.CSRF(middleware.DefaultCSRFConfig(cfg.CSRFKey, cfg.IsDevelopment)))
		} else {
			slog.Warn("cross-origin form protection disabled")
		}

		r.Post(RouteIntroComplete, cfg.Frontend.CompleteIntro)
		r.Post(RouteLanguage, cfg.Frontend.SetLanguage)
		r.Post(RouteLangContact, cfg.Frontend.SubmitContact)
		r.Post(RouteLangNewsletter, cfg.Frontend.Subscribe)
	})

	r.NotFound(cfg.Frontend.NotFound)

	return r
}

func noContent(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}
