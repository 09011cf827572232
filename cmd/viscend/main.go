// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/olegiv/viscend/internal/config"
	"github.com/olegiv/viscend/internal/handler"
	"github.com/olegiv/viscend/internal/i18n"
	"github.com/olegiv/viscend/internal/inquiry"
	"github.com/olegiv/viscend/internal/kv"
	"github.com/olegiv/viscend/internal/lifecycle"
	"github.com/olegiv/viscend/internal/logging"
	"github.com/olegiv/viscend/internal/notify"
	"github.com/olegiv/viscend/internal/render"
	"github.com/olegiv/viscend/internal/scheduler"
	"github.com/olegiv/viscend/internal/session"
	"github.com/olegiv/viscend/internal/store"
	"github.com/olegiv/viscend/web"
)

// Version information - injected at build time via ldflags
var (
	appVersion   = "dev"
	appGitCommit = "unknown"
	appBuildTime = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	showHelp := flag.Bool("help", false, "Show help information")
	flag.BoolVar(showHelp, "h", false, "Show help information (shorthand)")

	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "VisCend - studio website server\n\n")
		_, _ = fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		_, _ = fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		_, _ = fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		_, _ = fmt.Fprintf(os.Stderr, "  VISCEND_SESSION_SECRET    Session encryption key (required, min 32 bytes)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  VISCEND_DB_PATH           SQLite database path (default: ./data/viscend.db)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  VISCEND_SERVER_PORT       Server port (default: 8080)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  VISCEND_ENV               Environment: development|production (default: development)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  VISCEND_REDIS_URL         Redis URL for the key-value store (optional)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  VISCEND_RESEND_API_KEY    Resend API key for email notifications (optional)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  VISCEND_DEFAULT_LANGUAGE  Default site language (default: en)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  VISCEND_EVENT_RETENTION   How long stored warning/error events are kept (default: 720h)\n")
	}

	flag.Parse()

	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if *showVersion {
		_, _ = fmt.Printf("viscend %s (commit: %s, built: %s)\n", appVersion, appGitCommit, appBuildTime)
		os.Exit(0)
	}

	if err := run(); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Load .env files if present (development)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	handler.Version = appVersion

	logLevel := logging.ParseLevel(cfg.LogLevel)
	baseHandler := logging.NewHandler(os.Stdout, logLevel, cfg.IsDevelopment())
	logger := slog.New(baseHandler)
	slog.SetDefault(logger)

	catalog, err := i18n.New(logger)
	if err != nil {
		return fmt.Errorf("initializing i18n: %w", err)
	}

	// Ensure data directory exists
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	slog.Info("initializing database", "path", cfg.DBPath)
	db, err := store.NewDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer func(db *sql.DB) {
		if err := db.Close(); err != nil {
			slog.Error("error closing database connection", "error", err)
		}
	}(db)

	if err := store.Migrate(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	slog.Info("database ready")

	kvResult, err := kv.New(kv.Config{
		RedisURL:      cfg.RedisURL,
		Prefix:        cfg.KVPrefix,
		DB:            db,
		FallbackToSQL: true,
		Logger:        logger,
	})
	if err != nil {
		return fmt.Errorf("initializing kv store: %w", err)
	}
	kvStore := kvResult.Store
	defer func() { _ = kvStore.Close() }()

	// WARN and ERROR records are also kept in the key-value store
	logger = slog.New(logging.NewEventLogHandler(baseHandler, kvStore))
	slog.SetDefault(logger)
	slog.Info("kv store ready", "backend", kvResult.BackendType, "fallback", kvResult.IsFallback)

	sessionManager := session.New(db, cfg.IsDevelopment())

	var notifier notify.Notifier
	if cfg.EmailEnabled() {
		client, err := notify.NewResendClient(cfg.ResendAPIKey, cfg.ResendURL)
		if err != nil {
			return fmt.Errorf("initializing email client: %w", err)
		}
		notifier = client
		slog.Info("email notifications enabled", "to", cfg.MailTo)
	} else {
		notifier = notify.NewLogNotifier(logger)
		slog.Warn("VISCEND_RESEND_API_KEY not set, notifications are only logged")
	}

	inquiries := inquiry.NewService(inquiry.Options{
		Store:    kvStore,
		Notifier: notifier,
		Logger:   logger,
		MailFrom: cfg.MailFrom,
		MailTo:   cfg.MailTo,
	})

	visitors := lifecycle.NewRegistry(lifecycle.Config{
		IntroDwell:   cfg.IntroDwell,
		LoadingDelay: cfg.LoadingDelay,
		OnTransition: func(t lifecycle.Transition) {
			slog.Debug("visitor transition", "from", t.From, "to", t.To)
		},
	}, logger)
	defer visitors.Close()

	sched := scheduler.New(logger)
	if err := sched.AddJob("reap-visitors", scheduler.EveryMinute, func() {
		visitors.Reap(cfg.VisitorIdle)
	}); err != nil {
		return fmt.Errorf("scheduling visitor reaper: %w", err)
	}
	if err := sched.AddJob("prune-events", scheduler.Daily, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		n, err := logging.PruneEvents(ctx, kvStore, time.Now().Add(-cfg.EventRetention))
		if err != nil {
			slog.Error("failed to prune stored events", "error", err)
			return
		}
		if n > 0 {
			slog.Info("pruned stored events", "count", n)
		}
	}); err != nil {
		return fmt.Errorf("scheduling event pruning: %w", err)
	}
	// Catch up on anything that expired while the server was down.
	if err := sched.Trigger("prune-events"); err != nil {
		return fmt.Errorf("pruning events: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	templatesFS, err := fs.Sub(web.Templates, "templates")
	if err != nil {
		return fmt.Errorf("getting templates fs: %w", err)
	}
	renderer, err := render.New(render.Config{
		TemplatesFS:    templatesFS,
		SessionManager: sessionManager,
		Logger:         logger,
	})
	if err != nil {
		return fmt.Errorf("initializing renderer: %w", err)
	}
	if err := handler.CheckTemplates(renderer); err != nil {
		return fmt.Errorf("checking templates: %w", err)
	}

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		return fmt.Errorf("getting static fs: %w", err)
	}

	health := handler.NewHealthHandler(handler.HealthConfig{
		Store:    kvStore,
		Backend:  kvResult.BackendType,
		Visitors: visitors.Len,
		Jobs:     sched.Jobs,
	})

	router := handler.NewRouter(handler.RouterConfig{
		Frontend: handler.NewFrontendHandler(handler.FrontendConfig{
			Renderer:       renderer,
			SessionManager: sessionManager,
			Visitors:       visitors,
			Inquiries:      inquiries,
			Logger:         logger,
		}),
		API:             handler.NewAPIHandler(inquiries, logger),
		Health:          health,
		SessionManager:  sessionManager,
		Catalog:         catalog,
		DefaultLanguage: cfg.Language(),
		IsDevelopment:   cfg.IsDevelopment(),
		CORSOrigins:     cfg.CORSOrigins,
		CSRFKey:         []byte(cfg.SessionSecret),
		Static:          staticFS,
	})

	srv := &http.Server{
		Addr:              cfg.ServerAddr(),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", cfg.ServerAddr(), "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	}

	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped")
	return nil
}
