package kv

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Backend names the storage backend in use.
type Backend string

const (
	BackendMemory Backend = "memory"
	BackendSQLite Backend = "sqlite"
	BackendRedis  Backend = "redis"
)

// Config holds configuration for store creation.
type Config struct {
	// RedisURL selects the Redis backend when set.
	RedisURL string

	// Prefix is the Redis key namespace.
	Prefix string

	// DB backs the SQLite store. When nil and RedisURL is empty an
	// in-memory store is used.
	DB *sql.DB

	// FallbackToSQL uses DB when Redis cannot be reached.
	FallbackToSQL bool

	Logger *slog.Logger
}

// Result describes the store New created.
type Result struct {
	Store       Store
	BackendType Backend
	IsFallback  bool
}

// New creates a store for the given configuration.
func New(cfg Config) (Result, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.RedisURL != "" {
		opts := DefaultRedisOptions()
		opts.URL = cfg.RedisURL
		if cfg.Prefix != "" {
			opts.Prefix = cfg.Prefix
		}

		rs, err := NewRedisStore(opts)
		if err == nil {
			logger.Info("kv store connected", "backend", BackendRedis, "url", MaskRedisURL(cfg.RedisURL))
			return Result{Store: rs, BackendType: BackendRedis}, nil
		}
		if !cfg.FallbackToSQL || cfg.DB == nil {
			return Result{}, fmt.Errorf("connecting to redis: %w", err)
		}
		logger.Warn("redis unavailable, falling back to sqlite",
			"url", MaskRedisURL(cfg.RedisURL), "error", err)
		return Result{Store: NewSQLStore(cfg.DB), BackendType: BackendSQLite, IsFallback: true}, nil
	}

	if cfg.DB != nil {
		return Result{Store: NewSQLStore(cfg.DB), BackendType: BackendSQLite}, nil
	}

	if cfg.FallbackToSQL {
		return Result{}, errors.New("sqlite fallback requested without a database")
	}
	return Result{Store: NewMemoryStore(), BackendType: BackendMemory}, nil
}

// MaskRedisURL hides credentials in a Redis URL for logging.
func MaskRedisURL(url string) string {
	schemeEnd := strings.Index(url, "://")
	if schemeEnd < 0 {
		return url
	}
	rest := url[schemeEnd+3:]
	at := strings.LastIndex(rest, "@")
	if at < 0 {
		return url
	}
	return url[:schemeEnd+3] + "***" + rest[at:]
}
