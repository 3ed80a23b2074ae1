// Package config reads the server configuration from the environment.
// A .env file, when present, is loaded into the environment by the caller
// first (see cmd/server).
//
// VARIABLES (default in brackets):
//
//	PORT [8080]             BACKEND [sqlite]        DB_PATH [data/medhistory.db]
//	SUPABASE_URL            SUPABASE_ANON_KEY       BACKEND_TIMEOUT [10s]
//	JWT_SECRET (required)   JWT_ISSUER              STORAGE_BUCKET [medical_uploads]
//	PUBLIC_BASE_URL [http://localhost:$PORT]        SHARE_TTL [24h]
//	REDIS_ADDR              LOG_LEVEL [info]        LOG_FORMAT [text]
//
// Durations use time.ParseDuration syntax: "10s", "1h30m".
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Backend kinds.
const (
	BackendSQLite   = "sqlite"
	BackendSupabase = "supabase"
)

type Config struct {
	Port    int
	Backend string

	DBPath string // sqlite

	SupabaseURL     string
	SupabaseAnonKey string
	BackendTimeout  time.Duration

	JWTSecret string
	JWTIssuer string

	StorageBucket string
	PublicBaseURL string
	ShareTTL      time.Duration

	RedisAddr string // empty: in-process share guard

	Log LogConfig
}

type LogConfig struct {
	Level  slog.Level
	Format string // "text" or "json"
}

func getEnvOrDefault(getenv func(string) string, key, defaultValue string) string {
	if value := strings.TrimSpace(getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("LOG_LEVEL: unknown level %q", level)
	}
}

// Load reads the process environment.
func Load() (*Config, error) {
	return LoadFrom(os.Getenv)
}

// LoadFrom reads configuration through getenv and reports every invalid
// setting at once.
//
// INJECTED ENVIRONMENT:
// Taking getenv as a parameter instead of calling os.Getenv directly lets a
// test pass a map lookup. No t.Setenv, no leaking state between parallel
// tests.
//
// COLLECT, THEN JOIN:
// Each check appends to errs and carries on. errors.Join returns nil for an
// empty slice and otherwise one error whose message has one line per
// problem, so a misconfigured deploy shows everything wrong in one go.
func LoadFrom(getenv func(string) string) (*Config, error) {
	var errs []error
	env := func(key, def string) string { return getEnvOrDefault(getenv, key, def) }

	cfg := &Config{
		Backend:         strings.ToLower(env("BACKEND", BackendSQLite)),
		DBPath:          env("DB_PATH", "data/medhistory.db"),
		SupabaseURL:     strings.TrimRight(env("SUPABASE_URL", ""), "/"),
		SupabaseAnonKey: env("SUPABASE_ANON_KEY", ""),
		JWTSecret:       env("JWT_SECRET", ""),
		JWTIssuer:       env("JWT_ISSUER", ""),
		StorageBucket:   env("STORAGE_BUCKET", "medical_uploads"),
		RedisAddr:       env("REDIS_ADDR", ""),
		Log: LogConfig{
			Format: strings.ToLower(env("LOG_FORMAT", "text")),
		},
	}

	port, err := strconv.Atoi(env("PORT", "8080"))
	if err != nil || port <= 0 || port > 65535 {
		errs = append(errs, fmt.Errorf("PORT: %q is not a valid port", env("PORT", "")))
	}
	cfg.Port = port

	cfg.PublicBaseURL = strings.TrimRight(env("PUBLIC_BASE_URL", fmt.Sprintf("http://localhost:%d", port)), "/")
	if u, err := url.Parse(cfg.PublicBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("PUBLIC_BASE_URL: %q is not an absolute URL", cfg.PublicBaseURL))
	}

	if cfg.BackendTimeout, err = time.ParseDuration(env("BACKEND_TIMEOUT", "10s")); err != nil || cfg.BackendTimeout <= 0 {
		errs = append(errs, fmt.Errorf("BACKEND_TIMEOUT: %q is not a positive duration", env("BACKEND_TIMEOUT", "")))
	}
	if cfg.ShareTTL, err = time.ParseDuration(env("SHARE_TTL", "24h")); err != nil || cfg.ShareTTL <= 0 {
		errs = append(errs, fmt.Errorf("SHARE_TTL: %q is not a positive duration", env("SHARE_TTL", "")))
	}

	if cfg.Log.Level, err = parseLogLevel(env("LOG_LEVEL", "info")); err != nil {
		errs = append(errs, err)
	}
	if cfg.Log.Format != "text" && cfg.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("LOG_FORMAT: must be text or json, got %q", cfg.Log.Format))
	}

	if len(cfg.JWTSecret) < 16 {
		errs = append(errs, errors.New("JWT_SECRET: must be set to at least 16 characters"))
	}

	switch cfg.Backend {
	case BackendSQLite:
		if cfg.DBPath == "" {
			errs = append(errs, errors.New("DB_PATH: required for the sqlite backend"))
		}
	case BackendSupabase:
		if u, err := url.Parse(cfg.SupabaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, errors.New("SUPABASE_URL: required for the supabase backend"))
		}
		if cfg.SupabaseAnonKey == "" {
			errs = append(errs, errors.New("SUPABASE_ANON_KEY: required for the supabase backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("BACKEND: must be %s or %s, got %q", BackendSQLite, BackendSupabase, cfg.Backend))
	}

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// NewLogger builds the process logger described by c.
func (c LogConfig) NewLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.Level}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
