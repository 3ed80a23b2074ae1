// Package server wires the backend, services and handlers into one HTTP
// server and runs it until SIGINT/SIGTERM.
//
// LAYERS:
// A request travels handler → service → backend:
//   - handlers decode HTTP input and encode JSON, nothing else
//   - services validate, apply the domain rules and log
//   - the backend (embedded sqlite or the hosted REST API) stores rows and
//     objects behind the backend.Client and backend.Storage interfaces
//
// This package is the only place that knows all three. It picks the backend
// from the configuration, builds the services on it, and mounts the handlers.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/sakif/medhistory/internal/auth"
	"github.com/sakif/medhistory/internal/backend"
	"github.com/sakif/medhistory/internal/backend/sqlite"
	"github.com/sakif/medhistory/internal/backend/supabase"
	"github.com/sakif/medhistory/internal/config"
	"github.com/sakif/medhistory/internal/guard"
	"github.com/sakif/medhistory/internal/handler"
	"github.com/sakif/medhistory/internal/middleware"
	"github.com/sakif/medhistory/internal/service"
)

// shareGuardTTL bounds how long a crashed share request can block its user.
const shareGuardTTL = time.Minute

// Deps are the collaborators a Server runs on. New builds them from the
// configuration; tests pass their own.
type Deps struct {
	Backend backend.Backend
	Guard   guard.Guard
}

type Server struct {
	router *chi.Mux
	config *config.Config
	logger *slog.Logger
	deps   Deps
	trend  *service.TrendService

	closers []io.Closer
}

// New opens the configured backend and share guard and sets up the routes.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	var (
		deps    Deps
		closers []io.Closer
	)

	// === BACKEND ===
	// Both implementations satisfy backend.Backend, so nothing past this
	// switch knows which one is running.
	switch cfg.Backend {
	case config.BackendSupabase:
		deps.Backend = supabase.New(supabase.Config{
			URL:     cfg.SupabaseURL,
			AnonKey: cfg.SupabaseAnonKey,
			Timeout: cfg.BackendTimeout,
		})
	default:
		if dir := filepath.Dir(cfg.DBPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating database directory: %w", err)
			}
		}
		db, err := sqlite.New(cfg.DBPath, sqlite.WithPublicBaseURL(cfg.PublicBaseURL))
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		deps.Backend = db
		closers = append(closers, db)
	}

	// === SHARE GUARD ===
	// redis.NewClient does not dial; the first command does. Ping forces that
	// now so a wrong REDIS_ADDR fails at startup rather than on the first
	// share request.
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := client.Ping(ctx).Err()
		cancel()
		if err != nil {
			client.Close()
			closeAll(closers, logger)
			return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.RedisAddr, err)
		}
		deps.Guard = guard.NewRedis(client, "medhistory:share:", shareGuardTTL, logger)
		closers = append(closers, client)
	}

	s, err := NewWithDeps(cfg, logger, deps)
	if err != nil {
		closeAll(closers, logger)
		return nil, err
	}
	s.closers = closers
	return s, nil
}

// NewWithDeps builds a server on the given collaborators. A nil Guard means
// an in-process guard.
func NewWithDeps(cfg *config.Config, logger *slog.Logger, deps Deps) (*Server, error) {
	if deps.Backend == nil {
		return nil, errors.New("server: a backend is required")
	}
	if deps.Guard == nil {
		deps.Guard = guard.NewMemory()
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		deps:   deps,
	}
	if err := s.setupRoutes(); err != nil {
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

// Handler exposes the router, for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

//
// MIDDLEWARE ORDER:
// router.Use runs middleware in registration order:
//  1. RequestID: assigns an id (or keeps X-Request-Id) for the log line
//  2. RealIP: sets RemoteAddr from X-Forwarded-For / X-Real-IP
//  3. Logger: logs status and duration once the handler returns
//  4. Recoverer: turns a handler panic into a 500 that Logger still sees
//
// RequireAuth is mounted only on the /api sub-router, so /healthz and the
// public storage URLs stay open.
func (s *Server) setupRoutes() error {
	tokens, err := auth.NewTokenService(s.config.JWTSecret, s.config.JWTIssuer)
	if err != nil {
		return err
	}

	be := s.deps.Backend
	profiles := service.NewProfileService(be, s.logger)
	records := service.NewRecordService(be, s.logger)
	vitals := service.NewVitalsService(be, s.logger)
	trends := service.NewTrendService(vitals, s.logger)
	insights := service.NewInsightService(vitals, s.logger)
	share := service.NewShareService(be, be, s.deps.Guard, s.config.StorageBucket, s.config.ShareTTL, s.logger)
	account := service.NewAccountService(be, profiles, records, vitals, s.config.PublicBaseURL, s.logger)

	// hooks instead of imports: services stay unaware of each other
	vitals.OnChange(trends.Invalidate)
	account.OnDelete(trends.Forget)
	s.trend = trends

	profileHandler := handler.NewProfileHandler(profiles, s.logger)
	recordHandler := handler.NewRecordHandler(records, s.logger)
	vitalsHandler := handler.NewVitalsHandler(vitals, trends, insights, s.logger)
	shareHandler := handler.NewShareHandler(profiles, share, s.logger)
	accountHandler := handler.NewAccountHandler(account, s.logger)

	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	s.router.Get("/healthz", handler.HandleHealth)

	// The embedded backend's public URLs point back at this server.
	if objects, ok := be.(handler.ObjectReader); ok {
		storageHandler := handler.NewStorageHandler(objects, s.logger)
		s.router.Get("/storage/{bucket}/*", storageHandler.HandleObject)
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Use(auth.RequireAuth(tokens))

		r.Get("/profile", profileHandler.HandleGet)
		r.Put("/profile", profileHandler.HandleUpdate)

		r.Get("/records", recordHandler.HandleList)
		r.Post("/records", recordHandler.HandleCreate)

		r.Get("/vitals", vitalsHandler.HandleList)
		r.Post("/vitals", vitalsHandler.HandleCreate)
		r.Get("/vitals/trend", vitalsHandler.HandleTrend)
		r.Get("/vitals/trend.png", vitalsHandler.HandleTrendPNG)
		r.Get("/vitals/trend.svg", vitalsHandler.HandleTrendSVG)
		r.Get("/insights", vitalsHandler.HandleInsights)

		r.Post("/share", shareHandler.HandleCreate)

		r.Get("/emergency-link", accountHandler.HandleEmergencyLink)
		r.Get("/export.xlsx", accountHandler.HandleExport)
		r.Delete("/account", accountHandler.HandleDelete)
	})

	return nil
}

// Start serves until the process is told to stop, then drains in-flight
// requests and background chart refreshes and closes the backend.
//
// GRACEFUL SHUTDOWN:
// ListenAndServe blocks, so it runs in a goroutine and reports through
// serverErrors. The main goroutine waits on whichever comes first: that
// error or a signal. On a signal, Shutdown stops accepting connections and
// waits (up to 30s) for in-flight requests; then trend.Wait lets background
// chart refreshes finish; the deferred closeAll closes the database and the
// Redis client last.
func (s *Server) Start() error {
	defer closeAll(s.closers, s.logger)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// buffered: signal.Notify drops signals it cannot deliver immediately
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("backend", s.config.Backend),
			slog.String("public_url", s.config.PublicBaseURL),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.trend.Wait()
		s.logger.Info("server stopped gracefully")
	}

	return nil
}

// closeAll closes in reverse order of opening, like a stack of defers.
func closeAll(closers []io.Closer, logger *slog.Logger) {
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil {
			logger.Warn("close failed", slog.String("error", err.Error()))
		}
	}
}
