// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer. It decides:
// - Which user store backs the service (Postgres or SQLite)
// - Which URL patterns map to which handler functions
// - What middleware runs on which routes
// - How the server starts and stops gracefully
//
// DEPENDENCY INJECTION FLOW:
//
//	config.Config → Server.New() opens:
//	  store (postgres.DB | sqlite.DB) → UserService ─┐
//	  FacebookValidator ─────────────────────────────┴→ AuthService
//	  AuthService → AuthHandler, auth.RequireUser/RequireAdmin
//	  UserService → UserHandler
//
// This is the "composition root" pattern: all dependencies are wired in one
// place, rather than scattered across the codebase.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sakif/fb-roster/internal/auth"
	"github.com/sakif/fb-roster/internal/config"
	"github.com/sakif/fb-roster/internal/handler"
	"github.com/sakif/fb-roster/internal/middleware"
	"github.com/sakif/fb-roster/internal/repository"
	postgresRepo "github.com/sakif/fb-roster/internal/repository/postgres"
	sqliteRepo "github.com/sakif/fb-roster/internal/repository/sqlite"
	"github.com/sakif/fb-roster/internal/service"
)

// Store is a user repository the server owns and must close on shutdown.
// Both postgres.DB and sqlite.DB satisfy it.
type Store interface {
	repository.UserRepository
	Close() error
}

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the store. Start closes it after the HTTP server has
// drained, so no in-flight request sees a closed pool.
type Server struct {
	router *chi.Mux
	config config.Config
	logger *slog.Logger
	store  Store
}

// New opens the configured store and builds a Server around it, validating
// tokens against the real Facebook Graph API.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", cfg.DBDriver, err)
	}

	validator := auth.NewFacebookValidator(cfg.FacebookGraphURL, cfg.FacebookTimeout, logger)
	return NewWithDeps(cfg, logger, store, validator), nil
}

// NewWithDeps builds a Server from an already-open store and a token
// validator. Tests use it to run the full router against SQLite and a fake
// Graph API.
func NewWithDeps(cfg config.Config, logger *slog.Logger, store Store, validator service.TokenValidator) *Server {
	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		store:  store,
	}
	s.setupRoutes(validator)
	return s
}

// openStore picks the repository implementation named by cfg.DBDriver.
//
// IMPORT ALIAS:
// repository/sqlite and repository/postgres are imported as sqliteRepo and
// postgresRepo so they don't read like the driver packages.
func openStore(ctx context.Context, cfg config.Config) (Store, error) {
	switch cfg.DBDriver {
	case config.DriverPostgres:
		db, err := postgresRepo.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return db, nil
	case config.DriverSQLite:
		if cfg.DBPath != ":memory:" {
			// os.MkdirAll is a no-op when the directory already exists.
			if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
				return nil, fmt.Errorf("creating database directory: %w", err)
			}
		}
		db, err := sqliteRepo.New(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unknown DB driver %q", cfg.DBDriver)
	}
}

// Handler exposes the router, for httptest servers.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// GET  /healthz           → store ping                       (public)
// POST /auth/facebook     → login / first signup             (public)
// GET  /me                → current user                     (any user)
// GET  /users             → list users, newest first         (admin)
// GET  /users/{id}        → one user                         (admin)
// PUT  /users/{id}/role   → set role to convenor or member   (admin)
//
// MIDDLEWARE ORDER MATTERS:
// 1. RequestID — assigns an xid to each request (for tracing)
// 2. RealIP — extracts real client IP from proxy headers
// 3. Logger — logs each request with timing info and the request id
// 4. Recoverer — catches panics and returns 500 instead of crashing
// 5. CORS — answers preflight requests from the SPA before auth runs
func (s *Server) setupRoutes(validator service.TokenValidator) {
	s.router.Use(middleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.config.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader},
		MaxAge:         300,
	}))

	// DEPENDENCY CHAIN:
	//   s.store → implements repository.UserRepository
	//   UserService receives the repository interface
	//   AuthService receives the validator and UserService
	//   Handlers and auth middleware receive the services
	userService := service.NewUserService(s.store, s.logger)
	authService := service.NewAuthService(validator, userService, s.logger)

	authHandler := handler.NewAuthHandler(authService, s.logger)
	userHandler := handler.NewUserHandler(userService, s.logger)
	healthHandler := handler.NewHealthHandler(s.store, s.logger)

	s.router.Get("/healthz", healthHandler.HandleHealth)
	s.router.Post("/auth/facebook", authHandler.HandleFacebookLogin)

	s.router.With(auth.RequireUser(authService, s.logger)).Get("/me", authHandler.HandleMe)

	s.router.Route("/users", func(r chi.Router) {
		r.Use(auth.RequireAdmin(authService, s.logger))
		r.Get("/", userHandler.HandleList)
		r.Get("/{id}", userHandler.HandleGet)
		r.Put("/{id}/role", userHandler.HandleSetRole)
	})
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new HTTP connections
// 2. Wait for in-flight requests to finish (30s timeout)
// 3. Close the store (drains the pgx pool, or flushes the SQLite WAL)
func (s *Server) Start() error {
	defer func() {
		if err := s.store.Close(); err != nil {
			s.logger.Error("closing store", slog.String("error", err.Error()))
		}
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("dbDriver", s.config.DBDriver),
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
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
