// Package server sets up the HTTP server, router, and all route definitions.
//
// This package is the "wiring" layer: it connects the store, services,
// handlers and middleware, and owns startup and graceful shutdown.
//
// DEPENDENCY INJECTION FLOW:
//
//	config.Config → OpenStore → repository.SnippetRepository
//	                          → SnippetService → RawHandler, SnippetHandler, HealthHandler
//	credential    → AuthService → AuthHandler, RequireAuth
//
// All dependencies are wired in one place (New/setupRoutes), the
// "composition root", rather than scattered across the codebase.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/anuragaming1/anura-kun/internal/auth"
	"github.com/anuragaming1/anura-kun/internal/config"
	"github.com/anuragaming1/anura-kun/internal/handler"
	"github.com/anuragaming1/anura-kun/internal/middleware"
	"github.com/anuragaming1/anura-kun/internal/repository"
	"github.com/anuragaming1/anura-kun/internal/resolver"
	"github.com/anuragaming1/anura-kun/internal/service"
)

// Server represents the HTTP server and all its dependencies.
//
// The Server owns the store. Start closes it after the HTTP server has
// drained; callers that never Start must call Close.
type Server struct {
	router *chi.Mux
	config *config.Config
	logger *slog.Logger
	store  repository.SnippetRepository

	snippets *service.SnippetService
	auth     *service.AuthService
}

// New opens the configured store and wires every layer on top of it.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if err := cfg.RequireAdmin(); err != nil {
		return nil, err
	}
	logStartupWarnings(cfg, logger)

	authSvc, err := newAuthService(cfg, logger)
	if err != nil {
		return nil, err
	}

	store, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	s := &Server{
		router:   chi.NewRouter(),
		config:   cfg,
		logger:   logger,
		store:    store,
		snippets: service.NewSnippetService(store, logger, cfg.StoreTimeout),
		auth:     authSvc,
	}
	s.setupRoutes()

	return s, nil
}

// newAuthService hashes ADMIN_PASSWORD at startup when no precomputed
// ADMIN_PASSWORD_HASH is given, so the plaintext is not kept around.
func newAuthService(cfg *config.Config, logger *slog.Logger) (*service.AuthService, error) {
	passwords := auth.NewPasswordService()

	hash := cfg.AdminPasswordHash
	if hash == "" {
		var err error
		hash, err = passwords.Hash(cfg.AdminPassword)
		if err != nil {
			return nil, fmt.Errorf("server: hashing admin password: %w", err)
		}
	}

	tokens, err := auth.NewTokenService(cfg.SessionSecret, cfg.SessionTTL)
	if err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}

	return service.NewAuthService(cfg.AdminUsername, hash, passwords, tokens, logger), nil
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	GET    /raw/{slug}            → public raw body (fake or real)
//	GET    /api/health            → liveness + snippet count
//	POST   /api/login             → admin login, sets session cookie
//	POST   /api/logout            → clears session cookie
//	GET    /api/check-auth        → session state
//	--- admin session required ---
//	POST   /api/create            → create snippet
//	GET    /api/check/{slug}      → slug availability
//	GET    /api/snippets          → recent snippets (summaries)
//	DELETE /api/snippets/{slug}   → delete with secret key
//	GET    /api/search?q=         → substring search (summaries)
//	POST   /api/cleanup           → age-based cleanup
//	GET    /api/qr/{slug}         → QR code of the raw URL
//
// MIDDLEWARE ORDER MATTERS:
// RequestID first so the logger can read it; Recoverer inside Logger so a
// panic is still logged as a 500.
func (s *Server) setupRoutes() {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	rawHandler := handler.NewRawHandler(s.snippets, resolver.New(s.config.Resolver), s.logger)
	snippetHandler := handler.NewSnippetHandler(s.snippets, s.config.BaseURL, s.logger)
	authHandler := handler.NewAuthHandler(s.auth, s.config.CookieSecure, s.logger)
	healthHandler := handler.NewHealthHandler(s.snippets)

	// Empty slug: answered by the raw handler with 400.
	s.router.Get("/raw", rawHandler.HandleRaw)
	s.router.Get("/raw/", rawHandler.HandleRaw)
	s.router.Get("/raw/{slug}", rawHandler.HandleRaw)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/health", healthHandler.HandleHealth)
		r.Post("/login", authHandler.HandleLogin)
		r.Post("/logout", authHandler.HandleLogout)
		r.Get("/check-auth", authHandler.HandleCheckAuth)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(s.auth.Tokens()))

			r.Post("/create", snippetHandler.HandleCreate)
			r.Get("/check/{slug}", snippetHandler.HandleCheck)
			r.Get("/snippets", snippetHandler.HandleList)
			r.Delete("/snippets/{slug}", snippetHandler.HandleDelete)
			r.Get("/search", snippetHandler.HandleSearch)
			r.Post("/cleanup", snippetHandler.HandleCleanup)
			r.Get("/qr/{slug}", snippetHandler.HandleQR)
		})
	})
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler { return s.router }

// Close releases the store.
func (s *Server) Close() error { return s.store.Close() }

// Start serves HTTP until SIGINT or SIGTERM, then shuts down gracefully:
//  1. Stop accepting new connections
//  2. Wait up to 30s for in-flight requests
//  3. Close the store (flushes WAL, releases file locks)
func (s *Server) Start() error {
	defer s.store.Close()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("store", s.config.StoreDriver),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case <-ctx.Done():
		s.logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}

// logStartupWarnings reports configuration that works but is risky.
func logStartupWarnings(cfg *config.Config, logger *slog.Logger) {
	if cfg.SessionSecretGenerated {
		logger.Warn("SESSION_SECRET not set; using a random secret, sessions will not survive a restart")
	}
	if cfg.AdminPasswordHash == "" {
		logger.Warn("ADMIN_PASSWORD is plaintext in the environment; prefer ADMIN_PASSWORD_HASH")
	}
	if cfg.StoreDriver == config.DriverPostgres || cfg.DBPath == ":memory:" {
		return
	}
	if _, err := os.Stat(cfg.DBPath); errors.Is(err, os.ErrNotExist) {
		logger.Info("database file does not exist yet and will be created", slog.String("path", cfg.DBPath))
	}
}
