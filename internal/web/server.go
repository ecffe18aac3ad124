package web

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
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stylisten/stylisten/internal/auth"
	"github.com/stylisten/stylisten/internal/db"
	"github.com/stylisten/stylisten/internal/profile"
	"github.com/stylisten/stylisten/internal/styles"
)

// ServerConfig holds server dependencies and settings.
type ServerConfig struct {
	Addr     string
	Database *db.DB
	Profiles *profile.Service
	Catalog  *styles.Service
	OAuth    *auth.OAuth
	Logger   *slog.Logger

	// RequestTimeout bounds a single request, including a full profile
	// generation with its sync phase.
	RequestTimeout time.Duration
}

// Server is the Stylisten HTTP server.
type Server struct {
	router   chi.Router
	server   *http.Server
	handlers *Handlers
	log      *slog.Logger
}

// NewServer creates the HTTP server.
func NewServer(cfg ServerConfig) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 2 * time.Minute
	}

	handlers := NewHandlers(cfg.Database, cfg.Profiles, cfg.Catalog, cfg.OAuth, cfg.Logger)

	router := chi.NewRouter()

	s := &Server{
		router:   router,
		handlers: handlers,
		log:      cfg.Logger,
	}

	s.setupMiddleware(cfg.RequestTimeout)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware for the router.
func (s *Server) setupMiddleware(requestTimeout time.Duration) {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(requestTimeout))
	s.router.Use(middleware.Compress(5))
}

// setupRoutes configures the API routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handlers.Health)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Get("/auth/spotify/connect", s.handlers.Connect)
	s.router.Get("/auth/spotify/callback", s.handlers.Callback)

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/profile/{userID}/generate", s.handlers.GenerateProfile)
		r.Get("/profile/{userID}", s.handlers.GetProfile)

		r.Route("/styles", func(r chi.Router) {
			r.Get("/", s.handlers.ListStyles)
			r.Post("/", s.handlers.CreateStyle)
			r.Get("/{styleID}", s.handlers.GetStyle)
			r.Put("/{styleID}", s.handlers.UpdateStyle)
			r.Delete("/{styleID}", s.handlers.DeleteStyle)
		})

		r.Get("/genres/{genre}/styles", s.handlers.StylesForGenre)
	})
}

// Run starts the server and blocks until shutdown. It handles SIGINT
// and SIGTERM for graceful shutdown.
func (s *Server) Run() error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server listening", slog.String("addr", s.server.Addr))
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigCh:
		s.log.Info("shutting down", slog.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}
