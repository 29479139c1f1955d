// Package web serves the face tagging JSON API.
package web

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/er587/wedding-gallery-application/internal/config"
	"github.com/er587/wedding-gallery-application/internal/database"
	"github.com/er587/wedding-gallery-application/internal/suggest"
	"github.com/er587/wedding-gallery-application/internal/tagging"
	"github.com/er587/wedding-gallery-application/internal/web/middleware"
)

// Services are the domain components the API exposes.
type Services struct {
	Tags      *tagging.Service
	Queue     *tagging.Queue
	Suggester *suggest.Suggester     // optional; detection endpoints answer 503 without it
	Rebuilder database.HNSWRebuilder // optional
}

// Options configure the HTTP layer.
type Options struct {
	Port           int
	Host           string
	SessionSecret  string
	AllowedOrigins string // comma-separated
}

// Validate reports options the server cannot run with.
func (o Options) Validate() error {
	if o.SessionSecret == "" {
		return errors.New("WEB_SESSION_SECRET environment variable is required")
	}
	if o.Port < 0 || o.Port > 65535 {
		return fmt.Errorf("invalid port %d", o.Port)
	}
	return nil
}

// Server represents the web server
type Server struct {
	config         *config.Config
	services       Services
	router         *chi.Mux
	httpServer     *http.Server
	sessionManager *middleware.SessionManager
	allowedOrigins map[string]struct{}
}

// NewServer creates a new web server
func NewServer(cfg *config.Config, services Services, opts Options) *Server {
	r := chi.NewRouter()

	s := &Server{
		config:         cfg,
		services:       services,
		router:         r,
		sessionManager: middleware.NewSessionManager(opts.SessionSecret),
		allowedOrigins: middleware.ParseAllowedOrigins(opts.AllowedOrigins),
	}

	// Set up middleware stack
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(2 * time.Minute))
	r.Use(middleware.CORS(s.allowedOrigins))
	r.Use(middleware.SecurityHeaders())

	// Set up routes
	s.setupRoutes()

	// Create HTTP server
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", opts.Host, opts.Port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 3 * time.Minute, // detection requests may be slow
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start starts the HTTP server
func (s *Server) Start() error {
	log.Printf("Starting web server on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down web server...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing
func (s *Server) Router() *chi.Mux {
	return s.router
}

// SessionManager returns the token signer used by the auth middleware
func (s *Server) SessionManager() *middleware.SessionManager {
	return s.sessionManager
}
