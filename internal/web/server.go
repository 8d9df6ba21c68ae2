// Package web hosts the HTTP API in front of the durable queue and the
// identity store.
package web

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/tomashavel/faceforge/internal/database"
	"github.com/tomashavel/faceforge/internal/web/handlers"
)

// Server represents the web server.
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	jobs       *handlers.JobHandler
	identities *handlers.IdentityHandler
}

// NewServer creates a new web server over the given store.
func NewServer(store database.Store, host string, port int) *Server {
	r := chi.NewRouter()

	s := &Server{
		router:     r,
		jobs:       handlers.NewJobHandler(store),
		identities: handlers.NewIdentityHandler(store, store, store),
	}

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(5 * time.Minute))

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", host, port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // long timeout for SSE
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	log.Printf("Starting web server on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down web server...")
	return s.httpServer.Shutdown(ctx)
}
