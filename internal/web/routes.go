package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/tomashavel/faceforge/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	s.router.Get("/health", handlers.HealthCheck)

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/jobs", func(r chi.Router) {
			r.Post("/", s.jobs.Create)
			r.Get("/{jobId}", s.jobs.Get)
			r.Delete("/{jobId}", s.jobs.Cancel)
			r.Get("/{jobId}/events", s.jobs.Events)
		})

		r.Route("/identities", func(r chi.Router) {
			r.Get("/", s.identities.List)
			r.Get("/by-name/{name}", s.identities.GetByName)
			r.Get("/{identityId}", s.identities.Get)
			r.Get("/{identityId}/coverage", s.identities.Coverage)
			r.Get("/{identityId}/detections", s.identities.Detections)
			r.Get("/{identityId}/profile", s.identities.Profile)
		})
	})
}
