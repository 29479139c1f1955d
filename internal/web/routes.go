package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/er587/wedding-gallery-application/internal/web/handlers"
	"github.com/er587/wedding-gallery-application/internal/web/middleware"
)

func (s *Server) setupRoutes() {
	// Create handlers
	peopleHandler := handlers.NewPeopleHandler(s.services.Tags.Registry())
	faceTagsHandler := handlers.NewFaceTagsHandler(s.services.Tags)
	moderationHandler := handlers.NewModerationHandler(s.services.Tags, s.services.Queue, s.services.Rebuilder)
	suggestionsHandler := handlers.NewSuggestionsHandler(s.services.Suggester, s.config.Detector.Timeout)
	overlayHandler := handlers.NewOverlayHandler(s.services.Tags)

	// Health check (no auth required)
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(s.sessionManager))

			// People
			r.Get("/people", peopleHandler.List)
			r.Post("/people", peopleHandler.Create)
			r.Get("/people/{id}", peopleHandler.Get)
			r.Put("/people/{id}", peopleHandler.Rename)
			r.Delete("/people/{id}", peopleHandler.Delete)

			// Images
			r.Post("/images/{id}/face-tags", faceTagsHandler.Submit)
			r.Get("/images/{id}/face-tags", faceTagsHandler.ListForImage)
			r.Get("/images/{id}/face-tags/approved", faceTagsHandler.ListApproved)
			r.Post("/images/{id}/detect", suggestionsHandler.Detect)
			r.Post("/images/{id}/suggestions", suggestionsHandler.Suggest)
			r.Get("/images/{id}/overlay", overlayHandler.ImageOverlay)

			// Face tags
			r.Get("/face-tags/{id}", faceTagsHandler.Get)
			r.Get("/face-tags/{id}/events", faceTagsHandler.Events)
			r.Post("/face-tags/{id}/approve", faceTagsHandler.Approve)
			r.Post("/face-tags/{id}/reject", faceTagsHandler.Reject)

			// Moderation
			r.Get("/moderation/queue", moderationHandler.Queue)
			r.Post("/moderation/bulk-approve", moderationHandler.BulkApprove)
			r.Post("/moderation/bulk-reject", moderationHandler.BulkReject)
			r.Post("/moderation/rebuild-index", moderationHandler.RebuildIndex)

			// Overlay
			r.Post("/overlay", overlayHandler.Render)
		})
	})
}
