package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cliniccompass/cliniccompass-backend/internal/handlers"
	"github.com/cliniccompass/cliniccompass-backend/internal/middleware"
)

// SetupRoutes registers the API on r. aiLimit guards the endpoints that
// call the language model; pass nil to leave them unlimited.
func SetupRoutes(r chi.Router, h *handlers.Handler, auth middleware.Authenticator, aiLimit func(http.Handler) http.Handler) {
	if aiLimit == nil {
		aiLimit = func(next http.Handler) http.Handler { return next }
	}

	// Health check (no auth, no limit)
	r.Get("/health", handlers.Health)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(auth))

		// Public routes
		r.Post("/api/auth/signup", h.Signup)
		r.Post("/api/auth/login", h.Login)
		r.Post("/api/auth/logout", h.Logout)
		r.Get("/api/auth/session", h.Session)
		r.Get("/api/i18n/{lang}", h.Dictionary)
		r.Get("/api/chat/quick-questions", h.QuickQuestions)

		// Signed-in routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireUser)

			r.Put("/api/me/language", h.SetLanguage)
			r.Get("/api/dashboard", h.Dashboard)

			r.Route("/api/medications", func(r chi.Router) {
				r.Get("/", h.ListMedications)
				r.Post("/", h.AddMedication)
				r.Put("/{id}", h.UpdateMedication)
				r.Delete("/{id}", h.DeleteMedication)
			})

			r.Route("/api/visits", func(r chi.Router) {
				r.Get("/", h.ListVisits)
				r.Post("/", h.AddVisit)
				r.Put("/{id}", h.UpdateVisit)
				r.Delete("/{id}", h.DeleteVisit)
				r.Post("/{id}/complete", h.CompleteVisit)
			})

			r.Get("/api/clinics", h.Clinics)

			// Model-backed routes
			r.With(aiLimit).Post("/api/triage", h.Triage)
			r.With(aiLimit).Post("/api/chat", h.Chat)
			r.With(aiLimit).Get("/ws/chat", h.ChatWebSocket)
		})
	})
}
