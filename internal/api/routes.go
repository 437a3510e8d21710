package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes wires every handler into the router.
func SetupRoutes(h *Handlers) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", h.HealthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Get("/stats", h.GetStats)

		r.Route("/campaigns", func(r chi.Router) {
			r.Get("/", h.ListCampaigns)
			r.Post("/", h.CreateCampaign)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetCampaign)
				r.Put("/", h.UpdateCampaign)
				r.Delete("/", h.DeleteCampaign)

				r.Post("/start", h.StartCampaign)
				r.Post("/pause", h.PauseCampaign)
				r.Post("/cancel", h.CancelCampaign)
				r.Get("/progress", h.GetProgress)

				r.Post("/recipients", h.AddRecipients)
				r.Post("/recipients/upload", h.UploadRecipients)
				r.Get("/recipients", h.ListRecipients)
				r.Get("/recipients/export", h.ExportRecipients)

				r.Get("/log", h.GetSendLog)
			})
		})

		r.Route("/providers", func(r chi.Router) {
			r.Get("/", h.ListProviders)
			r.Post("/", h.CreateProvider)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetProvider)
				r.Put("/", h.UpdateProvider)
				r.Delete("/", h.DeleteProvider)
				r.Post("/test", h.TestProvider)
				r.Post("/send-test", h.SendTest)
			})
		})

		r.Route("/suppressions", func(r chi.Router) {
			r.Get("/", h.ListSuppressions)
			r.Post("/", h.AddSuppression)
			r.Get("/export", h.ExportSuppressions)
			r.Delete("/{email}", h.RemoveSuppression)
		})

		r.Route("/bounces", func(r chi.Router) {
			r.Get("/", h.ListBounces)
			r.Post("/ingest", h.IngestBounce)
		})
	})

	return r
}
