package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter wires the middleware stack and every route group.
func NewRouter(h *Handlers, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Tenant-ID"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", h.HealthCheck)

	// Provider callbacks stay outside /api: they authenticate by signature,
	// not by tenant header.
	r.Post("/webhooks/resend", h.ResendWebhook)

	r.Route("/api", func(r chi.Router) {
		r.Route("/campaigns", func(r chi.Router) {
			r.Get("/", h.ListCampaigns)
			r.Post("/", h.CreateCampaign)
			r.Get("/{id}", h.GetCampaign)
			r.Post("/{id}/send-batch", h.SendBatch)
			r.Post("/{id}/pause", h.PauseCampaign)
			r.Post("/{id}/resume", h.ResumeCampaign)
			r.Post("/{id}/cancel", h.CancelCampaign)
			r.Get("/{id}/logs", h.CampaignLogs)
			r.Get("/{id}/events", h.CampaignEvents)
		})

		r.Post("/emails/{id}/send", h.SendEmail)

		r.Route("/templates", func(r chi.Router) {
			r.Get("/", h.ListTemplates)
			r.Post("/", h.CreateTemplate)
			r.Post("/validate", h.ValidateTemplate)
			r.Get("/{id}", h.GetTemplate)
			r.Put("/{id}", h.UpdateTemplate)
		})

		r.Route("/settings", func(r chi.Router) {
			r.Get("/", h.ListSettings)
			r.Put("/{key}", h.SetSetting)
		})

		r.Route("/skills", func(r chi.Router) {
			r.Get("/", h.ListSkills)
			r.Post("/", h.CreateSkill)
			r.Get("/{id}", h.GetSkill)
			r.Put("/{id}", h.UpdateSkill)
			r.Delete("/{id}", h.DeleteSkill)
		})

		r.Route("/automations", func(r chi.Router) {
			r.Get("/", h.ListAutomations)
			r.Post("/scan", h.ScanAutomations)
			r.Post("/process", h.ProcessAutomations)
		})

		r.Get("/dashboard", h.Dashboard)

		r.Route("/dormant", func(r chi.Router) {
			r.Get("/sync", h.DormantSync)
			r.Post("/sync", h.DormantSyncRun)
		})

		r.Post("/chat", h.Chat)
	})

	return r
}
