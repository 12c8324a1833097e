package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/Ananth-NQI/outreach-engine/internal/config"
	"github.com/Ananth-NQI/outreach-engine/internal/handlers"
	"github.com/Ananth-NQI/outreach-engine/internal/middleware"
	"github.com/Ananth-NQI/outreach-engine/internal/storage"
)

// Dependencies are the collaborators the HTTP surface needs.
type Dependencies struct {
	Config   *config.Config
	Store    storage.Store
	Inbound  handlers.InboundHandler
	Sessions handlers.SessionCounter
	Pacer    handlers.PacerStatus
	Version  string
}

// SetupRoutes configures all API routes
func SetupRoutes(app *fiber.App, deps Dependencies) {
	cfg := deps.Config

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "Outreach engine",
			"version": deps.Version,
			"endpoints": fiber.Map{
				"health":   "/health",
				"stats":    "/api/stats",
				"contacts": "/api/contacts/:handle",
				"webhook":  "/webhook/whatsapp",
			},
		})
	})

	health := handlers.NewHealthHandler(deps.Version, cfg.CampaignID, deps.Store, deps.Pacer, deps.Sessions)
	app.Get("/health", health.Check)

	analytics := handlers.NewAnalyticsHandler(deps.Store)
	api := app.Group("/api")
	api.Get("/stats", analytics.GetSummary)
	api.Get("/contacts/:handle", analytics.GetContact)
	api.Put("/contacts/:handle", analytics.UpdateContact)

	whatsapp := handlers.NewWhatsAppHandler(deps.Inbound)
	webhooks := app.Group("/webhook")
	if cfg.IsDevelopment() || cfg.DisableWebhookValidation {
		webhooks.Post("/whatsapp", whatsapp.HandleWebhook)
		log.Warn().Str("environment", cfg.Environment).Msg("whatsapp webhook signature validation disabled")
	} else {
		webhooks.Post("/whatsapp", middleware.ValidateTwilioSignature(cfg.TwilioAuthToken, cfg.PublicURL), whatsapp.HandleWebhook)
	}

	if cfg.IsDevelopment() {
		app.Post("/test/inbound", whatsapp.HandleTestWebhook)
	}
}
