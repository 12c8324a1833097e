package handlers

import (
	"errors"
	"net/url"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/Ananth-NQI/outreach-engine/internal/models"
	"github.com/Ananth-NQI/outreach-engine/internal/storage"
)

type AnalyticsHandler struct {
	store storage.StatsStore
}

func NewAnalyticsHandler(store storage.StatsStore) *AnalyticsHandler {
	return &AnalyticsHandler{
		store: store,
	}
}

// GetSummary returns the campaign dashboard figures.
func (h *AnalyticsHandler) GetSummary(c *fiber.Ctx) error {
	summary, err := h.store.StatsSummary(c.UserContext())
	if err != nil {
		log.Error().Err(err).Msg("stats summary failed")
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "stats unavailable"})
	}
	return c.JSON(summary)
}

func (h *AnalyticsHandler) GetContact(c *fiber.Ctx) error {
	handle, err := url.PathUnescape(c.Params("handle"))
	if err != nil || handle == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid handle"})
	}
	stats, err := h.store.GetStats(c.UserContext(), handle)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "contact not found"})
	case err != nil:
		log.Error().Err(err).Str("handle", handle).Msg("stats lookup failed")
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "stats unavailable"})
	}
	return c.JSON(stats)
}

// ContactUpdateRequest carries the manually maintained qualification fields.
type ContactUpdateRequest struct {
	Qualification      *string `json:"qualification"`
	Summary            *string `json:"summary"`
	MonthlyBudget      *int    `json:"monthly_budget"`
	ConsultationAgreed *bool   `json:"consultation_agreed"`
}

// UpdateContact sets qualification fields without touching the counters
// owned by the conversation engine.
func (h *AnalyticsHandler) UpdateContact(c *fiber.Ctx) error {
	handle, err := url.PathUnescape(c.Params("handle"))
	if err != nil || handle == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid handle"})
	}
	var req ContactUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	if req.MonthlyBudget != nil && *req.MonthlyBudget < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "monthly_budget must not be negative"})
	}
	update := models.StatsUpdate{
		Handle:             handle,
		Qualification:      req.Qualification,
		Summary:            req.Summary,
		MonthlyBudget:      req.MonthlyBudget,
		ConsultationAgreed: req.ConsultationAgreed,
	}
	if len(update.Columns()) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "no fields to update"})
	}

	ctx := c.UserContext()
	if err := h.store.UpsertStats(ctx, update); err != nil {
		log.Error().Err(err).Str("handle", handle).Msg("contact update failed")
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "stats unavailable"})
	}
	stats, err := h.store.GetStats(ctx, handle)
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "stats unavailable"})
	}
	return c.JSON(stats)
}
