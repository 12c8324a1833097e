package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/Ananth-NQI/outreach-engine/internal/jobs"
)

// Pinger checks the durable store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PacerStatus exposes the outreach loop state.
type PacerStatus interface {
	State() jobs.State
	SentToday() int
}

// SessionCounter reports live conversation sessions.
type SessionCounter interface {
	ActiveSessions() int
}

// HealthHandler handles health check requests
type HealthHandler struct {
	Version    string
	CampaignID string
	db         Pinger
	pacer      PacerStatus
	sessions   SessionCounter
}

// NewHealthHandler creates a new health handler. pacer may be nil when only
// the HTTP side is running.
func NewHealthHandler(version, campaignID string, db Pinger, pacer PacerStatus, sessions SessionCounter) *HealthHandler {
	return &HealthHandler{
		Version:    version,
		CampaignID: campaignID,
		db:         db,
		pacer:      pacer,
		sessions:   sessions,
	}
}

// Check returns the health status of the service
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	status, code := "OK", fiber.StatusOK
	database := "up"
	if err := h.db.Ping(ctx); err != nil {
		status, code = "DEGRADED", fiber.StatusServiceUnavailable
		database = err.Error()
	}

	body := fiber.Map{
		"status":          status,
		"service":         "outreach-engine",
		"version":         h.Version,
		"campaign":        h.CampaignID,
		"database":        database,
		"active_sessions": h.sessions.ActiveSessions(),
	}
	if h.pacer != nil {
		body["pacer_state"] = h.pacer.State()
		body["sent_today"] = h.pacer.SentToday()
	}
	return c.Status(code).JSON(body)
}
