package routes

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ananth-NQI/outreach-engine/internal/config"
	"github.com/Ananth-NQI/outreach-engine/internal/models"
	"github.com/Ananth-NQI/outreach-engine/internal/storage"
)

type countingInbound struct{ n int }

func (c *countingInbound) HandleInbound(context.Context, models.InboundMessage) error {
	c.n++
	return nil
}

func (c *countingInbound) ActiveSessions() int { return c.n }

func newApp(env string) (*fiber.App, *countingInbound) {
	inbound := &countingInbound{}
	app := fiber.New()
	SetupRoutes(app, Dependencies{
		Config:   &config.Config{Environment: env, CampaignID: "c1", TwilioAuthToken: "tok"},
		Store:    storage.NewMemoryStore(),
		Inbound:  inbound,
		Sessions: inbound,
		Version:  "test",
	})
	return app, inbound
}

func post(t *testing.T, app *fiber.App, path, contentType, body string) int {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, path, strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, contentType)
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp.StatusCode
}

func TestSetupRoutes_Production(t *testing.T) {
	app, inbound := newApp("production")

	assert.Equal(t, fiber.StatusUnauthorized,
		post(t, app, "/webhook/whatsapp", fiber.MIMEApplicationForm, "From=whatsapp%3A%2B1&Body=hi"))
	assert.Equal(t, fiber.StatusNotFound,
		post(t, app, "/test/inbound", fiber.MIMEApplicationJSON, `{"from":"+1","message":"hi"}`))
	assert.Zero(t, inbound.n)

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestSetupRoutes_Development(t *testing.T) {
	app, inbound := newApp("development")

	assert.Equal(t, fiber.StatusOK,
		post(t, app, "/webhook/whatsapp", fiber.MIMEApplicationForm, "From=whatsapp%3A%2B1&Body=hi"))
	assert.Equal(t, fiber.StatusOK,
		post(t, app, "/test/inbound", fiber.MIMEApplicationJSON, `{"from":"+1","message":"hi"}`))
	assert.Equal(t, 2, inbound.n)
}
