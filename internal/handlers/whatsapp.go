package handlers

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/Ananth-NQI/outreach-engine/internal/conversation"
	"github.com/Ananth-NQI/outreach-engine/internal/models"
	"github.com/Ananth-NQI/outreach-engine/internal/services"
)

// InboundHandler accepts messages from contacts.
type InboundHandler interface {
	HandleInbound(ctx context.Context, msg models.InboundMessage) error
}

// WhatsAppHandler handles WhatsApp webhook requests
type WhatsAppHandler struct {
	engine InboundHandler
}

// NewWhatsAppHandler creates a new WhatsApp handler
func NewWhatsAppHandler(engine InboundHandler) *WhatsAppHandler {
	return &WhatsAppHandler{engine: engine}
}

// TwilioWebhookPayload represents incoming WhatsApp message from Twilio
type TwilioWebhookPayload struct {
	MessageSid        string `form:"MessageSid"`
	AccountSid        string `form:"AccountSid"`
	From              string `form:"From"` // whatsapp:+15550100
	To                string `form:"To"`
	Body              string `form:"Body"`
	NumMedia          string `form:"NumMedia"`
	MediaUrl0         string `form:"MediaUrl0"`
	MediaContentType0 string `form:"MediaContentType0"`
	MessageStatus     string `form:"MessageStatus"`
}

// HandleWebhook processes incoming WhatsApp messages
func (h *WhatsAppHandler) HandleWebhook(c *fiber.Ctx) error {
	var payload TwilioWebhookPayload
	if err := c.BodyParser(&payload); err != nil {
		log.Warn().Err(err).Msg("invalid webhook payload")
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid webhook payload",
		})
	}

	// Status callbacks carry no sender message.
	if payload.From == "" || payload.MessageStatus != "" {
		return c.SendStatus(fiber.StatusOK)
	}

	msg := models.InboundMessage{
		Handle:     services.StripWhatsAppPrefix(payload.From),
		Text:       payload.Body,
		ReceivedAt: time.Now(),
	}
	if n, _ := strconv.Atoi(payload.NumMedia); n > 0 {
		msg.Media = mediaKind(payload.MediaContentType0)
	}
	log.Info().Str("handle", msg.Handle).Str("sid", payload.MessageSid).Str("media", string(msg.Media)).Msg("whatsapp message received")

	return h.dispatch(c, msg)
}

// TestWebhookPayload is the JSON body accepted by the development route.
type TestWebhookPayload struct {
	From    string `json:"from"`
	Message string `json:"message"`
	Media   string `json:"media"`
}

// HandleTestWebhook processes test WhatsApp messages (for development)
func (h *WhatsAppHandler) HandleTestWebhook(c *fiber.Ctx) error {
	var payload TestWebhookPayload
	if err := c.BodyParser(&payload); err != nil || payload.From == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid test payload",
		})
	}
	msg := models.InboundMessage{
		Handle:     services.StripWhatsAppPrefix(payload.From),
		Text:       payload.Message,
		Media:      models.MediaKind(payload.Media),
		ReceivedAt: time.Now(),
	}
	return h.dispatch(c, msg)
}

func (h *WhatsAppHandler) dispatch(c *fiber.Ctx, msg models.InboundMessage) error {
	if err := h.engine.HandleInbound(c.UserContext(), msg); err != nil {
		if errors.Is(err, conversation.ErrClosed) {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "shutting down"})
		}
		log.Error().Err(err).Str("handle", msg.Handle).Msg("inbound message rejected")
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	return c.SendStatus(fiber.StatusOK)
}

// mediaKind maps a Twilio media content type to the kinds the engine knows.
func mediaKind(contentType string) models.MediaKind {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	switch {
	case ct == "":
		return models.MediaNone
	case strings.HasPrefix(ct, "audio/"):
		return models.MediaVoice
	case strings.HasPrefix(ct, "video/"):
		return models.MediaVideoNote
	case ct == "image/webp":
		return models.MediaSticker
	default:
		return models.MediaOther
	}
}
