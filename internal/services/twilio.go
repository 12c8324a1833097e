package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/Ananth-NQI/outreach-engine/internal/models"
)

// messageCreator is the slice of the Twilio REST API the service uses.
type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// TwilioService delivers outbound WhatsApp messages.
type TwilioService struct {
	api  messageCreator
	from string // Format: "whatsapp:+14155238886"

	// greetingContentSID is an approved content template used for the first
	// message, which WhatsApp requires outside the 24h customer service window.
	greetingContentSID string
}

// NewTwilioService creates a new Twilio service instance
func NewTwilioService(accountSID, authToken, from string) (*TwilioService, error) {
	if accountSID == "" || authToken == "" || from == "" {
		return nil, errors.New("missing Twilio credentials")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})

	return &TwilioService{api: client.Api, from: from}, nil
}

// UseGreetingTemplate makes SendGreeting deliver the given content template
// instead of free text.
func (t *TwilioService) UseGreetingTemplate(contentSID string) {
	t.greetingContentSID = contentSID
}

// SendGreeting delivers the first message to a contact. With a greeting
// template configured the contact's name is passed as variable "1".
func (t *TwilioService) SendGreeting(ctx context.Context, contact models.Contact, text string) error {
	if t.greetingContentSID == "" {
		return t.SendMessage(ctx, contact.Handle, text)
	}
	name := strings.TrimSpace(contact.DisplayName)
	if name == "" {
		name = contact.Handle
	}
	return t.SendTemplate(ctx, contact.Handle, t.greetingContentSID, map[string]string{"1": name})
}

// SendTemplate sends a WhatsApp content template with its variables.
func (t *TwilioService) SendTemplate(ctx context.Context, handle, contentSID string, variables map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	params := &twilioApi.CreateMessageParams{}
	params.SetFrom(t.from)
	params.SetTo(whatsAppAddress(handle))
	params.SetContentSid(contentSID)
	if len(variables) > 0 {
		variablesJSON, err := json.Marshal(variables)
		if err != nil {
			return fmt.Errorf("failed to marshal content variables: %w", err)
		}
		params.SetContentVariables(string(variablesJSON))
	}
	return t.create(handle, params)
}

// SendMessage sends a WhatsApp text message to handle (an E.164 number).
func (t *TwilioService) SendMessage(ctx context.Context, handle, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	params := &twilioApi.CreateMessageParams{}
	params.SetFrom(t.from)
	params.SetTo(whatsAppAddress(handle))
	params.SetBody(text)
	return t.create(handle, params)
}

func (t *TwilioService) create(handle string, params *twilioApi.CreateMessageParams) error {
	resp, err := t.api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("send whatsapp message to %s: %w", handle, err)
	}
	if resp.ErrorCode != nil && *resp.ErrorCode != 0 {
		msg := ""
		if resp.ErrorMessage != nil {
			msg = *resp.ErrorMessage
		}
		return fmt.Errorf("twilio error %d: %s", *resp.ErrorCode, msg)
	}

	sid := ""
	if resp.Sid != nil {
		sid = *resp.Sid
	}
	log.Debug().Str("handle", handle).Str("sid", sid).Msg("whatsapp message sent")
	return nil
}

func whatsAppAddress(handle string) string {
	if strings.HasPrefix(handle, "whatsapp:") {
		return handle
	}
	return "whatsapp:" + handle
}

// StripWhatsAppPrefix turns a Twilio "whatsapp:+123" address into the bare handle.
func StripWhatsAppPrefix(addr string) string {
	return strings.TrimPrefix(addr, "whatsapp:")
}
