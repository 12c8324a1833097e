package services

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/Ananth-NQI/outreach-engine/internal/models"
)

// Chatter is a raw completion service call.
type Chatter interface {
	Chat(ctx context.Context, messages []models.ChatMessage) (string, error)
}

// CompletionAdapter wraps a Chatter with the system prompt, the retry policy
// and the fallback reply. It never touches conversation state.
type CompletionAdapter struct {
	chatter      Chatter
	systemPrompt string
	fallback     string
	retry        RetryPolicy
}

// NewCompletionAdapter builds the adapter. fallback must be non-empty.
func NewCompletionAdapter(chatter Chatter, systemPrompt, fallback string, retry RetryPolicy) (*CompletionAdapter, error) {
	if chatter == nil {
		return nil, errors.New("completion: chatter must not be nil")
	}
	if fallback == "" {
		return nil, errors.New("completion: fallback text must not be empty")
	}
	return &CompletionAdapter{
		chatter:      chatter,
		systemPrompt: systemPrompt,
		fallback:     fallback,
		retry:        retry,
	}, nil
}

// Generate returns the reply for history. On failure it returns the fallback
// text together with the classified error.
func (a *CompletionAdapter) Generate(ctx context.Context, history []models.ChatMessage) (string, error) {
	messages := make([]models.ChatMessage, 0, len(history)+1)
	if a.systemPrompt != "" {
		messages = append(messages, models.ChatMessage{Role: models.RoleSystem, Content: a.systemPrompt})
	}
	messages = append(messages, history...)

	var reply string
	err := a.retry.Do(ctx, "completion", func(ctx context.Context) error {
		text, err := a.chatter.Chat(ctx, messages)
		if err != nil {
			return err
		}
		if text == "" {
			return &CompletionError{Kind: Unknown, Err: errors.New("empty reply")}
		}
		reply = text
		return nil
	})
	if err != nil {
		log.Error().Err(err).Str("kind", string(KindOf(err))).Msg("completion failed, using fallback reply")
		return a.fallback, err
	}
	return reply, nil
}
