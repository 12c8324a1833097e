package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ananth-NQI/outreach-engine/internal/models"
)

type scriptedChatter struct {
	replies []string
	errs    []error
	calls   [][]models.ChatMessage
}

func (s *scriptedChatter) Chat(_ context.Context, messages []models.ChatMessage) (string, error) {
	i := len(s.calls)
	s.calls = append(s.calls, messages)
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	if err != nil {
		return "", err
	}
	if i < len(s.replies) {
		return s.replies[i], nil
	}
	return "", nil
}

func newTestAdapter(t *testing.T, c Chatter) *CompletionAdapter {
	t.Helper()
	var slept []time.Duration
	a, err := NewCompletionAdapter(c, "be nice", "fallback text", testPolicy(3, &slept))
	require.NoError(t, err)
	return a
}

func TestCompletionAdapter_PrependsSystemPrompt(t *testing.T) {
	c := &scriptedChatter{replies: []string{"reply"}}
	a := newTestAdapter(t, c)

	history := []models.ChatMessage{
		{Role: models.RoleAssistant, Content: "greeting"},
		{Role: models.RoleUser, Content: "hi"},
	}
	text, err := a.Generate(context.Background(), history)
	require.NoError(t, err)
	assert.Equal(t, "reply", text)
	require.Len(t, c.calls, 1)
	require.Len(t, c.calls[0], 3)
	assert.Equal(t, models.ChatMessage{Role: models.RoleSystem, Content: "be nice"}, c.calls[0][0])
	assert.Equal(t, "greeting", history[0].Content, "history must not be mutated")
}

func TestCompletionAdapter_FallbackAfterRetries(t *testing.T) {
	rl := &CompletionError{Kind: RateLimited}
	c := &scriptedChatter{errs: []error{rl, rl, rl}}
	a := newTestAdapter(t, c)

	text, err := a.Generate(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, "fallback text", text)
	assert.Len(t, c.calls, 3)
}

func TestCompletionAdapter_InvalidRequestNoRetry(t *testing.T) {
	c := &scriptedChatter{errs: []error{&CompletionError{Kind: InvalidRequest}}}
	a := newTestAdapter(t, c)

	text, err := a.Generate(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, "fallback text", text)
	assert.Len(t, c.calls, 1)
}

func TestCompletionAdapter_EmptyReplyRetried(t *testing.T) {
	c := &scriptedChatter{replies: []string{"", "second"}}
	a := newTestAdapter(t, c)

	text, err := a.Generate(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "second", text)
}

func TestNewCompletionAdapter_RequiresFallback(t *testing.T) {
	_, err := NewCompletionAdapter(&scriptedChatter{}, "", "", DefaultRetryPolicy())
	assert.Error(t, err)
	_, err = NewCompletionAdapter(nil, "", "x", DefaultRetryPolicy())
	assert.Error(t, err)
}
