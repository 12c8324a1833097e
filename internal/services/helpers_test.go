package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/Ananth-NQI/outreach-engine/internal/models"
	"github.com/Ananth-NQI/outreach-engine/internal/storage"
)

func TestGreeter_SubstitutesName(t *testing.T) {
	g := NewGreeter([]string{"{name}, hello!", "Hi {name}"})
	g.pick = func(int) int { return 1 }

	assert.Equal(t, "Hi Alice", g.Greeting(models.Contact{Handle: "+1555", DisplayName: " Alice "}))
	assert.Equal(t, "Hi +1555", g.Greeting(models.Contact{Handle: "+1555"}))
	assert.Empty(t, NewGreeter(nil).Greeting(models.Contact{Handle: "x"}))
}

func TestTranscriptWriter_Appends(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "dialogs")
	w, err := NewTranscriptWriter(dir)
	require.NoError(t, err)

	w.Append("+1 555/0100", models.ChatMessage{Role: models.RoleAssistant, Content: "hello"})
	w.Append("+1 555/0100", models.ChatMessage{Role: models.RoleUser, Content: "hi"})

	raw, err := os.ReadFile(filepath.Join(dir, "+1%20555%2F0100.txt"))
	require.NoError(t, err)
	assert.Equal(t, "Assistant: hello\n\nUser: hi\n\n", string(raw))

	var nilWriter *TranscriptWriter
	nilWriter.Append("x", models.ChatMessage{Role: "user", Content: "ignored"})
}

func TestTranscriptWriter_DistinctHandlesDistinctFiles(t *testing.T) {
	dir := t.TempDir()
	w, err := NewTranscriptWriter(dir)
	require.NoError(t, err)

	handles := []string{"a.b", "a_b", "a b", "a/b", "a:b"}
	for _, h := range handles {
		w.Append(h, models.ChatMessage{Role: models.RoleUser, Content: h})
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, len(handles))
	for _, h := range handles {
		raw, err := os.ReadFile(w.path(h))
		require.NoError(t, err)
		assert.Equal(t, "User: "+h+"\n\n", string(raw))
	}
}

type failingStats struct{ storage.StatsStore }

func (failingStats) UpsertStats(context.Context, models.StatsUpdate) error {
	return storage.ErrStorageUnavailable
}

func (failingStats) GetStats(context.Context, string) (*models.ContactStats, error) {
	return nil, storage.ErrStorageUnavailable
}

func TestStatsRecorder(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	r := NewStatsRecorder(store)

	assert.Nil(t, r.Lookup(ctx, "+1"))
	r.Record(ctx, models.StatsUpdate{Handle: "+1", MessageCount: models.Int(2)})
	got := r.Lookup(ctx, "+1")
	require.NotNil(t, got)
	assert.Equal(t, 2, got.MessageCount)

	// Failures are swallowed.
	bad := NewStatsRecorder(failingStats{})
	bad.Record(ctx, models.StatsUpdate{Handle: "+1", Replied: models.Bool(true)})
	assert.Nil(t, bad.Lookup(ctx, "+1"))
}

type fakeCreator struct {
	params []*twilioApi.CreateMessageParams
	resp   *twilioApi.ApiV2010Message
	err    error
}

func (f *fakeCreator) CreateMessage(p *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error) {
	f.params = append(f.params, p)
	if f.err != nil {
		return nil, f.err
	}
	if f.resp != nil {
		return f.resp, nil
	}
	sid := "SM1"
	return &twilioApi.ApiV2010Message{Sid: &sid}, nil
}

func TestTwilioService_SendMessage(t *testing.T) {
	fc := &fakeCreator{}
	svc := &TwilioService{api: fc, from: "whatsapp:+14155238886"}

	require.NoError(t, svc.SendMessage(context.Background(), "+15550100", "hello"))
	require.Len(t, fc.params, 1)
	assert.Equal(t, "whatsapp:+15550100", *fc.params[0].To)
	assert.Equal(t, "whatsapp:+14155238886", *fc.params[0].From)
	assert.Equal(t, "hello", *fc.params[0].Body)

	fc.err = errors.New("network down")
	err := svc.SendMessage(context.Background(), "+15550100", "hello")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "+15550100"))
}

func TestTwilioService_ErrorCodeInResponse(t *testing.T) {
	code, msg := 63016, "outside window"
	fc := &fakeCreator{resp: &twilioApi.ApiV2010Message{ErrorCode: &code, ErrorMessage: &msg}}
	svc := &TwilioService{api: fc, from: "whatsapp:+1"}
	err := svc.SendMessage(context.Background(), "+2", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "63016")
}

func TestTwilioService_SendGreeting(t *testing.T) {
	fc := &fakeCreator{}
	svc := &TwilioService{api: fc, from: "whatsapp:+1"}
	ctx := context.Background()
	contact := models.Contact{Handle: "+15550100", DisplayName: "Alice"}

	require.NoError(t, svc.SendGreeting(ctx, contact, "Hi Alice"))
	require.Len(t, fc.params, 1)
	assert.Equal(t, "Hi Alice", *fc.params[0].Body)
	assert.Nil(t, fc.params[0].ContentSid)

	svc.UseGreetingTemplate("HX123")
	require.NoError(t, svc.SendGreeting(ctx, contact, "Hi Alice"))
	require.Len(t, fc.params, 2)
	assert.Equal(t, "HX123", *fc.params[1].ContentSid)
	assert.JSONEq(t, `{"1":"Alice"}`, *fc.params[1].ContentVariables)
	assert.Nil(t, fc.params[1].Body)
}

func TestNewTwilioService_RequiresCredentials(t *testing.T) {
	_, err := NewTwilioService("", "tok", "whatsapp:+1")
	assert.Error(t, err)
	assert.Equal(t, "+123", StripWhatsAppPrefix("whatsapp:+123"))
}
