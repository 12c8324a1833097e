package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ananth-NQI/outreach-engine/internal/clock"
	"github.com/Ananth-NQI/outreach-engine/internal/conversation"
	"github.com/Ananth-NQI/outreach-engine/internal/models"
	"github.com/Ananth-NQI/outreach-engine/internal/storage"
)

const campaign = "script1_index"

type sliceFeed []models.Contact

func (f sliceFeed) Next(_ context.Context, pos int) (models.Contact, bool, error) {
	if pos < 0 || pos >= len(f) {
		return models.Contact{}, false, nil
	}
	return f[pos], true, nil
}

func contacts(n int) sliceFeed {
	out := make(sliceFeed, n)
	for i := range out {
		out[i] = models.Contact{Handle: fmt.Sprintf("+1555010%d", i), DisplayName: fmt.Sprintf("c%d", i)}
	}
	return out
}

type recordingOutreach struct {
	clock  *clock.Fake
	fail   map[string]bool
	onSend func()

	mu     sync.Mutex
	sent   []string
	sentAt []time.Time
}

func (r *recordingOutreach) StartOutreach(_ context.Context, c models.Contact, greeting string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, c.Handle+": "+greeting)
	r.sentAt = append(r.sentAt, r.clock.Now())
	if r.onSend != nil {
		r.onSend()
	}
	if r.fail[c.Handle] {
		return errors.New("delivery failed")
	}
	return nil
}

type nameGreeter struct{}

func (nameGreeter) Greeting(c models.Contact) string { return "hi " + c.DisplayName }

type brokenCursor struct {
	storage.CursorStore
	failGet, failSet bool
}

func (b brokenCursor) GetPosition(ctx context.Context, id string) (int, error) {
	if b.failGet {
		return 0, fmt.Errorf("get: %w", storage.ErrStorageUnavailable)
	}
	return b.CursorStore.GetPosition(ctx, id)
}

func (b brokenCursor) SetPosition(ctx context.Context, id string, pos int) error {
	if b.failSet {
		return fmt.Errorf("set: %w", storage.ErrStorageUnavailable)
	}
	return b.CursorStore.SetPosition(ctx, id, pos)
}

func start() time.Time { return time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC) }

func newPacer(cursor storage.CursorStore, feed ContactFeed, out *recordingOutreach, quota int) *Pacer {
	return NewPacer(cursor, feed, out, nameGreeter{}, PacerConfig{
		CampaignID: campaign,
		DailyQuota: quota,
		Spacing:    time.Hour,
		ResumeHour: 11,
		Clock:      out.clock,
	})
}

// runUntil runs the pacer in the background until it reaches want, then stops it.
func runUntil(t *testing.T, p *Pacer, want State) error {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	select {
	case err := <-done:
		return err
	case <-waitState(p, want):
	}
	cancel()
	return <-done
}

func waitState(p *Pacer, want State) <-chan struct{} {
	ch := make(chan struct{})
	go func() {
		defer close(ch)
		for p.State() != want {
			time.Sleep(time.Millisecond)
		}
	}()
	return ch
}

func TestPacer_QuotaAndSpacing(t *testing.T) {
	fake := clock.NewFake(start())
	store := storage.NewMemoryStore()
	out := &recordingOutreach{clock: fake}
	p := newPacer(store, contacts(6), out, 2)

	require.NoError(t, runUntil(t, p, StateExhausted))

	assert.Equal(t, []time.Duration{
		time.Hour, 25 * time.Hour,
		time.Hour, 23 * time.Hour,
		time.Hour, 23 * time.Hour,
	}, fake.Sleeps())
	assert.Equal(t, []time.Time{
		start(), start().Add(time.Hour),
		time.Date(2024, 3, 2, 11, 0, 0, 0, time.UTC), time.Date(2024, 3, 2, 12, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 3, 11, 0, 0, 0, time.UTC), time.Date(2024, 3, 3, 12, 0, 0, 0, time.UTC),
	}, out.sentAt)

	pos, err := store.GetPosition(context.Background(), campaign)
	require.NoError(t, err)
	assert.Equal(t, 6, pos)
}

func TestPacer_ExhaustedFeedLeavesCursor(t *testing.T) {
	fake := clock.NewFake(start())
	store := storage.NewMemoryStore()
	require.NoError(t, store.SetPosition(context.Background(), campaign, 2))
	out := &recordingOutreach{clock: fake}
	p := newPacer(store, contacts(2), out, 4)

	require.NoError(t, runUntil(t, p, StateExhausted))
	assert.Empty(t, out.sent)
	pos, err := store.GetPosition(context.Background(), campaign)
	require.NoError(t, err)
	assert.Equal(t, 2, pos)
}

func TestPacer_CursorAdvancesOncePerAttempt(t *testing.T) {
	fake := clock.NewFake(start())
	store := storage.NewMemoryStore()
	out := &recordingOutreach{clock: fake, fail: map[string]bool{"+15550101": true}}
	p := newPacer(store, contacts(4), out, 10)
	ctx := context.Background()

	for want := 1; want <= 4; want++ {
		ok, err := p.processNext(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		pos, err := store.GetPosition(ctx, campaign)
		require.NoError(t, err)
		assert.Equal(t, want, pos)
	}
	assert.Len(t, out.sent, 4)

	// A fresh pacer resumes where the last one stopped.
	again := newPacer(store, contacts(4), out, 10)
	ok, err := again.processNext(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Len(t, out.sent, 4)
}

func TestPacer_CursorFailureHalts(t *testing.T) {
	for _, tc := range []struct {
		name      string
		cursor    brokenCursor
		wantSends int
	}{
		{"read", brokenCursor{CursorStore: storage.NewMemoryStore(), failGet: true}, 0},
		{"write", brokenCursor{CursorStore: storage.NewMemoryStore(), failSet: true}, 1},
	} {
		t.Run(tc.name, func(t *testing.T) {
			out := &recordingOutreach{clock: clock.NewFake(start())}
			p := newPacer(tc.cursor, contacts(3), out, 4)

			err := p.Run(context.Background())
			require.Error(t, err)
			assert.ErrorIs(t, err, storage.ErrStorageUnavailable)
			assert.Equal(t, StateHalted, p.State())
			assert.Len(t, out.sent, tc.wantSends)
		})
	}
}

func TestPacer_StopsDuringCooldown(t *testing.T) {
	fake := clock.NewFake(start())
	store := storage.NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out := &recordingOutreach{clock: fake, onSend: cancel}
	p := newPacer(store, contacts(3), out, 4)

	assert.NoError(t, p.Run(ctx))
	assert.Len(t, out.sent, 1)
	assert.Equal(t, StateCooldown, p.State())

	pos, err := store.GetPosition(context.Background(), campaign)
	require.NoError(t, err)
	assert.Equal(t, 1, pos)
}

func TestPacer_CancelledBeforeSendKeepsContact(t *testing.T) {
	store := storage.NewMemoryStore()
	out := &recordingOutreach{clock: clock.NewFake(start())}
	p := newPacer(store, contacts(3), out, 4)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, p.Run(ctx))
	assert.Empty(t, out.sent)

	pos, err := store.GetPosition(context.Background(), campaign)
	require.NoError(t, err)
	assert.Equal(t, 0, pos)
}

type closedOutreach struct{ calls int }

func (c *closedOutreach) StartOutreach(context.Context, models.Contact, string) error {
	c.calls++
	return fmt.Errorf("start outreach: %w", conversation.ErrClosed)
}

func TestPacer_ClosedEngineKeepsContact(t *testing.T) {
	store := storage.NewMemoryStore()
	out := &closedOutreach{}
	p := NewPacer(store, contacts(3), out, nameGreeter{}, PacerConfig{
		CampaignID: campaign, DailyQuota: 4, Spacing: time.Hour, Clock: clock.NewFake(start()),
	})

	assert.NoError(t, p.Run(context.Background()))
	assert.Equal(t, 1, out.calls)
	assert.NotEqual(t, StateHalted, p.State())

	pos, err := store.GetPosition(context.Background(), campaign)
	require.NoError(t, err)
	assert.Equal(t, 0, pos)
}

func TestNextResume(t *testing.T) {
	loc := time.FixedZone("MSK", 3*60*60)
	cases := []struct {
		now  time.Time
		want time.Time
	}{
		{time.Date(2024, 3, 1, 9, 0, 0, 0, loc), time.Date(2024, 3, 2, 11, 0, 0, 0, loc)},
		{time.Date(2024, 3, 1, 23, 59, 0, 0, loc), time.Date(2024, 3, 2, 11, 0, 0, 0, loc)},
		{time.Date(2024, 12, 31, 15, 0, 0, 0, loc), time.Date(2025, 1, 1, 11, 0, 0, 0, loc)},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, nextResume(tc.now, 11))
	}
}
