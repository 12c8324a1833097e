// Package conversation owns per-contact conversation state and the timers
// that drive replies and reminders.
package conversation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Ananth-NQI/outreach-engine/internal/clock"
	"github.com/Ananth-NQI/outreach-engine/internal/config"
	"github.com/Ananth-NQI/outreach-engine/internal/models"
)

// ErrClosed is returned by operations attempted after Close.
var ErrClosed = errors.New("conversation engine closed")

// Messenger delivers outbound text to a contact. A context error means
// nothing was sent.
type Messenger interface {
	SendMessage(ctx context.Context, handle, text string) error
}

// GreetingSender is implemented by messengers that deliver first messages
// differently from replies, such as through an approved template.
type GreetingSender interface {
	SendGreeting(ctx context.Context, contact models.Contact, text string) error
}

// Completer produces a reply for a conversation history. On failure it still
// returns the text to send.
type Completer interface {
	Generate(ctx context.Context, history []models.ChatMessage) (string, error)
}

// StatsRecorder persists contact telemetry on a best-effort basis.
type StatsRecorder interface {
	Record(ctx context.Context, update models.StatsUpdate)
	Lookup(ctx context.Context, handle string) *models.ContactStats
}

// Transcripts stores a readable copy of each conversation.
type Transcripts interface {
	Append(handle string, turns ...models.ChatMessage)
}

// Options configures an Engine.
type Options struct {
	DebounceWindow time.Duration
	ReminderWindow time.Duration
	Script         config.Script
	Clock          clock.Clock
	Transcripts    Transcripts
}

// Engine coordinates sessions, debounced replies and reminders.
type Engine struct {
	messenger Messenger
	completer Completer
	stats     StatsRecorder
	opts      Options
	clock     clock.Clock
	sessions  *Table

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewEngine wires the engine. Timer callbacks run under an internal context
// that lives until Close.
func NewEngine(messenger Messenger, completer Completer, stats StatsRecorder, opts Options) *Engine {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.DebounceWindow <= 0 {
		opts.DebounceWindow = config.DefaultDebounceWindow
	}
	if opts.ReminderWindow <= 0 {
		opts.ReminderWindow = config.DefaultReminderWindow
	}
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		messenger: messenger,
		completer: completer,
		stats:     stats,
		opts:      opts,
		clock:     opts.Clock,
		ctx:       ctx,
		cancel:    cancel,
	}
	e.sessions = NewTable(opts.Clock, stats.Lookup)
	return e
}

// StartOutreach sends the greeting to contact, registers its session and arms
// the reminder. Stats are written whether or not delivery succeeded; the
// returned error is the delivery failure, if any. When ctx is done before the
// greeting goes out nothing is recorded and the context error is returned.
func (e *Engine) StartOutreach(ctx context.Context, contact models.Contact, greeting string) error {
	if !e.enter() {
		return ErrClosed
	}
	defer e.wg.Done()
	if err := ctx.Err(); err != nil {
		return err
	}

	s := e.sessions.GetOrCreate(ctx, contact.Handle)
	sendErr := e.sendGreeting(ctx, contact, greeting)
	if NotAttempted(sendErr) {
		return sendErr
	}

	turn := models.ChatMessage{Role: models.RoleAssistant, Content: greeting}
	s.mu.Lock()
	s.initialSent = true
	s.lastActive = e.clock.Now()
	if sendErr == nil {
		s.history = append(s.history, turn)
		s.messageCount++
	}
	s.mu.Unlock()

	if sendErr != nil {
		log.Error().Err(sendErr).Str("handle", contact.Handle).Msg("greeting delivery failed, manual follow-up needed")
	} else {
		e.ScheduleReminder(contact.Handle)
		e.transcript(contact.Handle, turn)
	}
	e.recordStats(ctx, s)
	return sendErr
}

// HandleInbound processes one message from a contact. The reminder is
// cancelled before anything else; unsupported media get an apology and never
// reach the debounce buffer.
func (e *Engine) HandleInbound(ctx context.Context, msg models.InboundMessage) error {
	if msg.Handle == "" {
		return errors.New("inbound message without sender")
	}
	if !e.enter() {
		return ErrClosed
	}
	defer e.wg.Done()

	s := e.sessions.GetOrCreate(ctx, msg.Handle)

	s.mu.Lock()
	firstReply := !s.replied
	s.replied = true
	s.lastActive = e.clock.Now()
	s.cancelReminderLocked()
	s.mu.Unlock()

	if firstReply {
		log.Info().Str("handle", msg.Handle).Msg("contact replied")
		e.recordStats(ctx, s)
	}

	if msg.Media.Unsupported() {
		e.apologize(ctx, msg.Handle, msg.Media)
		return nil
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		log.Debug().Str("handle", msg.Handle).Str("media", string(msg.Media)).Msg("inbound message without text ignored")
		return nil
	}
	turn := models.ChatMessage{Role: models.RoleUser, Content: text}
	e.enqueue(s, turn)
	e.transcript(msg.Handle, turn)
	return nil
}

// NotAttempted reports whether err from StartOutreach means the greeting was
// never handed to the messaging platform.
func NotAttempted(err error) bool {
	return errors.Is(err, ErrClosed) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

func (e *Engine) sendGreeting(ctx context.Context, contact models.Contact, text string) error {
	if gs, ok := e.messenger.(GreetingSender); ok {
		return gs.SendGreeting(ctx, contact, text)
	}
	return e.messenger.SendMessage(ctx, contact.Handle, text)
}

func (e *Engine) apologize(ctx context.Context, handle string, media models.MediaKind) {
	text := e.opts.Script.VoiceApology
	if media == models.MediaSticker {
		text = e.opts.Script.StickerApology
	}
	log.Info().Str("handle", handle).Str("media", string(media)).Msg("unsupported media")
	if err := e.messenger.SendMessage(ctx, handle, text); err != nil {
		log.Error().Err(err).Str("handle", handle).Msg("apology delivery failed")
	}
}

// Session returns a copy of the session for handle.
func (e *Engine) Session(handle string) (Snapshot, bool) {
	s, ok := e.sessions.Get(handle)
	if !ok {
		return Snapshot{}, false
	}
	return s.snapshot(), true
}

// ActiveSessions returns the number of sessions held in memory.
func (e *Engine) ActiveSessions() int {
	return e.sessions.Len()
}

// EvictIdle removes sessions idle for longer than ttl.
func (e *Engine) EvictIdle(ttl time.Duration) int {
	n := e.sessions.EvictIdle(ttl)
	if n > 0 {
		log.Info().Int("evicted", n).Int("remaining", e.sessions.Len()).Msg("idle sessions evicted")
	}
	return n
}

// RunEviction evicts idle sessions every interval until ctx is done. A
// non-positive ttl keeps sessions forever and returns immediately.
func (e *Engine) RunEviction(ctx context.Context, ttl, interval time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if interval <= 0 {
		interval = config.DefaultCleanupInterval
	}
	for {
		if err := e.clock.Sleep(ctx, interval); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		e.EvictIdle(ttl)
	}
}

// Close stops every armed timer and waits for in-flight work to finish.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.mu.Unlock()

	for _, s := range e.sessions.all() {
		s.mu.Lock()
		s.stopTimers()
		s.mu.Unlock()
	}
	e.cancel()
	e.wg.Wait()
}

func (e *Engine) enter() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false
	}
	e.wg.Add(1)
	return true
}

// recordStats writes the session's current counters. Snapshots for one
// session are written in the order they were taken.
func (e *Engine) recordStats(ctx context.Context, s *Session) {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	s.mu.Lock()
	update := s.statsUpdate()
	s.mu.Unlock()
	e.stats.Record(context.WithoutCancel(ctx), update)
}

func (e *Engine) transcript(handle string, turns ...models.ChatMessage) {
	if e.opts.Transcripts != nil {
		e.opts.Transcripts.Append(handle, turns...)
	}
}
