package conversation

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Ananth-NQI/outreach-engine/internal/clock"
	"github.com/Ananth-NQI/outreach-engine/internal/models"
)

// Session is the volatile per-contact conversation state. Fields below mu are
// guarded by it; no code holds mu across a network call.
type Session struct {
	ID     string
	Handle string

	// turnMu serializes reply cycles for one contact.
	turnMu sync.Mutex
	// statsMu orders stats snapshots with their writes.
	statsMu sync.Mutex

	mu            sync.Mutex
	buffer        []models.ChatMessage
	history       []models.ChatMessage
	replied       bool
	reminderSent  bool
	initialSent   bool
	sensitiveSent bool
	messageCount  int
	debounce      clock.Timer
	debounceSeq   uint64
	reminder      clock.Timer
	reminderSeq   uint64
	createdAt     time.Time
	lastActive    time.Time
}

// Snapshot is a read-only copy of a session.
type Snapshot struct {
	ID                 string
	Handle             string
	Buffered           []models.ChatMessage
	History            []models.ChatMessage
	Replied            bool
	ReminderSent       bool
	InitialMessageSent bool
	SensitiveInfoSent  bool
	MessageCount       int
	DebounceArmed      bool
	ReminderArmed      bool
	CreatedAt          time.Time
	LastActive         time.Time
}

func (s *Session) snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		ID:                 s.ID,
		Handle:             s.Handle,
		Buffered:           append([]models.ChatMessage(nil), s.buffer...),
		History:            append([]models.ChatMessage(nil), s.history...),
		Replied:            s.replied,
		ReminderSent:       s.reminderSent,
		InitialMessageSent: s.initialSent,
		SensitiveInfoSent:  s.sensitiveSent,
		MessageCount:       s.messageCount,
		DebounceArmed:      s.debounce != nil,
		ReminderArmed:      s.reminder != nil,
		CreatedAt:          s.createdAt,
		LastActive:         s.lastActive,
	}
}

// statsUpdate captures the fields the session owns. Flags are only written
// once set so a session that failed to hydrate cannot reset stored values.
// Caller holds s.mu.
func (s *Session) statsUpdate() models.StatsUpdate {
	u := models.StatsUpdate{
		Handle:       s.Handle,
		MessageCount: models.Int(s.messageCount),
	}
	if s.replied {
		u.Replied = models.Bool(true)
	}
	if s.sensitiveSent {
		u.SensitiveInfoSent = models.Bool(true)
	}
	if s.initialSent {
		u.InitialMessageSent = models.Bool(true)
	}
	return u
}

// stopTimers disarms both timers. Caller holds s.mu.
func (s *Session) stopTimers() {
	if s.debounce != nil {
		s.debounce.Stop()
		s.debounce = nil
		s.debounceSeq++
	}
	if s.reminder != nil {
		s.reminder.Stop()
		s.reminder = nil
		s.reminderSeq++
	}
}

// Table is the per-handle session registry.
type Table struct {
	clock   clock.Clock
	hydrate func(ctx context.Context, handle string) *models.ContactStats

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewTable creates an empty registry. hydrate may be nil.
func NewTable(clk clock.Clock, hydrate func(ctx context.Context, handle string) *models.ContactStats) *Table {
	return &Table{
		clock:    clk,
		hydrate:  hydrate,
		sessions: make(map[string]*Session),
	}
}

// Get returns the session for handle if one exists.
func (t *Table) Get(handle string) (*Session, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.sessions[handle]
	return s, ok
}

// GetOrCreate returns the session for handle, creating it from stored stats
// when absent. The stats lookup runs without holding the table lock.
func (t *Table) GetOrCreate(ctx context.Context, handle string) *Session {
	if s, ok := t.Get(handle); ok {
		return s
	}

	var stored *models.ContactStats
	if t.hydrate != nil {
		stored = t.hydrate(ctx, handle)
	}
	now := t.clock.Now()
	fresh := &Session{
		ID:         uuid.NewString(),
		Handle:     handle,
		createdAt:  now,
		lastActive: now,
	}
	if stored != nil {
		fresh.replied = stored.Replied
		fresh.messageCount = stored.MessageCount
		fresh.sensitiveSent = stored.SensitiveInfoSent
		fresh.initialSent = stored.InitialMessageSent
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.sessions[handle]; ok {
		return s
	}
	t.sessions[handle] = fresh
	log.Debug().Str("handle", handle).Str("session_id", fresh.ID).Bool("hydrated", stored != nil).Msg("session created")
	return fresh
}

// Len returns the number of live sessions.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sessions)
}

func (t *Table) all() []*Session {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*Session, 0, len(t.sessions))
	for _, s := range t.sessions {
		out = append(out, s)
	}
	return out
}

// EvictIdle drops sessions idle for longer than ttl that have no armed timer,
// no buffered input and no reply in progress. It returns the number removed.
func (t *Table) EvictIdle(ttl time.Duration) int {
	if ttl <= 0 {
		return 0
	}
	cutoff := t.clock.Now().Add(-ttl)

	t.mu.Lock()
	defer t.mu.Unlock()
	removed := 0
	for handle, s := range t.sessions {
		if !s.turnMu.TryLock() {
			continue
		}
		s.mu.Lock()
		idle := s.lastActive.Before(cutoff) && s.debounce == nil && s.reminder == nil && len(s.buffer) == 0
		s.mu.Unlock()
		s.turnMu.Unlock()
		if idle {
			delete(t.sessions, handle)
			removed++
		}
	}
	return removed
}
