package conversation

import (
	"github.com/rs/zerolog/log"

	"github.com/Ananth-NQI/outreach-engine/internal/models"
)

// ScheduleReminder arms the one-shot nudge for handle unless one is already
// armed, was already sent, or the contact has replied.
func (e *Engine) ScheduleReminder(handle string) {
	s, ok := e.sessions.Get(handle)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.replied || s.reminderSent || s.reminder != nil {
		return
	}
	s.reminderSeq++
	seq := s.reminderSeq
	s.reminder = e.clock.AfterFunc(e.opts.ReminderWindow, func() {
		e.remind(s, seq)
	})
	log.Debug().Str("handle", handle).Dur("after", e.opts.ReminderWindow).Msg("reminder armed")
}

// CancelReminder disarms the reminder for handle, if any.
func (e *Engine) CancelReminder(handle string) {
	s, ok := e.sessions.Get(handle)
	if !ok {
		return
	}
	s.mu.Lock()
	s.cancelReminderLocked()
	s.mu.Unlock()
}

// cancelReminderLocked stops the timer and invalidates its token, so a
// callback that already started sees a stale sequence. Caller holds s.mu.
func (s *Session) cancelReminderLocked() {
	if s.reminder == nil {
		return
	}
	s.reminder.Stop()
	s.reminder = nil
	s.reminderSeq++
	log.Debug().Str("handle", s.Handle).Msg("reminder cancelled")
}

// remind re-checks every flag at fire time before sending.
func (e *Engine) remind(s *Session, seq uint64) {
	if !e.enter() {
		return
	}
	defer e.wg.Done()

	s.mu.Lock()
	if s.reminderSeq != seq || s.replied || s.reminderSent {
		s.mu.Unlock()
		return
	}
	s.reminder = nil
	s.reminderSent = true
	s.mu.Unlock()

	text := e.opts.Script.Reminder
	if err := e.messenger.SendMessage(e.ctx, s.Handle, text); err != nil {
		log.Error().Err(err).Str("handle", s.Handle).Msg("reminder delivery failed")
		return
	}
	turn := models.ChatMessage{Role: models.RoleAssistant, Content: text}
	s.mu.Lock()
	s.history = append(s.history, turn)
	s.mu.Unlock()

	log.Info().Str("handle", s.Handle).Msg("reminder sent")
	e.recordStats(e.ctx, s)
	e.transcript(s.Handle, turn)
}
