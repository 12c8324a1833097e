package conversation

import (
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/Ananth-NQI/outreach-engine/internal/models"
)

// enqueue appends turn to the buffer and restarts the debounce window.
// Replacing the timer happens under s.mu, so at most one is live.
func (e *Engine) enqueue(s *Session, turn models.ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.buffer = append(s.buffer, turn)
	if s.debounce != nil {
		s.debounce.Stop()
	}
	s.debounceSeq++
	seq := s.debounceSeq
	s.debounce = e.clock.AfterFunc(e.opts.DebounceWindow, func() {
		e.flush(s, seq)
	})
	log.Debug().Str("handle", s.Handle).Int("buffered", len(s.buffer)).Msg("debounce armed")
}

// flush runs one reply cycle for the buffered messages, unless a newer
// message re-armed the timer after this one fired.
func (e *Engine) flush(s *Session, seq uint64) {
	if !e.enter() {
		return
	}
	defer e.wg.Done()

	s.turnMu.Lock()
	defer s.turnMu.Unlock()

	s.mu.Lock()
	if s.debounceSeq != seq {
		s.mu.Unlock()
		return
	}
	s.debounce = nil
	batch := s.buffer
	s.buffer = nil
	if len(batch) == 0 {
		s.mu.Unlock()
		return
	}
	s.history = append(s.history, batch...)
	history := append([]models.ChatMessage(nil), s.history...)
	s.mu.Unlock()

	log.Info().Str("handle", s.Handle).Int("batch", len(batch)).Msg("debounce window elapsed, generating reply")

	reply, err := e.completer.Generate(e.ctx, history)
	if err != nil {
		log.Warn().Err(err).Str("handle", s.Handle).Msg("sending fallback reply")
	}
	if reply == "" {
		reply = e.opts.Script.Fallback
	}

	sent := []models.ChatMessage{}
	if e.deliver(s, reply) {
		sent = append(sent, models.ChatMessage{Role: models.RoleAssistant, Content: reply})
		if err == nil {
			for _, text := range e.followUps(reply) {
				if e.deliver(s, text) {
					sent = append(sent, models.ChatMessage{Role: models.RoleAssistant, Content: text})
				}
			}
		}
	}

	e.recordStats(e.ctx, s)
	e.transcript(s.Handle, sent...)
}

// deliver sends one bot message and records it in the session history.
func (e *Engine) deliver(s *Session, text string) bool {
	if err := e.messenger.SendMessage(e.ctx, s.Handle, text); err != nil {
		log.Error().Err(err).Str("handle", s.Handle).Msg("reply delivery failed")
		return false
	}
	marker := e.opts.Script.SensitiveMarker

	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, models.ChatMessage{Role: models.RoleAssistant, Content: text})
	s.messageCount++
	if marker != "" && strings.Contains(text, marker) {
		s.sensitiveSent = true
	}
	s.lastActive = e.clock.Now()
	return true
}

func (e *Engine) followUps(reply string) []string {
	lower := strings.ToLower(reply)
	var out []string
	for _, f := range e.opts.Script.FollowUps {
		if f.Trigger != "" && strings.Contains(lower, strings.ToLower(f.Trigger)) {
			out = append(out, f.Text)
		}
	}
	return out
}
