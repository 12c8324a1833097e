package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Ananth-NQI/outreach-engine/internal/clock"
	"github.com/Ananth-NQI/outreach-engine/internal/conversation"
	"github.com/Ananth-NQI/outreach-engine/internal/models"
	"github.com/Ananth-NQI/outreach-engine/internal/storage"
)

// State is the outreach pacer's position in its loop.
type State string

const (
	StateIdle              State = "IDLE"
	StateFetching          State = "FETCHING"
	StateSending           State = "SENDING"
	StateCooldown          State = "COOLDOWN"
	StateDailyLimitReached State = "DAILY_LIMIT_REACHED"
	StateExhausted         State = "EXHAUSTED"
	StateHalted            State = "HALTED"
)

// errStopped ends the loop without advancing the cursor.
var errStopped = errors.New("outreach stopped before sending")

// ContactFeed yields the contact at a campaign position.
type ContactFeed interface {
	Next(ctx context.Context, position int) (models.Contact, bool, error)
}

// Outreach delivers the first message to a contact and starts its conversation.
type Outreach interface {
	StartOutreach(ctx context.Context, contact models.Contact, greeting string) error
}

// Greeter composes the first message for a contact.
type Greeter interface {
	Greeting(contact models.Contact) string
}

// PacerConfig holds the campaign's pacing rules.
type PacerConfig struct {
	CampaignID string
	DailyQuota int
	Spacing    time.Duration
	ResumeHour int
	Clock      clock.Clock
}

// Pacer walks the contact feed for one campaign, greeting one contact at a
// time within the daily quota.
type Pacer struct {
	cursor   storage.CursorStore
	feed     ContactFeed
	outreach Outreach
	greeter  Greeter
	cfg      PacerConfig
	clock    clock.Clock

	mu        sync.RWMutex
	state     State
	sentToday int
}

// NewPacer creates a pacer for cfg.CampaignID.
func NewPacer(cursor storage.CursorStore, feed ContactFeed, outreach Outreach, greeter Greeter, cfg PacerConfig) *Pacer {
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	return &Pacer{
		cursor:   cursor,
		feed:     feed,
		outreach: outreach,
		greeter:  greeter,
		cfg:      cfg,
		clock:    cfg.Clock,
		state:    StateIdle,
	}
}

// State returns the current loop state.
func (p *Pacer) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// SentToday returns the number of contacts greeted since the last quota reset.
func (p *Pacer) SentToday() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.sentToday
}

func (p *Pacer) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

// Run drives the campaign until ctx is cancelled. Once the feed is exhausted
// it stays idle so in-flight conversations keep being served. A cursor
// failure halts the campaign and is returned.
func (p *Pacer) Run(ctx context.Context) error {
	logger := log.With().Str("campaign", p.cfg.CampaignID).Logger()
	logger.Info().Int("daily_quota", p.cfg.DailyQuota).Dur("spacing", p.cfg.Spacing).Msg("outreach pacer started")

	for {
		processed, err := p.processNext(ctx)
		if err != nil {
			if errors.Is(err, errStopped) || ctx.Err() != nil {
				logger.Info().Msg("outreach pacer stopped")
				return nil
			}
			p.setState(StateHalted)
			logger.Error().Err(err).Msg("campaign halted")
			return err
		}
		if !processed {
			p.setState(StateExhausted)
			logger.Info().Msg("contact feed exhausted, idling")
			<-ctx.Done()
			return nil
		}

		p.mu.Lock()
		p.sentToday++
		sent := p.sentToday
		p.mu.Unlock()

		if p.cfg.DailyQuota > 0 && sent >= p.cfg.DailyQuota {
			p.setState(StateDailyLimitReached)
			now := p.clock.Now()
			resume := nextResume(now, p.cfg.ResumeHour)
			logger.Info().Int("sent", sent).Time("resume_at", resume).Msg("daily limit reached")
			if err := p.clock.Sleep(ctx, resume.Sub(now)); err != nil {
				return nil
			}
			p.mu.Lock()
			p.sentToday = 0
			p.mu.Unlock()
			continue
		}

		p.setState(StateCooldown)
		if err := p.clock.Sleep(ctx, p.cfg.Spacing); err != nil {
			return nil
		}
	}
}

// processNext greets the contact at the cursor and advances the cursor by
// one. It reports false when the feed has no contact at the cursor.
func (p *Pacer) processNext(ctx context.Context) (bool, error) {
	p.setState(StateFetching)
	pos, err := p.cursor.GetPosition(ctx, p.cfg.CampaignID)
	if err != nil {
		return false, fmt.Errorf("read cursor: %w", err)
	}
	contact, ok, err := p.feed.Next(ctx, pos)
	if err != nil {
		return false, fmt.Errorf("read contact %d: %w", pos, err)
	}
	if !ok {
		return false, nil
	}

	// Shutting down: leave the contact at the cursor for the next run.
	if err := ctx.Err(); err != nil {
		return false, errStopped
	}

	p.setState(StateSending)
	logger := log.With().Str("campaign", p.cfg.CampaignID).Str("handle", contact.Handle).Int("position", pos).Logger()
	err = p.outreach.StartOutreach(ctx, contact, p.greeter.Greeting(contact))
	switch {
	case conversation.NotAttempted(err):
		logger.Info().Err(err).Msg("greeting not sent, contact kept for next run")
		return false, errStopped
	case err != nil:
		logger.Error().Err(err).Msg("greeting failed, contact marked as processed for manual follow-up")
	default:
		logger.Info().Msg("greeting sent")
	}

	// The attempt is finished, so the advance must land even during shutdown.
	if err := p.cursor.SetPosition(context.WithoutCancel(ctx), p.cfg.CampaignID, pos+1); err != nil {
		return false, fmt.Errorf("advance cursor to %d: %w", pos+1, err)
	}
	return true, nil
}

// nextResume returns hour:00 on the day after now, in now's location.
func nextResume(now time.Time, hour int) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day()+1, hour, 0, 0, 0, now.Location())
}

