package services

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/Ananth-NQI/outreach-engine/internal/models"
	"github.com/Ananth-NQI/outreach-engine/internal/storage"
)

// StatsRecorder writes contact telemetry on a best-effort basis.
type StatsRecorder struct {
	store storage.StatsStore
}

func NewStatsRecorder(store storage.StatsStore) *StatsRecorder {
	return &StatsRecorder{store: store}
}

// Record upserts update. Failures are logged and swallowed.
func (r *StatsRecorder) Record(ctx context.Context, update models.StatsUpdate) {
	if err := r.store.UpsertStats(ctx, update); err != nil {
		log.Error().Err(err).Str("handle", update.Handle).Msg("stats write failed")
	}
}

// Lookup returns the stored stats for handle, or nil when there are none or
// the store cannot be reached.
func (r *StatsRecorder) Lookup(ctx context.Context, handle string) *models.ContactStats {
	stats, err := r.store.GetStats(ctx, handle)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			log.Warn().Err(err).Str("handle", handle).Msg("stats lookup failed")
		}
		return nil
	}
	return stats
}
