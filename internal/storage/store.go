package storage

import (
	"context"
	"errors"

	"github.com/Ananth-NQI/outreach-engine/internal/models"
)

var (
	// ErrStorageUnavailable wraps every failure talking to the backing store.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("not found")
)

// CursorStore persists campaign progress. Single writer per campaign.
type CursorStore interface {
	// GetPosition returns the campaign position, creating a zero row if absent.
	GetPosition(ctx context.Context, campaignID string) (int, error)
	// SetPosition overwrites the campaign position unconditionally.
	SetPosition(ctx context.Context, campaignID string, position int) error
}

// StatsStore persists per-contact interaction telemetry.
type StatsStore interface {
	UpsertStats(ctx context.Context, update models.StatsUpdate) error
	GetStats(ctx context.Context, handle string) (*models.ContactStats, error)
	StatsSummary(ctx context.Context) (*models.StatsSummary, error)
}

// Store defines the interface for storage operations
type Store interface {
	CursorStore
	StatsStore
	Ping(ctx context.Context) error
}

func conversionRate(sent, shared int64) float64 {
	if sent == 0 {
		return 0
	}
	return float64(shared) / float64(sent) * 100
}
