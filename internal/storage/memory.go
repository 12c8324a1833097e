package storage

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Ananth-NQI/outreach-engine/internal/models"
)

// MemoryStore holds all data in memory for tests and local runs
type MemoryStore struct {
	cursors map[string]int
	stats   map[string]*models.ContactStats

	// Mutexes for thread safety
	cursorMu sync.RWMutex
	statsMu  sync.RWMutex
}

// NewMemoryStore creates a new in-memory storage
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		cursors: make(map[string]int),
		stats:   make(map[string]*models.ContactStats),
	}
}

// Cursor operations
func (m *MemoryStore) GetPosition(_ context.Context, campaignID string) (int, error) {
	m.cursorMu.Lock()
	defer m.cursorMu.Unlock()

	pos, exists := m.cursors[campaignID]
	if !exists {
		m.cursors[campaignID] = 0
	}
	return pos, nil
}

func (m *MemoryStore) SetPosition(_ context.Context, campaignID string, position int) error {
	if position < 0 {
		return fmt.Errorf("set position %d for %s: negative position", position, campaignID)
	}
	m.cursorMu.Lock()
	defer m.cursorMu.Unlock()

	m.cursors[campaignID] = position
	return nil
}

// Stats operations
func (m *MemoryStore) UpsertStats(_ context.Context, update models.StatsUpdate) error {
	handle := strings.TrimSpace(update.Handle)
	if handle == "" {
		return fmt.Errorf("upsert stats: empty handle")
	}
	m.statsMu.Lock()
	defer m.statsMu.Unlock()

	now := time.Now()
	row, exists := m.stats[handle]
	if !exists {
		row = &models.ContactStats{Handle: handle, CreatedAt: now}
		m.stats[handle] = row
	}
	update.Handle = handle
	update.Apply(row)
	row.UpdatedAt = now
	return nil
}

func (m *MemoryStore) GetStats(_ context.Context, handle string) (*models.ContactStats, error) {
	m.statsMu.RLock()
	defer m.statsMu.RUnlock()

	row, exists := m.stats[handle]
	if !exists {
		return nil, fmt.Errorf("stats for %s: %w", handle, ErrNotFound)
	}
	cp := *row
	return &cp, nil
}

func (m *MemoryStore) StatsSummary(_ context.Context) (*models.StatsSummary, error) {
	m.statsMu.RLock()
	defer m.statsMu.RUnlock()

	summary := &models.StatsSummary{}
	for _, row := range m.stats {
		if row.InitialMessageSent {
			summary.MessagesSent++
		}
		if row.Replied {
			summary.DialogsStarted++
		}
		if row.SensitiveInfoSent {
			summary.ContactsShared++
		}
	}
	summary.ConversionRate = conversionRate(summary.MessagesSent, summary.ContactsShared)
	return summary, nil
}

func (m *MemoryStore) Ping(_ context.Context) error { return nil }
