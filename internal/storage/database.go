package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Ananth-NQI/outreach-engine/internal/models"
)

// DatabaseStore implements Store on top of gorm (postgres in production,
// sqlite for local runs and tests).
type DatabaseStore struct {
	db *gorm.DB
}

// NewDatabaseStore wraps an open, migrated gorm connection.
func NewDatabaseStore(db *gorm.DB) *DatabaseStore {
	return &DatabaseStore{db: db}
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrStorageUnavailable, err)
}

func (d *DatabaseStore) GetPosition(ctx context.Context, campaignID string) (int, error) {
	cursor := models.CampaignCursor{CampaignID: campaignID}
	err := d.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "campaign_id"}}, DoNothing: true}).
		Create(&cursor).Error
	if err != nil {
		return 0, unavailable("init cursor "+campaignID, err)
	}

	var row models.CampaignCursor
	if err := d.db.WithContext(ctx).Where("campaign_id = ?", campaignID).First(&row).Error; err != nil {
		return 0, unavailable("get cursor "+campaignID, err)
	}
	return row.Position, nil
}

func (d *DatabaseStore) SetPosition(ctx context.Context, campaignID string, position int) error {
	if position < 0 {
		return fmt.Errorf("set position %d for %s: negative position", position, campaignID)
	}
	cursor := models.CampaignCursor{CampaignID: campaignID, Position: position, UpdatedAt: time.Now()}
	err := d.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "campaign_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"position", "updated_at"}),
		}).
		Create(&cursor).Error
	if err != nil {
		return unavailable("set cursor "+campaignID, err)
	}
	return nil
}

func (d *DatabaseStore) UpsertStats(ctx context.Context, update models.StatsUpdate) error {
	update.Handle = strings.TrimSpace(update.Handle)
	if update.Handle == "" {
		return fmt.Errorf("upsert stats: empty handle")
	}
	now := time.Now()
	row := models.ContactStats{CreatedAt: now, UpdatedAt: now}
	update.Apply(&row)

	cols := append(update.Columns(), "updated_at")
	err := d.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "handle"}},
			DoUpdates: clause.AssignmentColumns(cols),
		}).
		Create(&row).Error
	if err != nil {
		return unavailable("upsert stats "+update.Handle, err)
	}
	return nil
}

func (d *DatabaseStore) GetStats(ctx context.Context, handle string) (*models.ContactStats, error) {
	var row models.ContactStats
	err := d.db.WithContext(ctx).Where("handle = ?", handle).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("stats for %s: %w", handle, ErrNotFound)
	}
	if err != nil {
		return nil, unavailable("get stats "+handle, err)
	}
	return &row, nil
}

func (d *DatabaseStore) StatsSummary(ctx context.Context) (*models.StatsSummary, error) {
	summary := &models.StatsSummary{}
	counts := []struct {
		column string
		dst    *int64
	}{
		{"initial_message_sent", &summary.MessagesSent},
		{"replied", &summary.DialogsStarted},
		{"sensitive_info_sent", &summary.ContactsShared},
	}
	for _, c := range counts {
		err := d.db.WithContext(ctx).Model(&models.ContactStats{}).Where(c.column+" = ?", true).Count(c.dst).Error
		if err != nil {
			return nil, unavailable("count "+c.column, err)
		}
	}
	summary.ConversionRate = conversionRate(summary.MessagesSent, summary.ContactsShared)
	return summary, nil
}

func (d *DatabaseStore) Ping(ctx context.Context) error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return unavailable("ping", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}
