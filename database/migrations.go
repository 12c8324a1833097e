package database

import (
	"fmt"

	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"

	"github.com/Ananth-NQI/outreach-engine/internal/models"
)

// Migrate brings the schema up to date.
func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "001_campaign_cursors",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&models.CampaignCursor{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("campaign_cursors")
			},
		},
		{
			ID: "002_contact_stats",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&models.ContactStats{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("contact_stats")
			},
		},
	})
	if err := m.Migrate(); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}
