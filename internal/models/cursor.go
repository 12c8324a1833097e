package models

import "time"

// CampaignCursor points at the next unprocessed contact of a campaign.
type CampaignCursor struct {
	ID         uint      `json:"-" gorm:"primaryKey"`
	CampaignID string    `json:"campaign_id" gorm:"uniqueIndex;size:255;not null"`
	Position   int       `json:"position" gorm:"default:0;not null"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (CampaignCursor) TableName() string { return "campaign_cursors" }
