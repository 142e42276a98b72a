package models

import "time"

// Influencer represents the influencers table. It holds identity and CRM
// fields only; analytics snapshots live in MongoDB.
type Influencer struct {
	ID          string   `gorm:"primaryKey;type:uuid"`
	DisplayName string   `gorm:"column:display_name"`
	Assignee    string   `gorm:"column:assignee"`
	Labels      []string `gorm:"column:labels;serializer:json"`
	Notes       string   `gorm:"column:notes"`
	// LegacyNotes is the old free-form blob mixing CRM notes and the
	// analytics cache. It is emptied once migrated.
	LegacyNotes *string `gorm:"column:legacy_notes"`

	Links []PlatformLink `gorm:"foreignKey:InfluencerID"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Influencer) TableName() string {
	return "influencers"
}

// PlatformLink represents the influencer_platform_links table
type PlatformLink struct {
	ID           uint    `gorm:"primaryKey"`
	InfluencerID string  `gorm:"column:influencer_id;type:uuid;uniqueIndex:idx_influencer_platform"`
	Platform     string  `gorm:"column:platform;uniqueIndex:idx_influencer_platform"`
	Username     string  `gorm:"column:username"`
	ExternalID   *string `gorm:"column:external_id"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (PlatformLink) TableName() string {
	return "influencer_platform_links"
}
