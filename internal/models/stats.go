package models

import "time"

// StatsID is the primary key of the single stats row
const StatsID = 1

// Stats holds the global smile counter
type Stats struct {
	ID          uint      `gorm:"primaryKey" json:"-"`
	SmileCount  int64     `gorm:"not null;default:0" json:"smile_count"`
	LastUpdated time.Time `json:"last_updated"`
}

func (Stats) TableName() string {
	return "stats"
}

// Waitlist holds emails that asked for access before signup opened
type Waitlist struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Email     string    `gorm:"uniqueIndex;size:255;not null" json:"email"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (Waitlist) TableName() string {
	return "waitlist"
}
