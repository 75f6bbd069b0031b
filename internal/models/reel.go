package models

import (
	"time"

	"gorm.io/gorm"
)

// Reel is a short-form media entry. The media itself lives at an external
// URL; only the reference and caption are stored.
type Reel struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	URL       string         `gorm:"not null" json:"url"`
	Caption   string         `json:"caption"`
	UserID    uint           `gorm:"not null;index" json:"user_id"`
	User      User           `gorm:"foreignKey:UserID" json:"user"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
