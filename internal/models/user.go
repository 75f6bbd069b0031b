// Package models contains data structures for the application's domain models.
package models

import (
	"time"

	"gorm.io/gorm"
)

// User represents a registered member of the Majlis platform.
type User struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Username  string         `gorm:"unique;not null" json:"username"`
	Email     string         `gorm:"unique;not null" json:"email"`
	Password  string         `gorm:"not null" json:"-"`
	Avatar    string         `json:"avatar"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	Posts     []Post         `gorm:"foreignKey:UserID" json:"posts,omitempty"`
}

// Profile is the aggregate returned by GET /api/profile.
type Profile struct {
	Username  string       `json:"username"`
	Email     string       `json:"email"`
	Avatar    string       `json:"avatar"`
	CreatedAt time.Time    `json:"created_at"`
	Stats     ProfileStats `json:"stats"`
}

// ProfileStats carries the per-user contribution counters shown on the profile page.
type ProfileStats struct {
	Posts    int64 `json:"posts"`
	Comments int64 `json:"comments"`
}
