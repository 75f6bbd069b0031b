package models

import "time"

// RadioStateID is the primary key of the single radio_state row. The table
// holds exactly one logical record, updated in place.
const RadioStateID uint = 1

// RadioState is the shared radio singleton. Version increases by one on
// every accepted update; writers must submit the version they last observed,
// and a stale version is rejected so the losing writer learns about the
// conflict instead of silently overwriting the newer state.
type RadioState struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	YoutubeID string    `json:"youtube_id"`
	StartedAt time.Time `json:"started_at"`
	UpdatedBy uint      `json:"updated_by"`
	Version   uint64    `gorm:"not null;default:0" json:"version"`
}

// TableName pins the singleton to the singular radio_state table.
func (RadioState) TableName() string { return "radio_state" }
