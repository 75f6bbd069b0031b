package models

import "time"

// Message is a global-chat message. Messages are persisted for durability
// but only ever delivered live over the websocket; there is no history
// retrieval endpoint, so a client that was offline when a message was sent
// never sees it.
type Message struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	User      *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
