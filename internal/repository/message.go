// Package repository provides data access layer implementations for the application.
package repository

import (
	"context"

	"majlis/internal/models"

	"gorm.io/gorm"
)

// MessageRepository persists chat messages. Messages are written for the
// archive only; delivery happens over the realtime hub and there is no
// history read path.
type MessageRepository interface {
	Create(ctx context.Context, message *models.Message) error
}

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository creates a new MessageRepository
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Create(ctx context.Context, message *models.Message) error {
	if err := r.db.WithContext(ctx).Create(message).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}
