// Package repository provides data access layer implementations for the application.
package repository

import (
	"context"

	"majlis/internal/models"

	"gorm.io/gorm"
)

// ReelRepository defines interface for reel operations
type ReelRepository interface {
	Create(ctx context.Context, reel *models.Reel) error
	List(ctx context.Context) ([]*models.Reel, error)
}

type reelRepository struct {
	db *gorm.DB
}

// NewReelRepository creates a new ReelRepository
func NewReelRepository(db *gorm.DB) ReelRepository {
	return &reelRepository{db: db}
}

func (r *reelRepository) Create(ctx context.Context, reel *models.Reel) error {
	if err := r.db.WithContext(ctx).Create(reel).Error; err != nil {
		return models.NewInternalError(err)
	}
	if err := r.db.WithContext(ctx).Preload("User").First(reel, reel.ID).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// List returns all reels with their authors, newest first.
func (r *reelRepository) List(ctx context.Context) ([]*models.Reel, error) {
	var reels []*models.Reel
	err := r.db.WithContext(ctx).
		Preload("User").
		Order("created_at DESC").
		Find(&reels).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return reels, nil
}
