// Package repository provides data access layer implementations for the application.
package repository

import (
	"context"
	"errors"
	"time"

	"majlis/internal/cache"
	"majlis/internal/models"

	"gorm.io/gorm"
)

// ErrRadioConflict is returned when a radio update loses the version race to
// a concurrent writer. Callers report the conflict privately to the losing
// client rather than broadcasting it.
var ErrRadioConflict = errors.New("radio state version conflict")

// RadioRepository manages the single shared radio state row.
type RadioRepository interface {
	Get(ctx context.Context) (*models.RadioState, error)
	// UpdateCAS applies a compare-and-set update against expectedVersion and
	// returns the new state, or ErrRadioConflict if another writer won.
	UpdateCAS(ctx context.Context, youtubeID string, updatedBy uint, expectedVersion uint64) (*models.RadioState, error)
}

type radioRepository struct {
	db *gorm.DB
}

// NewRadioRepository creates a new RadioRepository
func NewRadioRepository(db *gorm.DB) RadioRepository {
	return &radioRepository{db: db}
}

func (r *radioRepository) Get(ctx context.Context) (*models.RadioState, error) {
	var state models.RadioState

	err := cache.Aside(ctx, cache.RadioStateKey, &state, cache.RadioTTL, func() error {
		if err := r.db.WithContext(ctx).First(&state, models.RadioStateID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("RadioState", models.RadioStateID)
			}
			return models.NewInternalError(err)
		}
		return nil
	})

	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (r *radioRepository) UpdateCAS(ctx context.Context, youtubeID string, updatedBy uint, expectedVersion uint64) (*models.RadioState, error) {
	now := time.Now()

	result := r.db.WithContext(ctx).
		Model(&models.RadioState{}).
		Where("id = ? AND version = ?", models.RadioStateID, expectedVersion).
		Updates(map[string]interface{}{
			"youtube_id": youtubeID,
			"started_at": now,
			"updated_by": updatedBy,
			"version":    gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return nil, models.NewInternalError(result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrRadioConflict
	}

	cache.InvalidateRadio(ctx)

	var state models.RadioState
	if err := r.db.WithContext(ctx).First(&state, models.RadioStateID).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return &state, nil
}
