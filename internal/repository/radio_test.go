package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"majlis/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestRadioRepository_Get(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewRadioRepository(db)
	ctx := context.Background()

	rows := sqlmock.NewRows([]string{"id", "youtube_id", "started_at", "updated_by", "version"}).
		AddRow(1, "dQw4w9WgXcQ", time.Now(), 7, 3)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "radio_state" WHERE "radio_state"."id" = $1 ORDER BY "radio_state"."id" LIMIT $2`)).
		WithArgs(1, 1).
		WillReturnRows(rows)

	state, err := repo.Get(ctx)
	assert.NoError(t, err)
	if assert.NotNil(t, state) {
		assert.Equal(t, "dQw4w9WgXcQ", state.YoutubeID)
		assert.Equal(t, uint64(3), state.Version)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRadioRepository_UpdateCAS(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewRadioRepository(db)

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE "radio_state" SET`)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		rows := sqlmock.NewRows([]string{"id", "youtube_id", "started_at", "updated_by", "version"}).
			AddRow(1, "abc123def45", time.Now(), 9, 4)
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "radio_state" WHERE "radio_state"."id" = $1 ORDER BY "radio_state"."id" LIMIT $2`)).
			WithArgs(1, 1).
			WillReturnRows(rows)

		state, err := repo.UpdateCAS(ctx, "abc123def45", 9, 3)
		assert.NoError(t, err)
		if assert.NotNil(t, state) {
			assert.Equal(t, uint64(4), state.Version)
			assert.Equal(t, uint(9), state.UpdatedBy)
		}
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Version Conflict", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewRadioRepository(db)

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE "radio_state" SET`)).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		state, err := repo.UpdateCAS(ctx, "abc123def45", 9, 1)
		assert.ErrorIs(t, err, ErrRadioConflict)
		assert.Nil(t, state)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRadioRepository_Get_NotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewRadioRepository(db)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "radio_state"`)).
		WillReturnError(gorm.ErrRecordNotFound)

	state, err := repo.Get(ctx)
	assert.Error(t, err)
	assert.Nil(t, state)

	var appErr *models.AppError
	if assert.ErrorAs(t, err, &appErr) {
		assert.Equal(t, "NOT_FOUND", appErr.Code)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}
