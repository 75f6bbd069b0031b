package repository

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
)

func TestCommentRepository_ListByPost_OrdersOldestFirst(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewCommentRepository(db)
	ctx := context.Background()

	commentRows := sqlmock.NewRows([]string{"id", "content", "post_id", "user_id"}).
		AddRow(1, "first", 5, 2).
		AddRow(2, "second", 5, 3)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "comments" WHERE post_id = $1 AND "comments"."deleted_at" IS NULL ORDER BY created_at ASC`)).
		WithArgs(5).
		WillReturnRows(commentRows)

	userRows := sqlmock.NewRows([]string{"id", "username"}).
		AddRow(2, "amira").
		AddRow(3, "karim")
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE "users"."id" IN ($1,$2) AND "users"."deleted_at" IS NULL`)).
		WithArgs(2, 3).
		WillReturnRows(userRows)

	comments, err := repo.ListByPost(ctx, 5)
	assert.NoError(t, err)
	if assert.Len(t, comments, 2) {
		assert.Equal(t, "first", comments[0].Content)
		assert.Equal(t, "second", comments[1].Content)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}
