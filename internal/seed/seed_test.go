package seed

import (
	"testing"

	"majlis/internal/database"
	"majlis/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func TestSeed(t *testing.T) {
	db := setupTestDB(t)

	err := Seed(db, Options{NumUsers: 5, NumPosts: 10, NumReels: 4, ShouldClean: true})
	require.NoError(t, err)

	var userCount, postCount, reelCount, messageCount int64
	db.Model(&models.User{}).Count(&userCount)
	db.Model(&models.Post{}).Count(&postCount)
	db.Model(&models.Reel{}).Count(&reelCount)
	db.Model(&models.Message{}).Count(&messageCount)

	assert.Equal(t, int64(5), userCount)
	assert.Equal(t, int64(10), postCount)
	assert.Equal(t, int64(4), reelCount)
	assert.Equal(t, int64(15), messageCount)

	// Every generated row must reference a real user.
	var orphanPosts int64
	db.Model(&models.Post{}).
		Where("user_id NOT IN (?)", db.Model(&models.User{}).Select("id")).
		Count(&orphanPosts)
	assert.Zero(t, orphanPosts)

	// The radio singleton survives seeding and points at a real station.
	var radio models.RadioState
	require.NoError(t, db.First(&radio, models.RadioStateID).Error)
	assert.NotEmpty(t, radio.YoutubeID)
	assert.NotZero(t, radio.UpdatedBy)
}

func TestSeed_CleanRemovesPreviousRun(t *testing.T) {
	db := setupTestDB(t)

	require.NoError(t, Seed(db, Options{NumUsers: 3, NumPosts: 5, NumReels: 2, ShouldClean: false}))
	require.NoError(t, Seed(db, Options{NumUsers: 3, NumPosts: 5, NumReels: 2, ShouldClean: true}))

	var userCount int64
	db.Model(&models.User{}).Count(&userCount)
	assert.Equal(t, int64(3), userCount)
}
