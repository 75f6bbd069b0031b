// Package seed provides helpers to create test and demo data for the
// application database. These helpers are intended for development and
// testing only.
package seed

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"majlis/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// SeedPassword is the plaintext password shared by every generated user.
const SeedPassword = "Password123!aa"

// Options configuration for the seeder
type Options struct {
	NumUsers    int
	NumPosts    int
	NumReels    int
	ShouldClean bool
}

var categories = []string{
	"general", "music", "gaming", "food", "travel",
	"technology", "art", "sports", "books",
}

var youtubeIDs = []string{
	"dQw4w9WgXcQ", "9bZkp7q19f0", "3JZ_D3ELwOQ", "L_jWHffIx5E", "kXYiU_JCYtU",
}

// Seed populates the database with test data
func Seed(db *gorm.DB, opts Options) error {
	gofakeit.Seed(time.Now().UnixNano())
	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	log.Printf("🌱 Starting database seeding with %d users and %d posts...", opts.NumUsers, opts.NumPosts)

	if opts.ShouldClean {
		if err := clearData(db); err != nil {
			log.Println("⚠️  Warning: Could not clear all existing data, but continuing anyway...")
		}
	}

	users, err := createUsers(db, opts.NumUsers)
	if err != nil {
		return fmt.Errorf("failed to create users: %w", err)
	}
	log.Printf("✓ %d test users created", len(users))

	posts, err := createPosts(db, r, users, opts.NumPosts)
	if err != nil {
		return fmt.Errorf("failed to create posts: %w", err)
	}
	log.Printf("✓ %d posts created", len(posts))

	comments, err := createComments(db, r, users, posts)
	if err != nil {
		return fmt.Errorf("failed to create comments: %w", err)
	}
	log.Printf("✓ %d comments created", comments)

	reels, err := createReels(db, r, users, opts.NumReels)
	if err != nil {
		return fmt.Errorf("failed to create reels: %w", err)
	}
	log.Printf("✓ %d reels created", reels)

	messages, err := createMessages(db, r, users)
	if err != nil {
		return fmt.Errorf("failed to create messages: %w", err)
	}
	log.Printf("✓ %d chat messages archived", messages)

	if err := tuneRadio(db, r, users); err != nil {
		return fmt.Errorf("failed to tune radio: %w", err)
	}
	log.Println("✓ radio station tuned")

	return nil
}

// clearData removes generated rows. The radio_state singleton stays; it is
// updated in place by tuneRadio.
func clearData(db *gorm.DB) error {
	for _, model := range []interface{}{
		&models.Comment{}, &models.Message{}, &models.Reel{}, &models.Post{}, &models.User{},
	} {
		if err := db.Unscoped().Where("1 = 1").Delete(model).Error; err != nil {
			return err
		}
	}
	return nil
}

func createUsers(db *gorm.DB, count int) ([]*models.User, error) {
	// One hash shared across users; hashing per-user makes large seeds slow.
	hash, err := bcrypt.GenerateFromPassword([]byte(SeedPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	users := make([]*models.User, 0, count)
	for i := 0; i < count; i++ {
		username := fmt.Sprintf("%s_%s_%d", gofakeit.AdjectiveDescriptive(), gofakeit.NounAbstract(), i)
		user := &models.User{
			Username: username,
			Email:    fmt.Sprintf("%s@example.com", username),
			Password: string(hash),
			Avatar:   fmt.Sprintf("https://picsum.photos/seed/%s/200/200", gofakeit.UUID()),
		}
		if err := db.Create(user).Error; err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, nil
}

func createPosts(db *gorm.DB, r *rand.Rand, users []*models.User, count int) ([]*models.Post, error) {
	posts := make([]*models.Post, 0, count)
	for i := 0; i < count; i++ {
		author := users[r.Intn(len(users))]
		post := &models.Post{
			Title:     gofakeit.Sentence(5),
			Content:   gofakeit.Paragraph(1, 3, 5, "\n"),
			Category:  categories[r.Intn(len(categories))],
			UserID:    author.ID,
			CreatedAt: spreadBack(r, 60),
		}
		if err := db.Create(post).Error; err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, nil
}

func createComments(db *gorm.DB, r *rand.Rand, users []*models.User, posts []*models.Post) (int, error) {
	created := 0
	for _, post := range posts {
		for i := 0; i < r.Intn(6); i++ {
			comment := &models.Comment{
				Content:   gofakeit.Sentence(8 + r.Intn(10)),
				PostID:    post.ID,
				UserID:    users[r.Intn(len(users))].ID,
				CreatedAt: post.CreatedAt.Add(time.Duration(i+1) * time.Hour),
			}
			if err := db.Create(comment).Error; err != nil {
				return created, err
			}
			created++
		}
	}
	return created, nil
}

func createReels(db *gorm.DB, r *rand.Rand, users []*models.User, count int) (int, error) {
	for i := 0; i < count; i++ {
		reel := &models.Reel{
			URL:       fmt.Sprintf("https://videos.example.com/%s.mp4", gofakeit.UUID()),
			Caption:   gofakeit.Sentence(4),
			UserID:    users[r.Intn(len(users))].ID,
			CreatedAt: spreadBack(r, 30),
		}
		if err := db.Create(reel).Error; err != nil {
			return i, err
		}
	}
	return count, nil
}

func createMessages(db *gorm.DB, r *rand.Rand, users []*models.User) (int, error) {
	count := len(users) * 3
	for i := 0; i < count; i++ {
		msg := &models.Message{
			Content:   gofakeit.Sentence(6 + r.Intn(8)),
			UserID:    users[r.Intn(len(users))].ID,
			CreatedAt: spreadBack(r, 7),
		}
		if err := db.Create(msg).Error; err != nil {
			return i, err
		}
	}
	return count, nil
}

func tuneRadio(db *gorm.DB, r *rand.Rand, users []*models.User) error {
	dj := users[r.Intn(len(users))]
	return db.Model(&models.RadioState{}).
		Where("id = ?", models.RadioStateID).
		Updates(map[string]interface{}{
			"youtube_id": youtubeIDs[r.Intn(len(youtubeIDs))],
			"started_at": time.Now(),
			"updated_by": dj.ID,
			"version":    gorm.Expr("version + 1"),
		}).Error
}

// spreadBack returns a timestamp up to maxDays in the past for a realistic
// created_at distribution.
func spreadBack(r *rand.Rand, maxDays int) time.Time {
	daysBack := r.Intn(maxDays)
	hoursBack := r.Intn(24)
	minsBack := r.Intn(60)
	return time.Now().Add(-time.Duration(daysBack)*24*time.Hour -
		time.Duration(hoursBack)*time.Hour -
		time.Duration(minsBack)*time.Minute)
}
