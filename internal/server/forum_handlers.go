package server

import (
	"strings"

	"majlis/internal/models"

	"github.com/gofiber/fiber/v2"
)

const (
	maxTitleLength   = 200
	maxContentLength = 10000
)

// GetPosts handles GET /api/forum/posts
func (s *Server) GetPosts(c *fiber.Ctx) error {
	posts, err := s.postRepo.List(c.Context())
	if err != nil {
		return respondRepoError(c, err)
	}
	return c.JSON(posts)
}

// GetPost handles GET /api/forum/posts/:id
func (s *Server) GetPost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	post, err := s.postRepo.GetByID(c.Context(), id)
	if err != nil {
		return respondRepoError(c, err)
	}
	return c.JSON(post)
}

// CreatePost handles POST /api/forum/posts
func (s *Server) CreatePost(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	var req struct {
		Title    string `json:"title"`
		Content  string `json:"content"`
		Category string `json:"category"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	req.Title = strings.TrimSpace(req.Title)
	req.Content = strings.TrimSpace(req.Content)
	if req.Title == "" || req.Content == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Title and content are required"))
	}
	if len(req.Title) > maxTitleLength {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Title is too long"))
	}
	if len(req.Content) > maxContentLength {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Content is too long"))
	}
	if req.Category == "" {
		req.Category = "general"
	}

	post := &models.Post{
		Title:    req.Title,
		Content:  req.Content,
		Category: req.Category,
		UserID:   userID,
	}
	if err := s.postRepo.Create(c.Context(), post); err != nil {
		return respondRepoError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(post)
}

// GetComments handles GET /api/forum/posts/:id/comments
func (s *Server) GetComments(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	comments, err := s.commentRepo.ListByPost(c.Context(), postID)
	if err != nil {
		return respondRepoError(c, err)
	}
	return c.JSON(comments)
}

// CreateComment handles POST /api/forum/posts/:id/comments
func (s *Server) CreateComment(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Content string `json:"content"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	req.Content = strings.TrimSpace(req.Content)
	if req.Content == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Content is required"))
	}
	if len(req.Content) > maxContentLength {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Content is too long"))
	}

	// Confirm the post exists so a bad ID surfaces as 404, not a dangling row.
	if _, err := s.postRepo.GetByID(c.Context(), postID); err != nil {
		return respondRepoError(c, err)
	}

	comment := &models.Comment{
		Content: req.Content,
		PostID:  postID,
		UserID:  userID,
	}
	if err := s.commentRepo.Create(c.Context(), comment); err != nil {
		return respondRepoError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(comment)
}
