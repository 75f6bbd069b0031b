package server

import (
	"strings"

	"majlis/internal/models"
	"majlis/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// GetProfile handles GET /api/profile
func (s *Server) GetProfile(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	user, err := s.userRepo.GetByID(c.Context(), userID)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusNotFound,
			&models.AppError{Code: "NOT_FOUND", Message: "المستخدم غير موجود"})
	}

	postCount, err := s.userRepo.CountPosts(c.Context(), userID)
	if err != nil {
		return respondRepoError(c, err)
	}
	commentCount, err := s.userRepo.CountComments(c.Context(), userID)
	if err != nil {
		return respondRepoError(c, err)
	}

	return c.JSON(models.Profile{
		Username:  user.Username,
		Email:     user.Email,
		Avatar:    user.Avatar,
		CreatedAt: user.CreatedAt,
		Stats: models.ProfileStats{
			Posts:    postCount,
			Comments: commentCount,
		},
	})
}

// UpdateProfile handles PUT /api/profile
func (s *Server) UpdateProfile(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	var req struct {
		Username string `json:"username"`
		Avatar   string `json:"avatar"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	user, err := s.userRepo.GetByID(c.Context(), userID)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusNotFound,
			&models.AppError{Code: "NOT_FOUND", Message: "المستخدم غير موجود"})
	}

	if req.Username = strings.TrimSpace(req.Username); req.Username != "" {
		if err := validation.ValidateUsername(req.Username); err != nil {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError(err.Error()))
		}
		user.Username = req.Username
	}
	if req.Avatar != "" {
		user.Avatar = req.Avatar
	}

	if err := s.userRepo.Update(c.Context(), user); err != nil {
		return respondRepoError(c, err)
	}

	return c.JSON(fiber.Map{
		"message": "Profile updated",
		"user":    user,
	})
}
