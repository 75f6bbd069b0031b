package server

import (
	"net/url"
	"strings"

	"majlis/internal/models"

	"github.com/gofiber/fiber/v2"
)

const maxCaptionLength = 500

// GetReels handles GET /api/reels
func (s *Server) GetReels(c *fiber.Ctx) error {
	reels, err := s.reelRepo.List(c.Context())
	if err != nil {
		return respondRepoError(c, err)
	}
	return c.JSON(reels)
}

// CreateReel handles POST /api/reels
func (s *Server) CreateReel(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	var req struct {
		URL     string `json:"url"`
		Caption string `json:"caption"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	req.URL = strings.TrimSpace(req.URL)
	if req.URL == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("URL is required"))
	}
	if parsed, err := url.Parse(req.URL); err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("URL must be a valid http(s) address"))
	}
	if len(req.Caption) > maxCaptionLength {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Caption is too long"))
	}

	reel := &models.Reel{
		URL:     req.URL,
		Caption: req.Caption,
		UserID:  userID,
	}
	if err := s.reelRepo.Create(c.Context(), reel); err != nil {
		return respondRepoError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(reel)
}
