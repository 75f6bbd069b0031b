package server

import (
	"github.com/gofiber/fiber/v2"
)

// GetRadioState handles GET /api/radio/state. It returns the current shared
// radio snapshot, including the version clients must echo when updating.
func (s *Server) GetRadioState(c *fiber.Ctx) error {
	state, err := s.radioRepo.Get(c.Context())
	if err != nil {
		return respondRepoError(c, err)
	}
	return c.JSON(state)
}
