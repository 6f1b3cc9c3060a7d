package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/illegalcall/palmistry/internal/models"
	"github.com/illegalcall/palmistry/internal/store"
)

func (s *Server) handleGetProfile(c *fiber.Ctx) error {
	user := currentUser(c)
	credits, err := s.store.Credits(c.Context(), user.ID)
	if errors.Is(err, store.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Profile not found"})
	}
	if err != nil {
		return s.internalError(c, "Error fetching profile", err)
	}
	return c.JSON(models.ProfileResponse{UserID: user.ID, AnalysisCredits: credits})
}

// handleCreateProfile is called after signup. It is idempotent and never
// changes an existing balance.
func (s *Server) handleCreateProfile(c *fiber.Ctx) error {
	user := currentUser(c)
	profile, err := s.store.EnsureProfile(c.Context(), user.ID)
	if err != nil {
		return s.internalError(c, "Failed to create profile", err)
	}
	return c.JSON(models.ProfileResponse{UserID: profile.UserID, AnalysisCredits: profile.AnalysisCredits})
}
