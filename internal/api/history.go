package api

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/illegalcall/palmistry/internal/models"
	"github.com/illegalcall/palmistry/internal/palm"
	"github.com/illegalcall/palmistry/internal/storage"
	"github.com/illegalcall/palmistry/internal/store"
)

func (s *Server) handleListAnalyses(c *fiber.Ctx) error {
	user := currentUser(c)
	analyses, err := s.store.ListAnalyses(c.Context(), user.ID)
	if err != nil {
		return s.internalError(c, "Failed to fetch analyses", err)
	}

	views := make([]models.AnalysisView, 0, len(analyses))
	for _, a := range analyses {
		views = append(views, models.AnalysisView{
			Analysis:       a,
			SignedImageURL: s.freshImageURL(c.Context(), a.ImageURL),
		})
	}
	return c.JSON(fiber.Map{"analyses": views})
}

func (s *Server) handleGetAnalysis(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Analysis not found"})
	}

	user := currentUser(c)
	a, err := s.store.GetAnalysis(c.Context(), user.ID, id)
	if errors.Is(err, store.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Analysis not found"})
	}
	if err != nil {
		return s.internalError(c, "Failed to fetch analysis", err)
	}

	return c.JSON(fiber.Map{"analysis": models.AnalysisView{
		Analysis:       a,
		SignedImageURL: s.freshImageURL(c.Context(), a.ImageURL),
		Sections:       palm.PresentSections(a.Result),
	}})
}

// freshImageURL re-signs a stored image link. The stored URL is returned when
// its object path cannot be recovered or signing fails.
func (s *Server) freshImageURL(ctx context.Context, stored string) string {
	objectPath, ok := storage.PathFromURL(stored, s.cfg.Storage.Bucket)
	if !ok {
		return stored
	}
	signed, err := s.storage.SignedURL(ctx, objectPath, s.cfg.Storage.SignedURLTTL)
	if err != nil {
		slog.Warn("Failed to re-sign image", "path", objectPath, "error", err)
		return stored
	}
	return signed
}
