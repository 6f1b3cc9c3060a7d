package api

import (
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/illegalcall/palmistry/internal/models"
	"github.com/illegalcall/palmistry/internal/storage"
)

// handleUploadImage stores a palm photo under the caller's prefix and returns
// a short-lived link the analysis request can reference.
func (s *Server) handleUploadImage(c *fiber.Ctx) error {
	file, err := c.FormFile("image")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "No image provided"})
	}
	if file.Size > s.cfg.Storage.MaxSize {
		return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{"error": "Image is too large"})
	}

	contentType := file.Header.Get(fiber.HeaderContentType)
	ext, err := storage.Extension(contentType)
	if err != nil {
		return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{"error": "Only JPEG, PNG, WEBP and HEIC images are accepted"})
	}

	f, err := file.Open()
	if err != nil {
		return s.internalError(c, "Failed to read upload", err)
	}
	defer f.Close()

	user := currentUser(c)
	objectPath := storage.ObjectPath(user.ID, time.Now(), ext)
	if err := s.storage.Upload(c.Context(), objectPath, contentType, f); err != nil {
		return s.internalError(c, "Failed to store image", err)
	}

	signed, err := s.storage.SignedURL(c.Context(), objectPath, s.cfg.Storage.SignedURLTTL)
	if err != nil {
		return s.internalError(c, "Failed to sign image URL", err)
	}

	slog.Info("Image uploaded", "user_id", user.ID, "path", objectPath, "size", file.Size)
	return c.Status(fiber.StatusCreated).JSON(models.UploadResponse{Path: objectPath, SignedURL: signed})
}

// handleLocalFile serves objects of the local backend behind their signed links.
func (s *Server) handleLocalFile(local *storage.LocalStorage) fiber.Handler {
	return func(c *fiber.Ctx) error {
		f, err := local.Open(c.Params("*"), c.Query("expires"), c.Query("signature"))
		switch {
		case errors.Is(err, storage.ErrInvalidSignature):
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Invalid or expired link"})
		case errors.Is(err, os.ErrNotExist):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Not found"})
		case err != nil:
			return s.internalError(c, "Failed to open file", err)
		}
		stat, err := f.Stat()
		if err != nil {
			f.Close()
			return s.internalError(c, "Failed to open file", err)
		}
		return c.SendStream(f, int(stat.Size()))
	}
}
