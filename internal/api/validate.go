package api

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/illegalcall/palmistry/internal/cache"
	"github.com/illegalcall/palmistry/internal/llm"
	"github.com/illegalcall/palmistry/internal/models"
	"github.com/illegalcall/palmistry/internal/palm"
)

const validationMaxTokens = 200

var errNoImage = errors.New("No image provided")

// handleValidatePalm always answers 200 with a boolean isPalm. Failures are
// resolved by the configured policy.
func (s *Server) handleValidatePalm(c *fiber.Ctx) error {
	var req models.ValidatePalmRequest
	if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.ImageBase64) == "" {
		if err == nil {
			err = errNoImage
		}
		slog.Warn("Validation request without image", "error", err)
		s.metrics.Validations.WithLabelValues("unavailable").Inc()
		return c.JSON(s.policy.Unavailable(err))
	}

	image := imageDataURL(req.ImageBase64)
	key := cache.ImageKey(image)
	ctx := c.Context()

	if v, ok, err := s.cache.Verdict(ctx, key); err != nil {
		slog.Warn("Verdict cache read failed", "error", err)
	} else if ok {
		s.metrics.Validations.WithLabelValues("cached").Inc()
		return c.JSON(v)
	}

	system, question := palm.ValidationPrompt()
	start := time.Now()
	answer, err := s.vision.Complete(ctx, llm.VisionRequest{
		System:    system,
		ImageURL:  image,
		Text:      question,
		MaxTokens: validationMaxTokens,
	})
	s.metrics.Upstream.WithLabelValues("validate").Observe(time.Since(start).Seconds())
	if err != nil {
		slog.Error("Palm validation failed", "error", err)
		s.metrics.Validations.WithLabelValues("unavailable").Inc()
		return c.JSON(s.policy.Unavailable(err))
	}

	verdict, err := palm.ParseVerdict(answer)
	if err != nil {
		slog.Warn("Could not parse validation answer", "error", err)
		s.metrics.Validations.WithLabelValues("unparsable").Inc()
		return c.JSON(s.policy.Unparsable())
	}

	if err := s.cache.StoreVerdict(ctx, key, verdict); err != nil {
		slog.Warn("Verdict cache write failed", "error", err)
	}
	label := "not_palm"
	if verdict.IsPalm {
		label = "palm"
	}
	s.metrics.Validations.WithLabelValues(label).Inc()
	return c.JSON(verdict)
}

// imageDataURL accepts a data URL or bare base64 and returns a data URL.
func imageDataURL(image string) string {
	image = strings.TrimSpace(image)
	if strings.HasPrefix(image, "data:") || strings.HasPrefix(image, "http://") || strings.HasPrefix(image, "https://") {
		return image
	}
	return "data:image/jpeg;base64," + image
}
