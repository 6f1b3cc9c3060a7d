package api

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/illegalcall/palmistry/internal/events"
	"github.com/illegalcall/palmistry/internal/llm"
	"github.com/illegalcall/palmistry/internal/models"
	"github.com/illegalcall/palmistry/internal/palm"
	"github.com/illegalcall/palmistry/internal/pkg/supabase"
	"github.com/illegalcall/palmistry/internal/store"
)

const (
	analysisMaxTokens     = 6000
	insufficientCreditMsg = "No credits left. Buy an analysis package to continue."
)

func (s *Server) handleAnalyzePalm(c *fiber.Ctx) error {
	user := currentUser(c)
	ctx := c.Context()

	balance, err := s.store.Credits(ctx, user.ID)
	if errors.Is(err, store.ErrNotFound) {
		balance = 0
	} else if err != nil {
		return s.internalError(c, "Error fetching profile", err)
	}
	if balance < 1 {
		s.metrics.Analyses.WithLabelValues("no_credits").Inc()
		return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{"error": insufficientCreditMsg})
	}

	var req models.AnalyzePalmRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := s.validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": requestError(err)})
	}

	notes := palm.SanitizeNotes(req.AdditionalNotes)
	lang := palm.MatchLanguage(req.Language)
	system, request := palm.ReportPrompt(lang, notes)

	start := time.Now()
	answer, err := s.vision.Complete(ctx, llm.VisionRequest{
		System:    system,
		ImageURL:  req.ImageURL,
		Text:      request,
		MaxTokens: analysisMaxTokens,
	})
	s.metrics.Upstream.WithLabelValues("analyze").Observe(time.Since(start).Seconds())
	if err != nil {
		s.metrics.Analyses.WithLabelValues("upstream_error").Inc()
		return s.internalError(c, "AI analysis failed", err)
	}

	report, err := palm.BuildReport(answer)
	if err != nil {
		return s.internalError(c, "Failed to build report", err)
	}
	if report.Fallback {
		slog.Warn("Analysis answer was not JSON, storing raw text", "user_id", user.ID)
	}

	id, remaining, err := s.store.SaveAnalysis(ctx, store.NewAnalysis{
		UserID:          user.ID,
		ImageURL:        req.ImageURL,
		AdditionalNotes: notes,
		Result:          models.JSONB(report.Document),
		Language:        lang.String(),
	})
	switch {
	case errors.Is(err, store.ErrInsufficientCredits):
		// a concurrent request spent the last credit after the balance check
		s.metrics.Analyses.WithLabelValues("no_credits").Inc()
		return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{"error": insufficientCreditMsg})
	case err != nil:
		slog.Error("Error saving analysis", "user_id", user.ID, "error", err)
		s.metrics.Analyses.WithLabelValues("unsaved").Inc()
		id, remaining = "", balance-1
	default:
		s.metrics.Analyses.WithLabelValues("completed").Inc()
		s.publish(ctx, events.TypeAnalysisCompleted, user, events.AnalysisCompleted{
			AnalysisID:       id,
			Language:         lang.String(),
			RemainingCredits: remaining,
		})
	}

	return c.JSON(models.AnalyzePalmResponse{
		Analysis:         models.JSONB(report.Document),
		AnalysisID:       id,
		RemainingCredits: remaining,
	})
}

// requestError names the first invalid field of an analysis request.
func requestError(err error) string {
	var fields validator.ValidationErrors
	if errors.As(err, &fields) && len(fields) > 0 && fields[0].Field() == "ImageURL" {
		return "No image URL provided"
	}
	return "Invalid request body"
}

// publish emits a domain event. Failures are logged and never fail the request.
func (s *Server) publish(ctx context.Context, eventType string, user supabase.User, data any) {
	e, err := events.New(eventType, user.ID, user.Email, data)
	if err == nil {
		err = s.events.Publish(ctx, e)
	}
	if err != nil {
		slog.Error("Failed to publish event", "type", eventType, "user_id", user.ID, "error", err)
	}
}
