package api

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/stripe/stripe-go/v76"

	"github.com/illegalcall/palmistry/internal/events"
	"github.com/illegalcall/palmistry/internal/models"
	"github.com/illegalcall/palmistry/internal/payments"
	"github.com/illegalcall/palmistry/internal/pkg/supabase"
)

// handleStripeWebhook credits purchases. The raw body is verified before it is
// decoded, and a checkout session is credited at most once.
func (s *Server) handleStripeWebhook(c *fiber.Ctx) error {
	if !s.webhooks.Configured() {
		slog.Error("Stripe webhook secret is not configured")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Stripe configuration missing"})
	}

	signature := c.Get("Stripe-Signature")
	if signature == "" {
		s.metrics.Webhooks.WithLabelValues("unknown", "unsigned").Inc()
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Missing Stripe-Signature header"})
	}

	// c.Body() is only valid for the handler's lifetime, which covers Verify.
	event, err := s.webhooks.Verify(c.Body(), signature)
	if err != nil {
		slog.Warn("Webhook signature verification failed", "error", err)
		s.metrics.Webhooks.WithLabelValues("unknown", "bad_signature").Inc()
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid signature"})
	}

	slog.Info("Webhook event received", "type", event.Type, "id", event.ID)
	if event.Type != stripe.EventTypeCheckoutSessionCompleted {
		s.metrics.Webhooks.WithLabelValues(string(event.Type), "ignored").Inc()
		return c.JSON(models.WebhookResponse{Received: true})
	}

	ctx := c.Context()
	first, err := s.cache.FirstDelivery(ctx, event.ID)
	if err != nil {
		slog.Warn("Event dedup unavailable, relying on the database", "error", err)
	}
	if !first {
		slog.Info("Duplicate webhook event", "id", event.ID)
		s.metrics.Webhooks.WithLabelValues(string(event.Type), "duplicate").Inc()
		return c.JSON(models.WebhookResponse{Received: true})
	}

	checkout, err := payments.ParseCompletedCheckout(event)
	if err != nil {
		s.forget(c, event.ID)
		s.metrics.Webhooks.WithLabelValues(string(event.Type), "invalid").Inc()
		if errors.Is(err, payments.ErrMissingUser) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "No user_id in session metadata"})
		}
		return s.internalError(c, "Failed to read checkout session", err)
	}
	if checkout.DefaultedCredits {
		slog.Warn("Checkout session has no usable credits, using default", "session_id", checkout.SessionID, "credits", checkout.Credits)
	}

	payment := &models.Payment{
		UserID:                checkout.UserID,
		StripeSessionID:       checkout.SessionID,
		StripePaymentIntentID: checkout.PaymentIntentID,
		AmountCents:           checkout.AmountCents,
		CreditsPurchased:      checkout.Credits,
	}
	applied, balance, err := s.store.RecordPurchase(ctx, payment)
	if err != nil {
		s.forget(c, event.ID)
		s.metrics.Webhooks.WithLabelValues(string(event.Type), "error").Inc()
		return s.internalError(c, "Error updating credits", err)
	}
	if !applied {
		slog.Info("Checkout session already credited", "session_id", checkout.SessionID)
		s.metrics.Webhooks.WithLabelValues(string(event.Type), "duplicate").Inc()
		return c.JSON(models.WebhookResponse{Received: true})
	}

	slog.Info("Credits added", "payment_id", payment.ID, "user_id", checkout.UserID, "credits", checkout.Credits, "balance", balance)
	s.metrics.Webhooks.WithLabelValues(string(event.Type), "credited").Inc()

	var amount int64
	if checkout.AmountCents != nil {
		amount = *checkout.AmountCents
	}
	s.publish(ctx, events.TypePaymentCompleted, supabase.User{ID: checkout.UserID, Email: checkout.Email}, events.PaymentCompleted{
		SessionID:   checkout.SessionID,
		Credits:     checkout.Credits,
		Balance:     balance,
		AmountCents: amount,
	})

	return c.JSON(models.WebhookResponse{Received: true})
}

// forget releases the delivery marker so the provider's retry is processed.
func (s *Server) forget(c *fiber.Ctx, eventID string) {
	if err := s.cache.ForgetDelivery(c.Context(), eventID); err != nil {
		slog.Warn("Failed to release event marker", "id", eventID, "error", err)
	}
}
