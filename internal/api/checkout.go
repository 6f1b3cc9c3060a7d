package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/illegalcall/palmistry/internal/models"
)

func (s *Server) handleCreateCheckout(c *fiber.Ctx) error {
	if s.checkout == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Payments are not configured"})
	}

	var req models.CheckoutRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.Origin == "" {
		req.Origin = c.Get(fiber.HeaderOrigin)
	}
	if err := s.validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "A valid origin is required"})
	}

	user := currentUser(c)
	session, err := s.checkout.CreateSession(c.Context(), user.ID, user.Email, req.Origin)
	if err != nil {
		return s.internalError(c, "Failed to create checkout session", err)
	}

	return c.JSON(models.CheckoutResponse{URL: session.URL, SessionID: session.ID})
}
