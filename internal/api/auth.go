package api

import (
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
	jwtware "github.com/gofiber/jwt/v3"
	"github.com/golang-jwt/jwt/v4"

	"github.com/illegalcall/palmistry/internal/pkg/supabase"
)

const (
	userLocalKey  = "user"
	tokenLocalKey = "token"
)

// authMiddleware checks HS256 tokens locally when a JWT secret is configured
// and falls back to asking GoTrue otherwise.
func (s *Server) authMiddleware() fiber.Handler {
	if s.cfg.Auth.JWTSecret == "" {
		return s.requireUser
	}
	return jwtware.New(jwtware.Config{
		SigningKey:     []byte(s.cfg.Auth.JWTSecret),
		SigningMethod:  "HS256",
		ContextKey:     tokenLocalKey,
		SuccessHandler: s.jwtUser,
		ErrorHandler:   jwtError,
	})
}

func (s *Server) jwtUser(c *fiber.Ctx) error {
	token, ok := c.Locals(tokenLocalKey).(*jwt.Token)
	if !ok {
		return unauthorized(c, "User not authenticated")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return unauthorized(c, "User not authenticated")
	}
	user, err := supabase.UserFromClaims(claims)
	if err != nil {
		slog.Debug("Token rejected", "error", err)
		return unauthorized(c, "User not authenticated")
	}

	c.Locals(userLocalKey, user)
	return c.Next()
}

func jwtError(c *fiber.Ctx, err error) error {
	msg, ok := headerProblem(c.Get(fiber.HeaderAuthorization))
	if !ok {
		slog.Debug("Token rejected", "error", err)
	}
	return unauthorized(c, msg)
}

// headerProblem reports the client-facing message for a rejected Authorization
// header, and false when the header itself was well formed.
func headerProblem(header string) (string, bool) {
	if header == "" {
		return "No authorization header", true
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return "Invalid authorization header", true
	}
	return "User not authenticated", false
}

func unauthorized(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": msg})
}

// requireUser verifies the bearer token with the configured TokenVerifier and
// stores the caller in c.Locals.
func (s *Server) requireUser(c *fiber.Ctx) error {
	header := c.Get(fiber.HeaderAuthorization)
	if msg, bad := headerProblem(header); bad {
		return unauthorized(c, msg)
	}

	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	user, err := s.auth.Verify(c.Context(), token)
	if err != nil {
		slog.Debug("Token rejected", "error", err)
		return unauthorized(c, "User not authenticated")
	}

	c.Locals(userLocalKey, user)
	return c.Next()
}

func currentUser(c *fiber.Ctx) supabase.User {
	user, _ := c.Locals(userLocalKey).(supabase.User)
	return user
}
