package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/illegalcall/palmistry/internal/cache"
	"github.com/illegalcall/palmistry/internal/config"
	"github.com/illegalcall/palmistry/internal/events"
	"github.com/illegalcall/palmistry/internal/llm"
	"github.com/illegalcall/palmistry/internal/metrics"
	"github.com/illegalcall/palmistry/internal/palm"
	"github.com/illegalcall/palmistry/internal/payments"
	"github.com/illegalcall/palmistry/internal/pkg/supabase"
	"github.com/illegalcall/palmistry/internal/storage"
	"github.com/illegalcall/palmistry/internal/store"
)

const validatePalmPath = "/api/validate-palm"

const corsAllowHeaders = "authorization, x-client-info, apikey, content-type, stripe-signature"

// Deps are the collaborators the handlers call into.
type Deps struct {
	Store    *store.Store
	Cache    *cache.Cache
	Vision   llm.VisionClient
	Auth     supabase.TokenVerifier
	Storage  storage.Storage
	Checkout payments.Checkout // nil when Stripe is not configured
	Webhooks *payments.WebhookVerifier
	Events   events.Publisher
	Metrics  *metrics.Metrics
}

type Server struct {
	app      *fiber.App
	cfg      *config.Config
	policy   palm.Policy
	validate *validator.Validate

	store    *store.Store
	cache    *cache.Cache
	vision   llm.VisionClient
	auth     supabase.TokenVerifier
	storage  storage.Storage
	checkout payments.Checkout
	webhooks *payments.WebhookVerifier
	events   events.Publisher
	metrics  *metrics.Metrics
}

func NewServer(cfg *config.Config, deps Deps) (*Server, error) {
	policy, err := palm.ParsePolicy(cfg.Validation.OnUpstreamError)
	if err != nil {
		return nil, err
	}
	if deps.Store == nil || deps.Vision == nil || deps.Storage == nil {
		return nil, errors.New("store, vision client and storage are required")
	}
	if deps.Auth == nil && cfg.Auth.JWTSecret == "" {
		return nil, errors.New("a token verifier is required without a JWT secret")
	}
	if deps.Events == nil {
		deps.Events = events.NopPublisher{}
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}

	app := fiber.New(fiber.Config{
		AppName:      "palmistry",
		BodyLimit:    int(cfg.Storage.MaxSize)*2 + 1024*1024, // base64 images are ~4/3 larger
		ErrorHandler: errorHandler(cfg, policy, deps.Metrics),
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${ip} ${method} ${path} ${status} ${latency}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.Server.AllowOrigins,
		AllowHeaders: corsAllowHeaders,
		AllowMethods: "GET,POST,OPTIONS",
	}))

	server := &Server{
		app:      app,
		cfg:      cfg,
		policy:   policy,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		store:    deps.Store,
		cache:    deps.Cache,
		vision:   deps.Vision,
		auth:     deps.Auth,
		storage:  deps.Storage,
		checkout: deps.Checkout,
		webhooks: deps.Webhooks,
		events:   deps.Events,
		metrics:  deps.Metrics,
	}

	server.setupRoutes()

	return server, nil
}

func (s *Server) setupRoutes() {
	s.app.Get("/healthz", s.handleHealth)
	s.app.Get("/metrics", s.metrics.Handler())
	if local, ok := s.storage.(*storage.LocalStorage); ok {
		s.app.Get("/files/"+s.cfg.Storage.Bucket+"/*", s.handleLocalFile(local))
	}

	api := s.app.Group("/api", limiter.New(limiter.Config{
		Max:        s.cfg.Server.MaxRequests,
		Expiration: s.cfg.Server.RequestWindow,
		Next: func(c *fiber.Ctx) bool {
			// webhook deliveries are never rate limited
			return c.Path() == "/api/stripe-webhook"
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "Too many requests"})
		},
	}))

	// Public routes
	api.Post("/validate-palm", s.handleValidatePalm)
	api.Post("/stripe-webhook", s.handleStripeWebhook)

	// Protected routes
	protected := api.Group("", s.authMiddleware())
	protected.Post("/analyze-palm", s.handleAnalyzePalm)
	protected.Post("/create-checkout", s.handleCreateCheckout)
	protected.Post("/images", s.handleUploadImage)
	protected.Get("/analyses", s.handleListAnalyses)
	protected.Get("/analyses/:id", s.handleGetAnalysis)
	protected.Get("/profile", s.handleGetProfile)
	protected.Post("/profile", s.handleCreateProfile)
}

func (s *Server) Start() error {
	return s.app.Listen(s.cfg.Server.Port)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	if err := s.store.Ping(c.Context()); err != nil {
		slog.Error("Health check failed", "component", "database", "error", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable", "component": "database"})
	}
	if err := s.cache.Ping(c.Context()); err != nil {
		slog.Error("Health check failed", "component", "redis", "error", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable", "component": "redis"})
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

// errorHandler renders every error as {"error": ...}. Internal details are
// hidden in production. A palm check whose body exceeds the limit is rejected
// before its handler runs, so it is answered here with the policy verdict.
func errorHandler(cfg *config.Config, policy palm.Policy, m *metrics.Metrics) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		message := "Internal server error"

		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
			message = fe.Message
		} else {
			slog.Error("Unhandled error", "path", c.Path(), "error", err)
			if !cfg.IsProduction() {
				message = err.Error()
			}
		}

		if code == fiber.StatusRequestEntityTooLarge && c.Path() == validatePalmPath {
			slog.Warn("Validation body over the size limit", "error", err)
			m.Validations.WithLabelValues("unavailable").Inc()
			return c.Status(fiber.StatusOK).JSON(policy.Unavailable(err))
		}
		return c.Status(code).JSON(fiber.Map{"error": message})
	}
}

// internalError logs err and answers 500, including the detail outside production.
func (s *Server) internalError(c *fiber.Ctx, message string, err error) error {
	slog.Error(message, "path", c.Path(), "error", err)
	if !s.cfg.IsProduction() {
		message = fmt.Sprintf("%s: %v", message, err)
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": message})
}
