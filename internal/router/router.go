package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/monquest-api/internal/config"
	"github.com/noah-isme/monquest-api/internal/handler"
	"github.com/noah-isme/monquest-api/internal/middleware"
	"github.com/noah-isme/monquest-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	BountyHandler     *handler.BountyHandler
	SubmissionHandler *handler.SubmissionHandler
	ProfileHandler    *handler.ProfileHandler
	ReviewHandler     *handler.ReviewHandler
	MediaHandler      *handler.MediaHandler
	ReviewFeedHandler *handler.ReviewFeedHandler
	HealthProbes      map[string]handler.HealthProbe

	// ReviewRateLimit overrides the limiter in front of the review endpoint.
	ReviewRateLimit fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthProbes))

	if deps.BountyHandler != nil {
		deps.BountyHandler.Register(api.Group("/bounties"))
	}

	if deps.SubmissionHandler != nil {
		deps.SubmissionHandler.Register(api.Group("/submissions"))
	}

	if deps.ProfileHandler != nil {
		deps.ProfileHandler.Register(api.Group("/profile"))
	}

	if deps.MediaHandler != nil {
		deps.MediaHandler.Register(api.Group("/uploads"))
	}

	// Review streams are throttled per client.
	if deps.ReviewHandler != nil {
		limiter := deps.ReviewRateLimit
		if limiter == nil {
			limiter = middleware.RateLimit("ai-review", cfg.Review.RateLimit, cfg.Review.RateWindow)
		}
		deps.ReviewHandler.Register(api.Group("/ai-review"), limiter)
	}

	if deps.ReviewFeedHandler != nil {
		deps.ReviewFeedHandler.Register(api.Group("/reviews"))
	}
}
