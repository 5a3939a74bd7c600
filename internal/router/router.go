package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-fees-api/internal/config"
	"github.com/noah-isme/gema-fees-api/internal/handler"
	"github.com/noah-isme/gema-fees-api/internal/middleware"
	"github.com/noah-isme/gema-fees-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	BillingHandler   *handler.BillingHandler
	RiskHandler      *handler.RiskHandler
	PromotionHandler *handler.PromotionHandler
	SettingsHandler  *handler.SettingsHandler
	SeedHandler      *handler.SeedHandler
	HealthChecks     map[string]handler.DependencyCheck
	JWTMiddleware    fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthChecks))

	if deps.SeedHandler != nil {
		deps.SeedHandler.Register(api.Group("/seed"))
	}

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	billing := api.Group("/billing", jwtMiddleware)
	access := handler.Access{
		Self:         middleware.RequireSelfOrRole("id", middleware.RoleAdmin, middleware.RoleBursar),
		Staff:        middleware.RequireRole(middleware.RoleAdmin, middleware.RoleBursar),
		Admin:        middleware.RequireRole(middleware.RoleAdmin),
		PaymentLimit: middleware.RateLimit("payments", cfg.PaymentRateLimit, time.Minute),
	}

	if deps.BillingHandler != nil {
		deps.BillingHandler.Register(billing, access)
	}
	if deps.RiskHandler != nil {
		deps.RiskHandler.Register(billing, access)
	}
	if deps.PromotionHandler != nil {
		deps.PromotionHandler.Register(billing, access)
	}
	if deps.SettingsHandler != nil {
		deps.SettingsHandler.Register(billing, access)
	}
}
