package routes

import (
	"os"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"trade-venue/src/handlers"
	"trade-venue/src/middleware"
)

func SetupRoutes(app *fiber.App, venueHandler *handlers.VenueHandler) {
	rateLimitDisabled := os.Getenv("RATE_LIMIT_DISABLED") == "1"

	maxRequests := 100
	if envMax := os.Getenv("RATE_LIMIT_MAX"); envMax != "" {
		if parsed, err := strconv.Atoi(envMax); err == nil && parsed > 0 {
			maxRequests = parsed
		}
	}

	windowDuration := time.Second
	if envWindow := os.Getenv("RATE_LIMIT_WINDOW"); envWindow != "" {
		if parsed, err := time.ParseDuration(envWindow); err == nil && parsed > 0 {
			windowDuration = parsed
		}
	}

	serviceAvailability := middleware.DefaultServiceAvailability()
	app.Use(serviceAvailability.Middleware())
	app.Use(middleware.RequestLogger())

	api := app.Group("/api/v1")

	if !rateLimitDisabled {
		rateLimiter := middleware.NewRateLimiter(maxRequests, windowDuration)
		api.Use(rateLimiter.Middleware())
	}

	api.Post("/requests", venueHandler.SubmitRequest)
	api.Post("/orders", venueHandler.PlaceOrder)
	api.Put("/orders", venueHandler.AmendOrder)
	api.Delete("/orders/:id", venueHandler.CancelOrder)
	api.Get("/balance/:id", venueHandler.QueryBalance)
	api.Get("/events/:id", venueHandler.DrainEvents)
	api.Get("/book", venueHandler.GetBook)

	app.Get("/health", venueHandler.HealthCheck)
	app.Get("/metrics", venueHandler.Metrics)
}
