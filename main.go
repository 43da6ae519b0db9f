package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"trade-venue/src/engine"
	"trade-venue/src/feed"
	"trade-venue/src/handlers"
	"trade-venue/src/logger"
	"trade-venue/src/routes"
)

// StartingBalance is each participant's initial cash, in cents ($1,000,000).
const StartingBalance int64 = 100_000_000

func main() {
	// edge case: a missing .env file is fine, the environment still applies
	_ = godotenv.Load()

	logger.InitLogger("trade-venue")
	log := logger.GetLogger()

	symbol := os.Getenv("VENUE_SYMBOL")
	if symbol == "" {
		symbol = "AAPL"
	}

	startingBalance := StartingBalance
	if envBalance := os.Getenv("VENUE_STARTING_BALANCE"); envBalance != "" {
		if parsed, err := strconv.ParseInt(envBalance, 10, 64); err == nil && parsed > 0 {
			startingBalance = parsed
		}
	}

	log.Info().
		Str("symbol", symbol).
		Int64("starting_balance", startingBalance).
		Msg("Initializing trading venue")

	exchange := engine.NewExchange(startingBalance)

	maxQueued := 1000
	if envMax := os.Getenv("FEED_MAX_QUEUED"); envMax != "" {
		if parsed, err := strconv.Atoi(envMax); err == nil && parsed > 0 {
			maxQueued = parsed
		}
	}
	eventFeed := feed.New(maxQueued)

	venueHandler := handlers.NewVenueHandler(exchange, eventFeed, symbol)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}

			log.Error().
				Str("path", c.Path()).
				Str("method", c.Method()).
				Int("status", code).
				Str("error", err.Error()).
				Msg("Request error")

			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	app.Use(recover.New())
	routes.SetupRoutes(app, venueHandler)

	auditDone := startBalanceAudit(exchange, startingBalance)

	port := ":8080"
	if envPort := os.Getenv("PORT"); envPort != "" {
		port = ":" + envPort
	}

	serverError := make(chan error, 1)

	go func() {
		if err := app.Listen(port); err != nil {
			// edge case: ignore shutdown errors, only report real errors
			if err.Error() != "server is shutting down" {
				serverError <- err
			}
		}
	}()

	select {
	case err := <-serverError:
		log.Fatal().
			Err(err).
			Str("port", port).
			Str("hint", "Port may be already in use. Try: PORT=3000 go run main.go").
			Msg("Server failed to start")
	default:
		log.Info().
			Str("port", port).
			Msg("Trading venue started")

		log.Info().
			Strs("endpoints", []string{
				"POST   /api/v1/requests",
				"POST   /api/v1/orders",
				"PUT    /api/v1/orders",
				"DELETE /api/v1/orders/:id",
				"GET    /api/v1/balance/:id",
				"GET    /api/v1/events/:id",
				"GET    /api/v1/book",
				"GET    /health",
				"GET    /metrics",
			}).
			Msg("API endpoints registered")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	<-quit
	log.Info().Msg("Received shutdown signal, shutting down...")
	close(auditDone)

	shutdownTimeout := 10 * time.Second
	if envTimeout := os.Getenv("SHUTDOWN_TIMEOUT"); envTimeout != "" {
		if parsed, err := time.ParseDuration(envTimeout); err == nil && parsed > 0 {
			shutdownTimeout = parsed
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		// edge case: timeout during shutdown is acceptable
		if errors.Is(err, context.DeadlineExceeded) {
			log.Warn().
				Dur("timeout", shutdownTimeout).
				Msg("Timeout exceeded, shutting down...")
		} else {
			log.Error().
				Err(err).
				Msg("Error during shutdown")
		}
	} else {
		log.Info().Msg("Shutdown complete")
	}

	logger.CloseLogger()
}

// startBalanceAudit logs the ledger-wide balance and position sums on an
// interval. Every trade is a zero-sum cash and position transfer, so the
// balance sum must stay at accounts*startingBalance and the position sum at
// zero; any drift means a broken invariant.
func startBalanceAudit(exchange *engine.Exchange, startingBalance int64) chan struct{} {
	done := make(chan struct{})

	interval := 10 * time.Second
	if envInterval := os.Getenv("BALANCE_AUDIT_INTERVAL"); envInterval != "" {
		if parsed, err := time.ParseDuration(envInterval); err == nil && parsed > 0 {
			interval = parsed
		}
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		log := logger.GetLogger()

		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				balanceSum, positionSum, accounts := exchange.BalanceSum()
				drift := balanceSum - int64(accounts)*startingBalance
				logEvent := log.Info
				if drift != 0 || positionSum != 0 {
					logEvent = log.Error
				}
				logEvent().
					Int("accounts", accounts).
					Int64("balance_sum", balanceSum).
					Int64("position_sum", positionSum).
					Int64("balance_drift", drift).
					Msg("Ledger audit")
			}
		}
	}()

	return done
}
