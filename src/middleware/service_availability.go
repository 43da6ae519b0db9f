package middleware

import (
	"os"
	"strconv"
	"sync/atomic"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// TradingHalt rejects participant requests while trading is halted and guards
// against server overload. Health and metrics stay reachable during a halt so
// operators can still observe the venue.
type TradingHalt struct {
	halted                atomic.Bool
	maxConcurrentRequests int64
	inFlightRequests      atomic.Int64
}

func NewTradingHalt(maxConcurrentRequests int64) *TradingHalt {
	th := &TradingHalt{
		maxConcurrentRequests: maxConcurrentRequests,
	}

	if os.Getenv("TRADING_HALTED") == "1" {
		th.halted.Store(true)
		log.Warn().Msg("Trading is halted - all participant requests will return 503")
	}

	return th
}

func (th *TradingHalt) SetHalted(halted bool) {
	th.halted.Store(halted)
	if halted {
		log.Warn().Msg("Trading halted")
	} else {
		log.Info().Msg("Trading resumed")
	}
}

func (th *TradingHalt) IsHalted() bool {
	return th.halted.Load()
}

func (th *TradingHalt) GetInFlightRequests() int64 {
	return th.inFlightRequests.Load()
}

func (th *TradingHalt) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		// edge case: operational endpoints stay available during a halt
		if c.Path() == "/health" || c.Path() == "/metrics" {
			return c.Next()
		}

		if th.halted.Load() {
			log.Warn().
				Str("path", c.Path()).
				Str("method", c.Method()).
				Str("ip", c.IP()).
				Msg("Request rejected: trading halted")
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error":   "Trading halted",
				"message": "The venue is not accepting requests right now. Please try again later.",
				"code":    503,
			})
		}

		// edge case: check server overload if limit is set
		if th.maxConcurrentRequests > 0 {
			currentRequests := th.inFlightRequests.Load()
			if currentRequests >= th.maxConcurrentRequests {
				log.Warn().
					Str("path", c.Path()).
					Str("method", c.Method()).
					Int64("current_requests", currentRequests).
					Int64("max_requests", th.maxConcurrentRequests).
					Msg("Request rejected: server overload")
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
					"error":   "Service unavailable",
					"message": "The venue is currently overloaded. Please try again later.",
					"code":    503,
				})
			}
		}

		th.inFlightRequests.Add(1)
		defer th.inFlightRequests.Add(-1)

		return c.Next()
	}
}

func DefaultServiceAvailability() *TradingHalt {
	maxConcurrent := int64(0)

	if envMax := os.Getenv("MAX_CONCURRENT_REQUESTS"); envMax != "" {
		if parsed, err := strconv.ParseInt(envMax, 10, 64); err == nil && parsed > 0 {
			maxConcurrent = parsed
			log.Info().
				Int64("max_concurrent_requests", maxConcurrent).
				Msg("Server overload detection enabled")
		}
	}

	return NewTradingHalt(maxConcurrent)
}
