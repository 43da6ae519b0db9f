package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"trade-venue/src/logger"
	"trade-venue/src/middleware"
	"trade-venue/src/models"
	"trade-venue/src/trader"
)

// Simulation driver: runs N traders against a venue's HTTP API. Each trader
// drains its event queue, reconciles its view, picks an action, and submits
// it through the action-tagged request endpoint.

type client struct {
	baseURL string
	http    *http.Client
}

func (c *client) submit(req *models.ActionRequest) (*models.EventsResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, c.baseURL+"/api/v1/requests", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(middleware.ParticipantHeader, strconv.Itoa(req.ParticipantID))

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp models.ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		return nil, fmt.Errorf("venue returned %d: %s", resp.StatusCode, errResp.Error)
	}

	var events models.EventsResponse
	if err := json.NewDecoder(resp.Body).Decode(&events); err != nil {
		return nil, err
	}
	return &events, nil
}

func (c *client) drainEvents(participantID int) ([]models.EventInfo, error) {
	httpReq, err := http.NewRequest(http.MethodGet, fmt.Sprintf("%s/api/v1/events/%d", c.baseURL, participantID), nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set(middleware.ParticipantHeader, strconv.Itoa(participantID))

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("venue returned %d", resp.StatusCode)
	}

	var events models.EventsResponse
	if err := json.NewDecoder(resp.Body).Decode(&events); err != nil {
		return nil, err
	}
	return events.Events, nil
}

func envInt(name string, fallback int) int {
	if env := os.Getenv(name); env != "" {
		if parsed, err := strconv.Atoi(env); err == nil && parsed > 0 {
			return parsed
		}
	}
	return fallback
}

func envInt64(name string, fallback int64) int64 {
	if env := os.Getenv(name); env != "" {
		if parsed, err := strconv.ParseInt(env, 10, 64); err == nil && parsed > 0 {
			return parsed
		}
	}
	return fallback
}

func main() {
	// edge case: a missing .env file is fine, the environment still applies
	_ = godotenv.Load()

	logger.InitLogger("trade-venue-trader")
	log := logger.GetLogger()

	baseURL := os.Getenv("VENUE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	symbol := os.Getenv("VENUE_SYMBOL")
	if symbol == "" {
		symbol = "AAPL"
	}

	traderCount := envInt("TRADER_COUNT", 4)
	orderQuantity := envInt64("TRADER_ORDER_QUANTITY", 500)
	limitPrice := envInt64("TRADER_LIMIT_PRICE", 1000)
	startingBalance := envInt64("VENUE_STARTING_BALANCE", 100_000_000)

	interval := time.Second
	if envInterval := os.Getenv("TRADER_INTERVAL"); envInterval != "" {
		if parsed, err := time.ParseDuration(envInterval); err == nil && parsed > 0 {
			interval = parsed
		}
	}

	log.Info().
		Str("venue_url", baseURL).
		Str("symbol", symbol).
		Int("traders", traderCount).
		Dur("interval", interval).
		Msg("Starting trader simulation")

	venueClient := &client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}

	done := make(chan struct{})
	var wg sync.WaitGroup

	for id := 1; id <= traderCount; id++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()

			t := trader.New(id, symbol, startingBalance, orderQuantity, limitPrice, time.Now().UnixNano()+int64(id))
			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			for {
				select {
				case <-done:
					return
				case <-ticker.C:
				}

				// counterparty fills arrive through the event queue
				events, err := venueClient.drainEvents(t.ID)
				if err != nil {
					log.Warn().Int("trader_id", t.ID).Err(err).Msg("Failed to drain events")
					continue
				}
				for _, event := range events {
					t.OnEvent(event)
				}

				req := t.NextRequest()
				if req == nil {
					continue
				}

				response, err := venueClient.submit(req)
				if err != nil {
					log.Warn().
						Int("trader_id", t.ID).
						Str("action", req.Action).
						Err(err).
						Msg("Request failed")
					continue
				}
				for _, event := range response.Events {
					t.OnEvent(event)
				}

				log.Info().
					Int("trader_id", t.ID).
					Str("action", req.Action).
					Int64("balance", t.Balance).
					Int64("position", t.Position).
					Int64("book_position", t.BookPosition).
					Msg("Trader state")
			}
		}(id)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Stopping trader simulation")
	close(done)
	wg.Wait()
	logger.CloseLogger()
}
