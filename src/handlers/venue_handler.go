package handlers

import (
	"errors"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"trade-venue/src/engine"
	"trade-venue/src/feed"
	"trade-venue/src/models"
)

// VenueHandler is the HTTP surface over the Exchange. Events addressed to the
// requesting participant return inline in the response; events addressed to a
// counterparty (the resting side of a trade) are published to the feed and
// picked up through the events endpoint.
type VenueHandler struct {
	Exchange *engine.Exchange
	Feed     *feed.Feed
	Symbol   string

	StartTime       time.Time
	OrdersReceived  int64
	OrdersRejected  int64
	OrdersCancelled int64
	TradesExecuted  int64

	latencies    []time.Duration
	latenciesMu  sync.RWMutex
	maxLatencies int
}

func NewVenueHandler(exchange *engine.Exchange, eventFeed *feed.Feed, symbol string) *VenueHandler {
	maxLatencies := 10000
	if envMax := os.Getenv("METRICS_MAX_LATENCIES"); envMax != "" {
		if parsed, err := strconv.Atoi(envMax); err == nil && parsed > 0 {
			maxLatencies = parsed
		}
	}

	return &VenueHandler{
		Exchange:     exchange,
		Feed:         eventFeed,
		Symbol:       symbol,
		StartTime:    time.Now(),
		latencies:    make([]time.Duration, 0, maxLatencies),
		maxLatencies: maxLatencies,
	}
}

func (h *VenueHandler) buildOrder(req *models.PlaceOrderRequest) (*engine.Order, error) {
	symbol := req.Symbol
	if symbol == "" {
		symbol = h.Symbol
	}
	side := engine.OrderSide(req.Side)
	timestamp := time.Now().UnixNano()

	switch engine.OrderType(req.Type) {
	case engine.TypeLimit:
		return engine.NewLimitOrder(req.ParticipantID, symbol, req.Quantity, req.Price, side, timestamp)
	case engine.TypeMarket:
		return engine.NewMarketOrder(req.ParticipantID, symbol, req.Quantity, side, timestamp)
	case engine.TypeIOC:
		return engine.NewIOCOrder(req.ParticipantID, symbol, req.Quantity, req.Price, side, timestamp)
	default:
		return nil, engine.ErrUndefinedOrderType
	}
}

func orderInfo(order *engine.Order) *models.OrderInfo {
	return &models.OrderInfo{
		ParticipantID: order.ParticipantID,
		Symbol:        order.Symbol,
		Side:          string(order.Side),
		Type:          string(order.Type),
		Price:         order.Price,
		Quantity:      order.Quantity,
		Timestamp:     order.Timestamp,
	}
}

func fillInfo(fill *engine.Fill) *models.FillInfo {
	return &models.FillInfo{
		TradeID:          fill.TradeID,
		ParticipantID:    fill.ParticipantID,
		Symbol:           fill.Symbol,
		Side:             string(fill.Side),
		Price:            fill.Price,
		Quantity:         fill.Quantity,
		Timestamp:        fill.Timestamp,
		IsLimitRemainder: fill.IsLimitRemainder,
	}
}

func eventInfo(event engine.Event) models.EventInfo {
	info := models.EventInfo{
		ParticipantID: event.ParticipantID,
		Action:        string(event.Action),
		Rejected:      event.Rejected,
		Success:       event.Success,
		Quantity:      event.Quantity,
		Balance:       event.Balance,
		Position:      event.Position,
		BookPosition:  event.BookPosition,
	}
	if event.Fill != nil {
		info.Fill = fillInfo(event.Fill)
	}
	if event.Order != nil {
		info.Order = orderInfo(event.Order)
	}
	return info
}

// dispatch splits events between the requester (returned inline) and other
// participants (published to the feed after the exchange lock was released).
func (h *VenueHandler) dispatch(requesterID int, events []engine.Event) []models.EventInfo {
	mine := make([]models.EventInfo, 0, len(events))
	var others []engine.Event
	for _, event := range events {
		if event.ParticipantID == requesterID {
			mine = append(mine, eventInfo(event))
		} else {
			others = append(others, event)
		}
	}
	if len(others) > 0 {
		h.Feed.Publish(others)
	}
	return mine
}

func (h *VenueHandler) PlaceOrder(c *fiber.Ctx) error {
	var req models.PlaceOrderRequest

	if err := c.BodyParser(&req); err != nil {
		log.Warn().
			Err(err).
			Str("ip", c.IP()).
			Msg("Invalid request: malformed JSON")
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: "Invalid request: malformed JSON",
		})
	}

	order, err := h.buildOrder(&req)
	if err != nil {
		log.Warn().
			Err(err).
			Int("participant_id", req.ParticipantID).
			Str("side", req.Side).
			Str("type", req.Type).
			Str("ip", c.IP()).
			Msg("Invalid order request")
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: err.Error(),
		})
	}

	atomic.AddInt64(&h.OrdersReceived, 1)
	startTime := time.Now()

	events := h.Exchange.SubmitNewOrder(order)

	h.recordLatency(time.Since(startTime))

	rejected := len(events) == 1 && events[0].Rejected
	fillCount := 0
	for _, event := range events {
		if event.Fill != nil {
			fillCount++
		}
	}
	atomic.AddInt64(&h.TradesExecuted, int64(fillCount/2))

	response := models.PlaceOrderResponse{
		ParticipantID: req.ParticipantID,
		Rejected:      rejected,
		Events:        h.dispatch(req.ParticipantID, events),
	}

	if rejected {
		atomic.AddInt64(&h.OrdersRejected, 1)
		log.Info().
			Int("participant_id", req.ParticipantID).
			Msg("Order rejected: participant already has a resting order")
		response.Message = "Order rejected: participant already has a resting order"
		return c.Status(fiber.StatusConflict).JSON(response)
	}

	log.Info().
		Int("participant_id", req.ParticipantID).
		Str("side", req.Side).
		Str("type", req.Type).
		Int64("price", req.Price).
		Int64("quantity", req.Quantity).
		Int("trades", fillCount/2).
		Int64("residual", order.Quantity).
		Msg("Order processed")

	return c.Status(fiber.StatusOK).JSON(response)
}

func (h *VenueHandler) AmendOrder(c *fiber.Ctx) error {
	var req models.AmendOrderRequest

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: "Invalid request: malformed JSON",
		})
	}

	event := h.Exchange.AmendOrder(req.ParticipantID, req.Quantity)

	log.Info().
		Int("participant_id", req.ParticipantID).
		Int64("quantity", req.Quantity).
		Bool("success", event.Success).
		Msg("Amend processed")

	return c.Status(fiber.StatusOK).JSON(models.AmendOrderResponse{
		ParticipantID: req.ParticipantID,
		Success:       event.Success,
		Quantity:      event.Quantity,
	})
}

func (h *VenueHandler) CancelOrder(c *fiber.Ctx) error {
	participantID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: "Invalid participant id",
		})
	}

	event := h.Exchange.CancelOrder(participantID)
	if event.Success {
		atomic.AddInt64(&h.OrdersCancelled, 1)
	}

	log.Info().
		Int("participant_id", participantID).
		Bool("success", event.Success).
		Msg("Cancel processed")

	return c.Status(fiber.StatusOK).JSON(models.CancelOrderResponse{
		ParticipantID: participantID,
		Success:       event.Success,
	})
}

func (h *VenueHandler) QueryBalance(c *fiber.Ctx) error {
	participantID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: "Invalid participant id",
		})
	}

	event := h.Exchange.QueryBalance(participantID)

	return c.Status(fiber.StatusOK).JSON(models.BalanceResponse{
		ParticipantID: participantID,
		Balance:       event.Balance,
		Position:      event.Position,
		BookPosition:  event.BookPosition,
	})
}

// SubmitRequest is the action-tagged protocol entry point, mirroring the
// single request channel participants use. Unknown action tags are answered
// with the undefined-action error, not a protocol failure.
func (h *VenueHandler) SubmitRequest(c *fiber.Ctx) error {
	var req models.ActionRequest

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: "Invalid request: malformed JSON",
		})
	}

	exchangeReq := engine.Request{
		Action:        engine.ActionType(req.Action),
		ParticipantID: req.ParticipantID,
		Quantity:      req.Quantity,
	}

	if exchangeReq.Action == engine.ActionPlace {
		order, err := h.buildOrder(&models.PlaceOrderRequest{
			ParticipantID: req.ParticipantID,
			Symbol:        req.Symbol,
			Side:          req.Side,
			Type:          req.Type,
			Price:         req.Price,
			Quantity:      req.Quantity,
		})
		if err != nil {
			log.Warn().
				Err(err).
				Int("participant_id", req.ParticipantID).
				Msg("Invalid order request")
			return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
				Error: err.Error(),
			})
		}
		exchangeReq.Order = order
		atomic.AddInt64(&h.OrdersReceived, 1)
	}

	startTime := time.Now()
	events, err := h.Exchange.Handle(exchangeReq)
	if err != nil {
		if errors.Is(err, engine.ErrUndefinedAction) {
			log.Warn().
				Str("action", req.Action).
				Int("participant_id", req.ParticipantID).
				Msg("Undefined action")
			return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
				Error: engine.ErrUndefinedAction.Error(),
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{
			Error: "Internal server error",
		})
	}

	if exchangeReq.Action == engine.ActionPlace {
		h.recordLatency(time.Since(startTime))
		fillCount := 0
		for _, event := range events {
			if event.Fill != nil {
				fillCount++
			}
		}
		atomic.AddInt64(&h.TradesExecuted, int64(fillCount/2))
		if len(events) == 1 && events[0].Rejected {
			atomic.AddInt64(&h.OrdersRejected, 1)
		}
	}
	if exchangeReq.Action == engine.ActionCancel && len(events) == 1 && events[0].Success {
		atomic.AddInt64(&h.OrdersCancelled, 1)
	}

	return c.Status(fiber.StatusOK).JSON(models.EventsResponse{
		ParticipantID: req.ParticipantID,
		Events:        h.dispatch(req.ParticipantID, events),
	})
}

// DrainEvents returns and clears the queued events for one participant,
// typically counterparty fills from trades they did not initiate.
func (h *VenueHandler) DrainEvents(c *fiber.Ctx) error {
	participantID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: "Invalid participant id",
		})
	}

	events := h.Feed.Drain(participantID)
	infos := make([]models.EventInfo, 0, len(events))
	for _, event := range events {
		infos = append(infos, eventInfo(event))
	}

	return c.Status(fiber.StatusOK).JSON(models.EventsResponse{
		ParticipantID: participantID,
		Events:        infos,
	})
}

func (h *VenueHandler) GetBook(c *fiber.Ctx) error {
	defaultDepth := 10
	if envDepth := os.Getenv("BOOK_DEFAULT_DEPTH"); envDepth != "" {
		if parsed, err := strconv.Atoi(envDepth); err == nil && parsed > 0 {
			defaultDepth = parsed
		}
	}

	maxDepth := 1000
	if envMaxDepth := os.Getenv("BOOK_MAX_DEPTH"); envMaxDepth != "" {
		if parsed, err := strconv.Atoi(envMaxDepth); err == nil && parsed > 0 {
			maxDepth = parsed
		}
	}

	depthStr := c.Query("depth", strconv.Itoa(defaultDepth))
	depth, err := strconv.Atoi(depthStr)
	if err != nil || depth <= 0 {
		depth = defaultDepth
	}

	// edge case: enforce maximum depth limit
	if depth > maxDepth {
		depth = maxDepth
	}

	bidLevels, askLevels := h.Exchange.BookSnapshot(depth)

	bids := make([]models.BookLevelInfo, 0, len(bidLevels))
	for _, level := range bidLevels {
		bids = append(bids, models.BookLevelInfo{Price: level.Price, Quantity: level.Quantity})
	}

	asks := make([]models.BookLevelInfo, 0, len(askLevels))
	for _, level := range askLevels {
		asks = append(asks, models.BookLevelInfo{Price: level.Price, Quantity: level.Quantity})
	}

	return c.Status(fiber.StatusOK).JSON(models.BookResponse{
		Symbol:    h.Symbol,
		Timestamp: time.Now().UnixMilli(),
		Bids:      bids,
		Asks:      asks,
	})
}

func (h *VenueHandler) HealthCheck(c *fiber.Ctx) error {
	uptime := time.Since(h.StartTime).Seconds()

	return c.Status(fiber.StatusOK).JSON(models.HealthResponse{
		Status:        "healthy",
		UptimeSeconds: int64(uptime),
		RestingOrders: int64(h.Exchange.RestingOrders()),
	})
}

func (h *VenueHandler) Metrics(c *fiber.Ctx) error {
	p50, p99 := h.calculateLatencyPercentiles()
	balanceSum, positionSum, _ := h.Exchange.BalanceSum()

	return c.Status(fiber.StatusOK).JSON(models.MetricsResponse{
		OrdersReceived:         atomic.LoadInt64(&h.OrdersReceived),
		OrdersRejected:         atomic.LoadInt64(&h.OrdersRejected),
		OrdersCancelled:        atomic.LoadInt64(&h.OrdersCancelled),
		TradesExecuted:         atomic.LoadInt64(&h.TradesExecuted),
		RestingOrders:          int64(h.Exchange.RestingOrders()),
		LedgerBalanceSum:       balanceSum,
		LedgerPositionSum:      positionSum,
		LatencyP50Ms:           p50,
		LatencyP99Ms:           p99,
		ThroughputOrdersPerSec: h.calculateThroughput(),
	})
}

func (h *VenueHandler) recordLatency(latency time.Duration) {
	h.latenciesMu.Lock()
	defer h.latenciesMu.Unlock()

	h.latencies = append(h.latencies, latency)

	// edge case: maintain rolling window by removing oldest measurements
	if len(h.latencies) > h.maxLatencies {
		removeCount := len(h.latencies) - h.maxLatencies
		h.latencies = h.latencies[removeCount:]
	}
}

func (h *VenueHandler) calculateLatencyPercentiles() (p50, p99 float64) {
	h.latenciesMu.RLock()
	defer h.latenciesMu.RUnlock()

	if len(h.latencies) == 0 {
		return 0, 0
	}

	latenciesCopy := make([]time.Duration, len(h.latencies))
	copy(latenciesCopy, h.latencies)

	sort.Slice(latenciesCopy, func(i, j int) bool {
		return latenciesCopy[i] < latenciesCopy[j]
	})

	p50Index := int(float64(len(latenciesCopy)) * 0.50)
	p99Index := int(float64(len(latenciesCopy)) * 0.99)

	// edge case: ensure indices are within bounds
	if p50Index >= len(latenciesCopy) {
		p50Index = len(latenciesCopy) - 1
	}
	if p99Index >= len(latenciesCopy) {
		p99Index = len(latenciesCopy) - 1
	}

	p50 = float64(latenciesCopy[p50Index].Nanoseconds()) / 1e6
	p99 = float64(latenciesCopy[p99Index].Nanoseconds()) / 1e6

	return p50, p99
}

func (h *VenueHandler) calculateThroughput() float64 {
	uptime := time.Since(h.StartTime).Seconds()
	if uptime <= 0 {
		return 0
	}

	return float64(atomic.LoadInt64(&h.OrdersReceived)) / uptime
}
