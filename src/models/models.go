package models

type PlaceOrderRequest struct {
	ParticipantID int    `json:"participant_id"`
	Symbol        string `json:"symbol"`
	Side          string `json:"side"`
	Type          string `json:"type"`
	Price         int64  `json:"price"` // price in cents, required for LIMIT/IOC, 0 for MARKET
	Quantity      int64  `json:"quantity"`
}

// ActionRequest is the action-tagged protocol message: one request channel
// per participant, with the action selecting which fields are meaningful.
type ActionRequest struct {
	Action        string `json:"action"`
	ParticipantID int    `json:"participant_id"`
	Symbol        string `json:"symbol,omitempty"`
	Side          string `json:"side,omitempty"`
	Type          string `json:"type,omitempty"`
	Price         int64  `json:"price,omitempty"`
	Quantity      int64  `json:"quantity,omitempty"`
}

type AmendOrderRequest struct {
	ParticipantID int   `json:"participant_id"`
	Quantity      int64 `json:"quantity"`
}

// EventInfo is the wire form of one exchange event. Action selects which of
// the optional payload groups is present.
type EventInfo struct {
	ParticipantID int    `json:"participant_id"`
	Action        string `json:"action"`

	// PLACE
	Fill     *FillInfo  `json:"fill,omitempty"`
	Order    *OrderInfo `json:"order,omitempty"`
	Rejected bool       `json:"rejected,omitempty"`

	// AMEND / CANCEL
	Success  bool  `json:"success,omitempty"`
	Quantity int64 `json:"quantity,omitempty"`

	// BALANCE
	Balance      int64 `json:"balance,omitempty"`
	Position     int64 `json:"position,omitempty"`
	BookPosition int64 `json:"book_position,omitempty"`
}

type FillInfo struct {
	TradeID          string `json:"trade_id"`
	ParticipantID    int    `json:"participant_id"`
	Symbol           string `json:"symbol"`
	Side             string `json:"side"`
	Price            int64  `json:"price"` // execution price in cents
	Quantity         int64  `json:"quantity"`
	Timestamp        int64  `json:"timestamp"` // unix timestamp in nanoseconds
	IsLimitRemainder bool   `json:"is_limit_remainder"`
}

type OrderInfo struct {
	ParticipantID int    `json:"participant_id"`
	Symbol        string `json:"symbol"`
	Side          string `json:"side"`
	Type          string `json:"type"`
	Price         int64  `json:"price,omitempty"` // absent for MARKET
	Quantity      int64  `json:"quantity"`
	Timestamp     int64  `json:"timestamp"` // unix timestamp in nanoseconds
}

type PlaceOrderResponse struct {
	ParticipantID int         `json:"participant_id"`
	Rejected      bool        `json:"rejected"`
	Message       string      `json:"message,omitempty"`
	Events        []EventInfo `json:"events"`
}

type AmendOrderResponse struct {
	ParticipantID int   `json:"participant_id"`
	Success       bool  `json:"success"`
	Quantity      int64 `json:"quantity"`
}

type CancelOrderResponse struct {
	ParticipantID int  `json:"participant_id"`
	Success       bool `json:"success"`
}

type BalanceResponse struct {
	ParticipantID int   `json:"participant_id"`
	Balance       int64 `json:"balance"` // in cents
	Position      int64 `json:"position"`
	BookPosition  int64 `json:"book_position"`
}

type EventsResponse struct {
	ParticipantID int         `json:"participant_id"`
	Events        []EventInfo `json:"events"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type BookLevelInfo struct {
	Price    int64 `json:"price"`    // price in cents
	Quantity int64 `json:"quantity"` // aggregated quantity at this price
}

type BookResponse struct {
	Symbol    string          `json:"symbol"`
	Timestamp int64           `json:"timestamp"` // unix timestamp in milliseconds
	Bids      []BookLevelInfo `json:"bids"`      // sorted descending (highest first)
	Asks      []BookLevelInfo `json:"asks"`      // sorted ascending (lowest first)
}

type HealthResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	RestingOrders int64  `json:"resting_orders"`
}

type MetricsResponse struct {
	OrdersReceived         int64   `json:"orders_received"`
	OrdersRejected         int64   `json:"orders_rejected"`
	OrdersCancelled        int64   `json:"orders_cancelled"`
	TradesExecuted         int64   `json:"trades_executed"`
	RestingOrders          int64   `json:"resting_orders"`
	LedgerBalanceSum       int64   `json:"ledger_balance_sum"`
	LedgerPositionSum      int64   `json:"ledger_position_sum"`
	LatencyP50Ms           float64 `json:"latency_p50_ms"`
	LatencyP99Ms           float64 `json:"latency_p99_ms"`
	ThroughputOrdersPerSec float64 `json:"throughput_orders_per_sec"`
}
