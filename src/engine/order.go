package engine

import "errors"

type OrderSide string

const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

type OrderType string

const (
	TypeLimit  OrderType = "LIMIT"
	TypeMarket OrderType = "MARKET"
	TypeIOC    OrderType = "IOC"
)

// Validation and lookup errors. The Exchange converts these into failure
// responses at the boundary of a single request; they never cross the API.
var (
	ErrNonPositiveQuantity = errors.New("quantity must be positive")
	ErrNonPositivePrice    = errors.New("price must be positive")
	ErrInvalidSide         = errors.New("side must be BUY or SELL")
	ErrUndefinedOrderType  = errors.New("undefined order type")
	ErrNoSuchRestingOrder  = errors.New("no resting order for this participant")
	ErrQuantityNotReduced  = errors.New("amendment must reduce quantity")
	ErrUndefinedAction     = errors.New("undefined action")
)

// Order is a tagged variant over the LIMIT/MARKET/IOC kinds. The participant
// id doubles as the order's book identity: a participant may have at most one
// resting order at any time, which is what makes amend/cancel-by-participant
// well defined. That invariant is enforced by the Exchange, not the book.
//
// edge case: price stored as int64 in cents to avoid floating-point precision errors
type Order struct {
	ParticipantID int
	Symbol        string
	Side          OrderSide
	Type          OrderType
	Price         int64 // price in cents, required for LIMIT/IOC, 0 for MARKET
	Quantity      int64 // decremented in place during partial fills, never negative
	Timestamp     int64 // submission time in nanos, tie-break in priority ordering
}

func validateCommon(quantity int64, side OrderSide) error {
	if quantity <= 0 {
		return ErrNonPositiveQuantity
	}
	if side != SideBuy && side != SideSell {
		return ErrInvalidSide
	}
	return nil
}

func NewLimitOrder(participantID int, symbol string, quantity, price int64, side OrderSide, timestamp int64) (*Order, error) {
	if err := validateCommon(quantity, side); err != nil {
		return nil, err
	}
	if price <= 0 {
		return nil, ErrNonPositivePrice
	}
	return &Order{
		ParticipantID: participantID,
		Symbol:        symbol,
		Side:          side,
		Type:          TypeLimit,
		Price:         price,
		Quantity:      quantity,
		Timestamp:     timestamp,
	}, nil
}

func NewMarketOrder(participantID int, symbol string, quantity int64, side OrderSide, timestamp int64) (*Order, error) {
	if err := validateCommon(quantity, side); err != nil {
		return nil, err
	}
	return &Order{
		ParticipantID: participantID,
		Symbol:        symbol,
		Side:          side,
		Type:          TypeMarket,
		Quantity:      quantity,
		Timestamp:     timestamp,
	}, nil
}

func NewIOCOrder(participantID int, symbol string, quantity, price int64, side OrderSide, timestamp int64) (*Order, error) {
	if err := validateCommon(quantity, side); err != nil {
		return nil, err
	}
	if price <= 0 {
		return nil, ErrNonPositivePrice
	}
	return &Order{
		ParticipantID: participantID,
		Symbol:        symbol,
		Side:          side,
		Type:          TypeIOC,
		Price:         price,
		Quantity:      quantity,
		Timestamp:     timestamp,
	}, nil
}

// Fill records one side of an executed trade. Every trade produces two fills
// sharing a TradeID, one per counterparty, at the same price and quantity.
type Fill struct {
	TradeID       string
	ParticipantID int
	Symbol        string
	Side          OrderSide
	Price         int64 // execution price in cents (resting order's price)
	Quantity      int64
	Timestamp     int64
	// IsLimitRemainder reports whether this fill consumed quantity that was
	// (or would have been) resting in the book: true for the resting side of
	// a trade and for a LIMIT aggressor. Participants use it to reconcile
	// their book-position accounting.
	IsLimitRemainder bool
}

// SignedQuantity is +quantity for a BUY fill and -quantity for a SELL fill,
// the position delta applied to the filled participant's account.
func (f *Fill) SignedQuantity() int64 {
	if f.Side == SideBuy {
		return f.Quantity
	}
	return -f.Quantity
}
