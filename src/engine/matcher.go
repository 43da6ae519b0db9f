package engine

import (
	"time"

	"github.com/google/uuid"
)

// MatchingEngine runs price-time-priority matching over a single Book. It is
// a pure in-memory algorithm with no locking of its own; the Exchange
// serializes all calls behind its request lock.
type MatchingEngine struct {
	book *Book
}

func NewMatchingEngine() *MatchingEngine {
	return &MatchingEngine{book: NewBook()}
}

func (m *MatchingEngine) Book() *Book {
	return m.book
}

// HandleOrder dispatches an incoming order on its type tag, returning the
// fills produced in execution order. The book is mutated in place: matched
// resting orders are reduced or removed, and a LIMIT residual is inserted
// to rest.
func (m *MatchingEngine) HandleOrder(order *Order) ([]Fill, error) {
	switch order.Type {
	case TypeLimit:
		return m.handleLimitOrder(order)
	case TypeMarket:
		return m.handleMarketOrder(order)
	case TypeIOC:
		return m.handleIOCOrder(order)
	default:
		return nil, ErrUndefinedOrderType
	}
}

// crosses reports whether the incoming order's limit price permits a trade
// against the best opposing resting order.
func crosses(order, resting *Order) bool {
	if order.Side == SideSell {
		return resting.Price >= order.Price
	}
	return resting.Price <= order.Price
}

// bestOpposing returns the best resting order on the side the incoming order
// trades against.
func (m *MatchingEngine) bestOpposing(order *Order) (*Order, bool) {
	if order.Side == SideSell {
		return m.book.BestBid()
	}
	return m.book.BestAsk()
}

// executeTrade emits the fill pair for one trade, resting side first. The
// resting order's price always governs the execution price, so the aggressor
// gets any price improvement.
func (m *MatchingEngine) executeTrade(fills []Fill, resting, order *Order, quantity int64) []Fill {
	tradeID := uuid.New().String()
	now := time.Now().UnixNano()
	return append(fills,
		Fill{
			TradeID:          tradeID,
			ParticipantID:    resting.ParticipantID,
			Symbol:           resting.Symbol,
			Side:             resting.Side,
			Price:            resting.Price,
			Quantity:         quantity,
			Timestamp:        now,
			IsLimitRemainder: true, // resting orders are always LIMIT
		},
		Fill{
			TradeID:          tradeID,
			ParticipantID:    order.ParticipantID,
			Symbol:           order.Symbol,
			Side:             order.Side,
			Price:            resting.Price,
			Quantity:         quantity,
			Timestamp:        now,
			IsLimitRemainder: order.Type == TypeLimit,
		},
	)
}

// matchAgainstBook is the shared crossing loop. priceTest false makes the
// incoming order cross unconditionally (MARKET).
func (m *MatchingEngine) matchAgainstBook(order *Order, priceTest bool) []Fill {
	fills := make([]Fill, 0, 2)
	for order.Quantity > 0 {
		resting, ok := m.bestOpposing(order)
		if !ok {
			break
		}
		if priceTest && !crosses(order, resting) {
			break
		}
		if resting.Quantity > order.Quantity {
			fills = m.executeTrade(fills, resting, order, order.Quantity)
			resting.Quantity -= order.Quantity
			order.Quantity = 0
			// resting keeps its reduced quantity and stays best on its side
			break
		}
		fills = m.executeTrade(fills, resting, order, resting.Quantity)
		order.Quantity -= resting.Quantity
		m.book.Remove(resting.ParticipantID)
	}
	return fills
}

// handleLimitOrder matches as far as the limit price allows and rests any
// residual quantity in the book.
func (m *MatchingEngine) handleLimitOrder(order *Order) ([]Fill, error) {
	fills := m.matchAgainstBook(order, true)
	if order.Quantity > 0 {
		if err := m.InsertResting(order); err != nil {
			return fills, err
		}
	}
	return fills, nil
}

// handleMarketOrder crosses unconditionally until the order is exhausted or
// the opposing book is empty. Any residual is dropped: it neither rests nor
// produces a shortfall signal beyond the fills already emitted.
func (m *MatchingEngine) handleMarketOrder(order *Order) ([]Fill, error) {
	return m.matchAgainstBook(order, false), nil
}

// handleIOCOrder matches like a limit order but discards the residual
// instead of resting it.
func (m *MatchingEngine) handleIOCOrder(order *Order) ([]Fill, error) {
	return m.matchAgainstBook(order, true), nil
}

// InsertResting places a LIMIT order in the book at its price-time position.
func (m *MatchingEngine) InsertResting(order *Order) error {
	if order.Type != TypeLimit {
		return ErrUndefinedOrderType
	}
	return m.book.Insert(order)
}

// Find returns the participant's resting order, if any.
func (m *MatchingEngine) Find(participantID int) (*Order, error) {
	return m.book.Find(participantID)
}

// Amend reduces a resting order's quantity in place. The order keeps its
// book position: price and timestamp are untouched, so no re-sort happens.
func (m *MatchingEngine) Amend(participantID int, quantity int64) error {
	if quantity <= 0 {
		return ErrNonPositiveQuantity
	}
	order, err := m.book.Find(participantID)
	if err != nil {
		return err
	}
	if quantity >= order.Quantity {
		return ErrQuantityNotReduced
	}
	order.Quantity = quantity
	return nil
}

// Cancel removes the participant's resting order from whichever side holds it.
func (m *MatchingEngine) Cancel(participantID int) error {
	_, err := m.book.Remove(participantID)
	return err
}
