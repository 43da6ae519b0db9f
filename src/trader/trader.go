package trader

import (
	"math/rand"

	"github.com/rs/zerolog/log"

	"trade-venue/src/engine"
	"trade-venue/src/models"
)

// Trader is one simulated participant. It tracks its own view of the world
// (cash, net position, quantity resting in the book) purely from the events
// the venue sends back, and decides its next request from that view. It knows
// nothing about the transport; a driver feeds it events and carries requests.
type Trader struct {
	ID     int
	Symbol string

	Balance      int64
	Position     int64
	BookPosition int64

	// fixed order sizing, amendments step the resting quantity down by
	// OrderQuantity until cancellation
	OrderQuantity int64
	LimitPrice    int64

	rng *rand.Rand
}

func New(id int, symbol string, startingBalance, orderQuantity, limitPrice int64, seed int64) *Trader {
	return &Trader{
		ID:            id,
		Symbol:        symbol,
		Balance:       startingBalance,
		OrderQuantity: orderQuantity,
		LimitPrice:    limitPrice,
		rng:           rand.New(rand.NewSource(seed)),
	}
}

func (t *Trader) randomSide() string {
	if t.rng.Intn(2) == 0 {
		return string(engine.SideBuy)
	}
	return string(engine.SideSell)
}

// NextRequest picks the trader's next action. With an order resting: 1-in-10
// cancel, 1-in-10 amend the quantity down one step, otherwise wait (nil).
// Amending below one step is a cancel instead, since amendments must keep the
// quantity positive. Flat: place an order of random side and random kind.
func (t *Trader) NextRequest() *models.ActionRequest {
	if t.BookPosition > 0 {
		roll := t.rng.Intn(10)
		if roll == 0 || t.BookPosition <= t.OrderQuantity {
			if roll > 1 {
				return nil
			}
			return &models.ActionRequest{
				Action:        string(engine.ActionCancel),
				ParticipantID: t.ID,
			}
		}
		if roll == 1 {
			return &models.ActionRequest{
				Action:        string(engine.ActionAmend),
				ParticipantID: t.ID,
				Quantity:      t.BookPosition - t.OrderQuantity,
			}
		}
		return nil
	}

	req := &models.ActionRequest{
		Action:        string(engine.ActionPlace),
		ParticipantID: t.ID,
		Symbol:        t.Symbol,
		Side:          t.randomSide(),
		Quantity:      t.OrderQuantity,
	}
	switch t.rng.Intn(3) {
	case 0:
		req.Type = string(engine.TypeLimit)
		req.Price = t.LimitPrice
	case 1:
		req.Type = string(engine.TypeMarket)
	default:
		req.Type = string(engine.TypeIOC)
		req.Price = t.LimitPrice
	}
	return req
}

// OnEvent reconciles the trader's view against one venue event.
func (t *Trader) OnEvent(event models.EventInfo) {
	switch engine.ActionType(event.Action) {
	case engine.ActionPlace:
		if event.Rejected {
			// the venue kept the existing resting order, nothing changes
			return
		}
		if event.Fill != nil {
			posDelta := event.Fill.Quantity
			if event.Fill.Side == string(engine.SideSell) {
				posDelta = -posDelta
			}
			t.Position += posDelta
			t.Balance -= event.Fill.Price * posDelta
			// a fill against our resting quantity shrinks our book position
			if event.Fill.IsLimitRemainder {
				t.BookPosition -= event.Fill.Quantity
				if t.BookPosition < 0 {
					t.BookPosition = 0
				}
			}
			return
		}
		if event.Order != nil && event.Order.Type == string(engine.TypeLimit) {
			// resting acknowledgment: the residual now sits in the book
			t.BookPosition += event.Order.Quantity
		}
	case engine.ActionAmend:
		if event.Success {
			t.BookPosition = event.Quantity
		}
	case engine.ActionCancel:
		if event.Success {
			t.BookPosition = 0
		}
	case engine.ActionBalance:
		// adopt the venue's authoritative numbers
		t.Balance = event.Balance
		t.Position = event.Position
		t.BookPosition = event.BookPosition
	default:
		log.Warn().
			Int("trader_id", t.ID).
			Str("action", event.Action).
			Msg("Undefined response action, ignoring")
	}
}
