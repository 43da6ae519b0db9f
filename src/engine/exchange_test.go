package engine

import (
	"testing"
)

const testStartingBalance int64 = 100_000_000

func newTestExchange() *Exchange {
	return NewExchange(testStartingBalance)
}

func placeLimit(t *testing.T, e *Exchange, id int, quantity, price int64, side OrderSide, timestamp int64) []Event {
	t.Helper()
	order, err := NewLimitOrder(id, "AAPL", quantity, price, side, timestamp)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	return e.SubmitNewOrder(order)
}

// Scenario: participant 2 rests a sell 100@10, participant 3 lifts 50 with a
// market buy. Two fills, the ask reduces to 50, and the ledger moves 500
// cash from 3 to 2 and 50 units from 2 to 3.
func TestSubmitNewOrderLedgerTransfer(t *testing.T) {
	e := newTestExchange()

	events := placeLimit(t, e, 2, 100, 10, SideSell, 1)
	if len(events) != 1 || events[0].Order == nil || events[0].Rejected {
		t.Fatalf("Expected a single resting ack, got: %+v", events)
	}

	market, _ := NewMarketOrder(3, "AAPL", 50, SideBuy, 2)
	events = e.SubmitNewOrder(market)
	if len(events) != 2 {
		t.Fatalf("Expected 2 fill events, got: %d", len(events))
	}
	if events[0].ParticipantID != 2 || events[0].Fill == nil || events[0].Fill.Quantity != 50 || events[0].Fill.Price != 10 {
		t.Errorf("Unexpected resting-side event: %+v", events[0])
	}
	if events[1].ParticipantID != 3 || events[1].Fill == nil || events[1].Fill.Quantity != 50 {
		t.Errorf("Unexpected aggressor event: %+v", events[1])
	}

	seller := e.QueryBalance(2)
	if seller.Balance != testStartingBalance+500 || seller.Position != -50 {
		t.Errorf("Expected seller balance +500 position -50, got: balance=%d position=%d",
			seller.Balance-testStartingBalance, seller.Position)
	}
	if seller.BookPosition != 50 {
		t.Errorf("Expected seller book position 50, got: %d", seller.BookPosition)
	}

	buyer := e.QueryBalance(3)
	if buyer.Balance != testStartingBalance-500 || buyer.Position != 50 {
		t.Errorf("Expected buyer balance -500 position +50, got: balance=%d position=%d",
			buyer.Balance-testStartingBalance, buyer.Position)
	}
	if buyer.BookPosition != 0 {
		t.Errorf("Expected buyer book position 0, got: %d", buyer.BookPosition)
	}
}

// Zero-sum: for every processed trade the counterparties' balance deltas sum
// to 0 and their position deltas sum to 0.
func TestLedgerZeroSum(t *testing.T) {
	e := newTestExchange()

	placeLimit(t, e, 1, 300, 1000, SideSell, 1)
	placeLimit(t, e, 2, 100, 995, SideSell, 2)
	placeLimit(t, e, 3, 250, 1000, SideBuy, 3)

	ioc, _ := NewIOCOrder(4, "AAPL", 500, 1000, SideBuy, 4)
	e.SubmitNewOrder(ioc)

	balanceSum, positionSum, accounts := e.BalanceSum()
	if positionSum != 0 {
		t.Errorf("Expected position sum 0, got: %d", positionSum)
	}
	if balanceSum != int64(accounts)*testStartingBalance {
		t.Errorf("Expected balance sum %d, got: %d", int64(accounts)*testStartingBalance, balanceSum)
	}
}

// A participant with quantity still resting cannot place a second order.
func TestSubmitNewOrderRejectsDuplicateResting(t *testing.T) {
	e := newTestExchange()
	placeLimit(t, e, 5, 200, 20, SideBuy, 1)

	events := placeLimit(t, e, 5, 100, 30, SideBuy, 2)
	if len(events) != 1 {
		t.Fatalf("Expected single rejection event, got: %d", len(events))
	}
	if !events[0].Rejected || events[0].ParticipantID != 5 {
		t.Errorf("Expected rejection addressed to participant 5, got: %+v", events[0])
	}

	// book unchanged: original order still resting at its original quantity
	balance := e.QueryBalance(5)
	if balance.BookPosition != 200 {
		t.Errorf("Expected original order untouched at qty 200, got: %d", balance.BookPosition)
	}
	if balance.Balance != testStartingBalance {
		t.Errorf("Expected no ledger effect, got balance: %d", balance.Balance)
	}
}

func TestAmendOrderEvents(t *testing.T) {
	e := newTestExchange()
	placeLimit(t, e, 5, 200, 20, SideBuy, 1)

	event := e.AmendOrder(5, 150)
	if !event.Success || event.Quantity != 150 {
		t.Errorf("Expected successful amend to 150, got: %+v", event)
	}

	// amend must strictly reduce
	event = e.AmendOrder(5, 250)
	if event.Success {
		t.Error("Expected amend to 250 to fail")
	}
	if e.QueryBalance(5).BookPosition != 150 {
		t.Errorf("Expected resting quantity unchanged at 150, got: %d", e.QueryBalance(5).BookPosition)
	}

	event = e.AmendOrder(99, 10)
	if event.Success {
		t.Error("Expected amend for unknown participant to fail")
	}
}

func TestCancelOrderEvents(t *testing.T) {
	e := newTestExchange()
	placeLimit(t, e, 5, 200, 20, SideBuy, 1)

	event := e.CancelOrder(5)
	if !event.Success {
		t.Errorf("Expected cancel to succeed, got: %+v", event)
	}
	if e.RestingOrders() != 0 {
		t.Errorf("Expected empty book, got: %d resting", e.RestingOrders())
	}

	event = e.CancelOrder(99)
	if event.Success {
		t.Error("Expected cancel for unknown participant to fail")
	}
}

// Amend and cancel have no ledger effect.
func TestAmendCancelNoLedgerEffect(t *testing.T) {
	e := newTestExchange()
	placeLimit(t, e, 5, 200, 20, SideBuy, 1)
	e.AmendOrder(5, 100)
	e.CancelOrder(5)

	balance := e.QueryBalance(5)
	if balance.Balance != testStartingBalance || balance.Position != 0 {
		t.Errorf("Expected untouched ledger, got: balance=%d position=%d", balance.Balance, balance.Position)
	}
}

func TestQueryBalanceNewParticipant(t *testing.T) {
	e := newTestExchange()

	event := e.QueryBalance(42)
	if event.Balance != testStartingBalance || event.Position != 0 || event.BookPosition != 0 {
		t.Errorf("Expected fresh account, got: %+v", event)
	}
}

func TestHandleDispatch(t *testing.T) {
	e := newTestExchange()

	order, _ := NewLimitOrder(1, "AAPL", 100, 1000, SideBuy, 1)
	events, err := e.Handle(Request{Action: ActionPlace, ParticipantID: 1, Order: order})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(events) != 1 || events[0].Order == nil {
		t.Fatalf("Expected resting ack, got: %+v", events)
	}

	events, err = e.Handle(Request{Action: ActionAmend, ParticipantID: 1, Quantity: 50})
	if err != nil || len(events) != 1 || !events[0].Success {
		t.Errorf("Expected successful amend, got: events=%+v err=%v", events, err)
	}

	events, err = e.Handle(Request{Action: ActionCancel, ParticipantID: 1})
	if err != nil || len(events) != 1 || !events[0].Success {
		t.Errorf("Expected successful cancel, got: events=%+v err=%v", events, err)
	}

	events, err = e.Handle(Request{Action: ActionBalance, ParticipantID: 1})
	if err != nil || len(events) != 1 || events[0].Balance != testStartingBalance {
		t.Errorf("Expected balance event, got: events=%+v err=%v", events, err)
	}
}

// A request tag outside the recognized action set is the one hard failure.
func TestHandleUndefinedAction(t *testing.T) {
	e := newTestExchange()

	_, err := e.Handle(Request{Action: ActionType("TELEPORT"), ParticipantID: 1})
	if err != ErrUndefinedAction {
		t.Errorf("Expected ErrUndefinedAction, got: %v", err)
	}
}

// A LIMIT aggressor that partially fills gets its fill events plus one
// resting ack carrying the residual quantity.
func TestSubmitNewOrderPartialFillAck(t *testing.T) {
	e := newTestExchange()
	placeLimit(t, e, 2, 100, 1000, SideSell, 1)

	events := placeLimit(t, e, 3, 300, 1000, SideBuy, 2)
	if len(events) != 3 {
		t.Fatalf("Expected 2 fills + 1 resting ack, got: %d", len(events))
	}
	ack := events[2]
	if ack.ParticipantID != 3 || ack.Order == nil || ack.Order.Quantity != 200 {
		t.Errorf("Expected resting ack qty 200 for participant 3, got: %+v", ack)
	}
}

// An IOC residual is discarded with no resting ack.
func TestSubmitNewOrderIOCNoAck(t *testing.T) {
	e := newTestExchange()
	placeLimit(t, e, 2, 50, 10, SideSell, 1)

	ioc, _ := NewIOCOrder(4, "AAPL", 80, 10, SideBuy, 2)
	events := e.SubmitNewOrder(ioc)
	if len(events) != 2 {
		t.Fatalf("Expected exactly the 2 fill events, got: %d", len(events))
	}
	if e.QueryBalance(4).BookPosition != 0 {
		t.Errorf("Expected no resting order for participant 4, got: %d", e.QueryBalance(4).BookPosition)
	}
}
