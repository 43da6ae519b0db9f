package engine

import (
	"sync"

	"github.com/rs/zerolog/log"
)

type ActionType string

const (
	ActionPlace   ActionType = "PLACE"
	ActionAmend   ActionType = "AMEND"
	ActionCancel  ActionType = "CANCEL"
	ActionBalance ActionType = "BALANCE"
)

// Request is one validated inbound participant request. The transport layer
// guarantees structural well-formedness; an unrecognized Action tag is still
// answered here with ErrUndefinedAction.
type Request struct {
	Action        ActionType
	ParticipantID int
	Order         *Order // PLACE only
	Quantity      int64  // AMEND only
}

// Event is one outbound response addressed to a single participant. Exactly
// one of the payload groups is meaningful, selected by Action:
//
//	PLACE:   Fill (one side of a trade) or Order (resting ack / rejected echo)
//	         with Rejected marking the duplicate-resting-order rejection
//	AMEND:   Success and the requested Quantity
//	CANCEL:  Success
//	BALANCE: Balance, Position, BookPosition
type Event struct {
	ParticipantID int
	Action        ActionType

	Fill     *Fill
	Order    *Order
	Rejected bool

	Success  bool
	Quantity int64

	Balance      int64
	Position     int64
	BookPosition int64
}

// Account is one participant's ledger entry: cash balance in cents and net
// position in instrument units, both signed.
type Account struct {
	Balance  int64
	Position int64
}

// Exchange routes validated requests to the matching engine and owns the book
// and the account ledger. All four operations run under one exclusive lock
// held for the full request (validate, match, ledger update, event
// construction), which makes the at-most-one-resting-order and zero-sum
// invariants hold at every observable boundary. Event delivery to
// participants happens after the lock is released.
type Exchange struct {
	mu              sync.Mutex
	engine          *MatchingEngine
	accounts        map[int]*Account
	startingBalance int64
}

func NewExchange(startingBalance int64) *Exchange {
	return &Exchange{
		engine:          NewMatchingEngine(),
		accounts:        make(map[int]*Account),
		startingBalance: startingBalance,
	}
}

func (e *Exchange) account(participantID int) *Account {
	acct, exists := e.accounts[participantID]
	if !exists {
		acct = &Account{Balance: e.startingBalance}
		e.accounts[participantID] = acct
	}
	return acct
}

// Handle dispatches a request on its action tag. ErrUndefinedAction is the
// only error it returns; every expected business outcome (rejection, failed
// amend, unknown resting order) comes back as events, never as an error.
func (e *Exchange) Handle(req Request) ([]Event, error) {
	switch req.Action {
	case ActionPlace:
		return e.SubmitNewOrder(req.Order), nil
	case ActionAmend:
		return []Event{e.AmendOrder(req.ParticipantID, req.Quantity)}, nil
	case ActionCancel:
		return []Event{e.CancelOrder(req.ParticipantID)}, nil
	case ActionBalance:
		return []Event{e.QueryBalance(req.ParticipantID)}, nil
	default:
		return nil, ErrUndefinedAction
	}
}

// SubmitNewOrder validates the at-most-one-resting-order invariant, matches,
// applies the ledger deltas for every fill, and returns one event per
// affected participant. A LIMIT residual that rested produces one extra
// resting-ack event to the submitter.
func (e *Exchange) SubmitNewOrder(order *Order) []Event {
	e.mu.Lock()
	defer e.mu.Unlock()

	// edge case: a participant with a resting order cannot place another
	if _, err := e.engine.Find(order.ParticipantID); err == nil {
		return []Event{{
			ParticipantID: order.ParticipantID,
			Action:        ActionPlace,
			Order:         order,
			Rejected:      true,
		}}
	}

	fills, err := e.engine.HandleOrder(order)
	if err != nil {
		log.Warn().
			Int("participant_id", order.ParticipantID).
			Str("type", string(order.Type)).
			Err(err).
			Msg("Order rejected by matching engine")
		return []Event{{
			ParticipantID: order.ParticipantID,
			Action:        ActionPlace,
			Order:         order,
			Rejected:      true,
		}}
	}

	events := make([]Event, 0, len(fills)+1)
	for i := range fills {
		fill := &fills[i]
		posDelta := fill.SignedQuantity()
		acct := e.account(fill.ParticipantID)
		acct.Position += posDelta
		acct.Balance -= fill.Price * posDelta
		events = append(events, Event{
			ParticipantID: fill.ParticipantID,
			Action:        ActionPlace,
			Fill:          fill,
		})
	}

	// edge case: MARKET/IOC residual is dropped silently, only a LIMIT
	// residual rests and gets acknowledged
	if order.Quantity > 0 && order.Type == TypeLimit {
		events = append(events, Event{
			ParticipantID: order.ParticipantID,
			Action:        ActionPlace,
			Order:         order,
		})
	}
	return events
}

// AmendOrder reduces the participant's resting quantity. Failure is reported
// in the event, with no ledger or book effect.
func (e *Exchange) AmendOrder(participantID int, quantity int64) Event {
	e.mu.Lock()
	defer e.mu.Unlock()

	err := e.engine.Amend(participantID, quantity)
	return Event{
		ParticipantID: participantID,
		Action:        ActionAmend,
		Success:       err == nil,
		Quantity:      quantity,
	}
}

// CancelOrder removes the participant's resting order. Failure is reported
// in the event, with no ledger or book effect.
func (e *Exchange) CancelOrder(participantID int) Event {
	e.mu.Lock()
	defer e.mu.Unlock()

	err := e.engine.Cancel(participantID)
	return Event{
		ParticipantID: participantID,
		Action:        ActionCancel,
		Success:       err == nil,
	}
}

// QueryBalance reports the participant's balance, net position, and the
// quantity currently resting in the book (0 if none).
func (e *Exchange) QueryBalance(participantID int) Event {
	e.mu.Lock()
	defer e.mu.Unlock()

	var bookPosition int64
	if order, err := e.engine.Find(participantID); err == nil {
		bookPosition = order.Quantity
	}
	acct := e.account(participantID)
	return Event{
		ParticipantID: participantID,
		Action:        ActionBalance,
		Success:       true,
		Balance:       acct.Balance,
		Position:      acct.Position,
		BookPosition:  bookPosition,
	}
}

// BookSnapshot exposes aggregated depth for the public book endpoint.
func (e *Exchange) BookSnapshot(depth int) (bids []BookLevel, asks []BookLevel) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.engine.Book().Snapshot(depth)
}

// RestingOrders reports how many orders currently rest across both sides.
func (e *Exchange) RestingOrders() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	book := e.engine.Book()
	return book.BidCount() + book.AskCount()
}

// BalanceSum returns the ledger-wide sums used by the audit log: every trade
// is zero-sum, so the balance sum must equal accounts*startingBalance and the
// position sum must stay 0.
func (e *Exchange) BalanceSum() (balance int64, position int64, accounts int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, acct := range e.accounts {
		balance += acct.Balance
		position += acct.Position
	}
	return balance, position, len(e.accounts)
}
