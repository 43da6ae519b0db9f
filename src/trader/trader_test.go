package trader

import (
	"testing"

	"trade-venue/src/engine"
	"trade-venue/src/models"
)

func newTestTrader(id int) *Trader {
	return New(id, "AAPL", 100_000_000, 500, 1000, 1)
}

func TestOnEventFillUpdatesAccounting(t *testing.T) {
	tr := newTestTrader(1)

	tr.OnEvent(models.EventInfo{
		ParticipantID: 1,
		Action:        string(engine.ActionPlace),
		Fill: &models.FillInfo{
			ParticipantID:    1,
			Side:             string(engine.SideBuy),
			Price:            10,
			Quantity:         50,
			IsLimitRemainder: false,
		},
	})

	if tr.Position != 50 {
		t.Errorf("Expected position 50, got: %d", tr.Position)
	}
	if tr.Balance != 100_000_000-500 {
		t.Errorf("Expected balance reduced by 500, got: %d", tr.Balance)
	}
	if tr.BookPosition != 0 {
		t.Errorf("Expected book position untouched for aggressor market fill, got: %d", tr.BookPosition)
	}
}

func TestOnEventRestingFillReducesBookPosition(t *testing.T) {
	tr := newTestTrader(2)
	tr.BookPosition = 100

	tr.OnEvent(models.EventInfo{
		ParticipantID: 2,
		Action:        string(engine.ActionPlace),
		Fill: &models.FillInfo{
			ParticipantID:    2,
			Side:             string(engine.SideSell),
			Price:            10,
			Quantity:         50,
			IsLimitRemainder: true,
		},
	})

	if tr.Position != -50 {
		t.Errorf("Expected position -50, got: %d", tr.Position)
	}
	if tr.Balance != 100_000_000+500 {
		t.Errorf("Expected balance increased by 500, got: %d", tr.Balance)
	}
	if tr.BookPosition != 50 {
		t.Errorf("Expected book position reduced to 50, got: %d", tr.BookPosition)
	}
}

func TestOnEventRestingAckSetsBookPosition(t *testing.T) {
	tr := newTestTrader(3)

	tr.OnEvent(models.EventInfo{
		ParticipantID: 3,
		Action:        string(engine.ActionPlace),
		Order: &models.OrderInfo{
			ParticipantID: 3,
			Type:          string(engine.TypeLimit),
			Quantity:      200,
		},
	})

	if tr.BookPosition != 200 {
		t.Errorf("Expected book position 200, got: %d", tr.BookPosition)
	}
	if tr.Position != 0 || tr.Balance != 100_000_000 {
		t.Errorf("Expected ledger untouched by resting ack, got: balance=%d position=%d", tr.Balance, tr.Position)
	}
}

func TestOnEventRejectedPlaceChangesNothing(t *testing.T) {
	tr := newTestTrader(4)
	tr.BookPosition = 100

	tr.OnEvent(models.EventInfo{
		ParticipantID: 4,
		Action:        string(engine.ActionPlace),
		Rejected:      true,
		Order:         &models.OrderInfo{Type: string(engine.TypeLimit), Quantity: 500},
	})

	if tr.BookPosition != 100 {
		t.Errorf("Expected book position unchanged, got: %d", tr.BookPosition)
	}
}

func TestOnEventAmendCancelBalance(t *testing.T) {
	tr := newTestTrader(5)
	tr.BookPosition = 300

	tr.OnEvent(models.EventInfo{Action: string(engine.ActionAmend), Success: true, Quantity: 200})
	if tr.BookPosition != 200 {
		t.Errorf("Expected book position 200 after amend, got: %d", tr.BookPosition)
	}

	tr.OnEvent(models.EventInfo{Action: string(engine.ActionAmend), Success: false, Quantity: 50})
	if tr.BookPosition != 200 {
		t.Errorf("Expected failed amend to change nothing, got: %d", tr.BookPosition)
	}

	tr.OnEvent(models.EventInfo{Action: string(engine.ActionCancel), Success: true})
	if tr.BookPosition != 0 {
		t.Errorf("Expected book position 0 after cancel, got: %d", tr.BookPosition)
	}

	tr.OnEvent(models.EventInfo{
		Action:       string(engine.ActionBalance),
		Balance:      99_000_000,
		Position:     -42,
		BookPosition: 7,
	})
	if tr.Balance != 99_000_000 || tr.Position != -42 || tr.BookPosition != 7 {
		t.Errorf("Expected venue numbers adopted, got: balance=%d position=%d book=%d",
			tr.Balance, tr.Position, tr.BookPosition)
	}
}

func TestNextRequestFlatAlwaysPlaces(t *testing.T) {
	tr := newTestTrader(6)

	for i := 0; i < 50; i++ {
		req := tr.NextRequest()
		if req == nil {
			t.Fatal("Expected a flat trader to always place")
		}
		if req.Action != string(engine.ActionPlace) {
			t.Fatalf("Expected PLACE, got: %s", req.Action)
		}
		if req.Quantity != 500 {
			t.Errorf("Expected fixed quantity 500, got: %d", req.Quantity)
		}
		switch req.Type {
		case string(engine.TypeLimit), string(engine.TypeIOC):
			if req.Price != 1000 {
				t.Errorf("Expected limit price 1000, got: %d", req.Price)
			}
		case string(engine.TypeMarket):
			if req.Price != 0 {
				t.Errorf("Expected no price on market order, got: %d", req.Price)
			}
		default:
			t.Errorf("Unexpected order type: %s", req.Type)
		}
	}
}

func TestNextRequestRestingOnlyAmendsDownOrCancels(t *testing.T) {
	tr := newTestTrader(7)
	tr.BookPosition = 1500

	for i := 0; i < 200; i++ {
		req := tr.NextRequest()
		if req == nil {
			continue
		}
		switch req.Action {
		case string(engine.ActionCancel):
		case string(engine.ActionAmend):
			if req.Quantity <= 0 || req.Quantity >= tr.BookPosition {
				t.Errorf("Expected amend to strictly reduce, got: %d of %d", req.Quantity, tr.BookPosition)
			}
		default:
			t.Errorf("Unexpected action while resting: %s", req.Action)
		}
	}
}

// A resting quantity at or below one step is never amended below zero: the
// trader cancels instead.
func TestNextRequestSmallRestingNeverAmends(t *testing.T) {
	tr := newTestTrader(8)
	tr.BookPosition = 500

	for i := 0; i < 200; i++ {
		req := tr.NextRequest()
		if req == nil {
			continue
		}
		if req.Action != string(engine.ActionCancel) {
			t.Errorf("Expected only cancels at one-step book position, got: %s", req.Action)
		}
	}
}
