package engine

import (
	"github.com/google/btree"
)

// bidEntry orders the bid side by (price descending, timestamp ascending).
// Equal (price, timestamp) pairs fall back to participant id so that keys are
// unique; that last tie-break is implementation-defined, not a contract.
type bidEntry struct {
	order *Order
}

func (e *bidEntry) Less(than btree.Item) bool {
	other := than.(*bidEntry).order
	if e.order.Price != other.Price {
		return e.order.Price > other.Price
	}
	if e.order.Timestamp != other.Timestamp {
		return e.order.Timestamp < other.Timestamp
	}
	return e.order.ParticipantID < other.ParticipantID
}

// askEntry orders the ask side by (price ascending, timestamp ascending).
type askEntry struct {
	order *Order
}

func (e *askEntry) Less(than btree.Item) bool {
	other := than.(*askEntry).order
	if e.order.Price != other.Price {
		return e.order.Price < other.Price
	}
	if e.order.Timestamp != other.Timestamp {
		return e.order.Timestamp < other.Timestamp
	}
	return e.order.ParticipantID < other.ParticipantID
}

// Book holds the resting LIMIT orders for the single traded instrument: two
// price-time ordered sides plus a participant index for O(1) lookup. Only the
// matching engine mutates it. Quantity is not part of the sort key, so partial
// fills and amendments mutate resting orders in place without a re-sort.
type Book struct {
	bids   *btree.BTree
	asks   *btree.BTree
	orders map[int]*Order
}

func NewBook() *Book {
	return &Book{
		bids:   btree.New(32),
		asks:   btree.New(32),
		orders: make(map[int]*Order),
	}
}

func (b *Book) entryFor(order *Order) btree.Item {
	if order.Side == SideBuy {
		return &bidEntry{order: order}
	}
	return &askEntry{order: order}
}

func (b *Book) sideFor(order *Order) *btree.BTree {
	if order.Side == SideBuy {
		return b.bids
	}
	return b.asks
}

// Insert places a resting order on its side. Only LIMIT orders rest.
func (b *Book) Insert(order *Order) error {
	if order.Side != SideBuy && order.Side != SideSell {
		return ErrInvalidSide
	}
	b.sideFor(order).ReplaceOrInsert(b.entryFor(order))
	b.orders[order.ParticipantID] = order
	return nil
}

// Find returns the resting order owned by a participant.
func (b *Book) Find(participantID int) (*Order, error) {
	order, exists := b.orders[participantID]
	if !exists {
		return nil, ErrNoSuchRestingOrder
	}
	return order, nil
}

// Remove takes a participant's resting order out of the book.
func (b *Book) Remove(participantID int) (*Order, error) {
	order, exists := b.orders[participantID]
	if !exists {
		return nil, ErrNoSuchRestingOrder
	}
	b.sideFor(order).Delete(b.entryFor(order))
	delete(b.orders, participantID)
	return order, nil
}

// BestBid returns the highest-priced (earliest at that price) resting buy.
func (b *Book) BestBid() (*Order, bool) {
	item := b.bids.Min()
	if item == nil {
		return nil, false
	}
	return item.(*bidEntry).order, true
}

// BestAsk returns the lowest-priced (earliest at that price) resting sell.
func (b *Book) BestAsk() (*Order, bool) {
	item := b.asks.Min()
	if item == nil {
		return nil, false
	}
	return item.(*askEntry).order, true
}

func (b *Book) BidCount() int {
	return b.bids.Len()
}

func (b *Book) AskCount() int {
	return b.asks.Len()
}

// AscendBids walks the bid side in priority order (price desc, time asc).
func (b *Book) AscendBids(fn func(order *Order) bool) {
	b.bids.Ascend(func(item btree.Item) bool {
		return fn(item.(*bidEntry).order)
	})
}

// AscendAsks walks the ask side in priority order (price asc, time asc).
func (b *Book) AscendAsks(fn func(order *Order) bool) {
	b.asks.Ascend(func(item btree.Item) bool {
		return fn(item.(*askEntry).order)
	})
}

type BookLevel struct {
	Price    int64
	Quantity int64
}

// Snapshot aggregates both sides into per-price levels, best price first,
// at most depth levels per side.
func (b *Book) Snapshot(depth int) (bids []BookLevel, asks []BookLevel) {
	bids = collectLevels(b.AscendBids, depth)
	asks = collectLevels(b.AscendAsks, depth)
	return bids, asks
}

func collectLevels(ascend func(func(*Order) bool), depth int) []BookLevel {
	levels := make([]BookLevel, 0, depth)
	ascend(func(order *Order) bool {
		if n := len(levels); n > 0 && levels[n-1].Price == order.Price {
			levels[n-1].Quantity += order.Quantity
			return true
		}
		if len(levels) >= depth {
			return false
		}
		levels = append(levels, BookLevel{Price: order.Price, Quantity: order.Quantity})
		return true
	})
	return levels
}
