package feed

import (
	"sync"

	"github.com/rs/zerolog/log"

	"trade-venue/src/engine"
)

// Feed queues outbound exchange events per participant, entirely outside the
// exchange's critical section. A fill touches two participants but only one
// of them made the HTTP request; the counterparty picks its events up here.
type Feed struct {
	mu                sync.Mutex
	pending           map[int][]engine.Event
	maxPerParticipant int
}

func New(maxPerParticipant int) *Feed {
	return &Feed{
		pending:           make(map[int][]engine.Event),
		maxPerParticipant: maxPerParticipant,
	}
}

// Publish appends events to their addressees' queues.
func (f *Feed) Publish(events []engine.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, event := range events {
		queue := append(f.pending[event.ParticipantID], event)
		// edge case: a participant that never drains must not grow the queue
		// without bound; drop the oldest events past the cap
		if f.maxPerParticipant > 0 && len(queue) > f.maxPerParticipant {
			dropped := len(queue) - f.maxPerParticipant
			queue = queue[dropped:]
			log.Warn().
				Int("participant_id", event.ParticipantID).
				Int("dropped", dropped).
				Msg("Event queue overflow, oldest events dropped")
		}
		f.pending[event.ParticipantID] = queue
	}
}

// Drain removes and returns everything queued for one participant, in the
// order the owning requests acquired the exchange lock.
func (f *Feed) Drain(participantID int) []engine.Event {
	f.mu.Lock()
	defer f.mu.Unlock()

	events := f.pending[participantID]
	if len(events) == 0 {
		return nil
	}
	delete(f.pending, participantID)
	return events
}

// Pending reports how many events are queued for one participant.
func (f *Feed) Pending(participantID int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending[participantID])
}
