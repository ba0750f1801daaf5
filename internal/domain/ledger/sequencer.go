package ledger

import (
	"context"
	"sync"
)

// sequencer hands events to the publisher in the order their transactions
// committed.
//
// A ticket is taken as the last step inside a transaction, while its row
// locks are still held. A transaction that conflicts with another can only
// take its ticket after the other committed, so ticket order is a valid
// commit order. Events wait in pending until every lower ticket has been
// released or abandoned.
type sequencer struct {
	pub Publisher

	mu      sync.Mutex
	issued  uint64
	next    uint64            // lowest ticket not yet handed on
	pending map[uint64]*Event // nil marks an abandoned ticket
}

func newSequencer(pub Publisher) *sequencer {
	return &sequencer{
		pub:     pub,
		next:    1,
		pending: make(map[uint64]*Event),
	}
}

func (s *sequencer) take() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued++
	return s.issued
}

// release resolves ticket t. ev is published once all lower tickets are
// resolved; a nil ev abandons the ticket (its transaction did not commit).
// Publisher implementations never block, so publishing under mu is fine.
func (s *sequencer) release(ctx context.Context, t uint64, ev *Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending[t] = ev
	for {
		next, ok := s.pending[s.next]
		if !ok {
			return
		}
		delete(s.pending, s.next)
		s.next++
		if next != nil {
			s.pub.Publish(ctx, *next)
		}
	}
}

// waiting reports how many resolved events are held back by a lower ticket.
func (s *sequencer) waiting() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}
