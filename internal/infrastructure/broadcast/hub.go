// Package broadcast fans committed ledger events out to every connected viewer.
//
// Publish never waits on a subscriber. Each subscriber owns a bounded buffer;
// one that falls a full buffer behind is disconnected and expected to
// reconnect and resync from a full read.
package broadcast

import (
	"context"
	"errors"
	"sync"

	"stockledger/internal/domain/ledger"
	"stockledger/pkg/logger"
)

// DefaultBufferSize is the per-subscriber event buffer.
const DefaultBufferSize = 64

var (
	// ErrNotStarted is returned by Subscribe before Start.
	ErrNotStarted = errors.New("broadcast: hub not started")
	// ErrStopped is returned by Subscribe after Stop and reported by
	// subscriptions the hub closed during shutdown.
	ErrStopped = errors.New("broadcast: hub stopped")
	// ErrSlowSubscriber is reported by a subscription whose buffer overflowed.
	ErrSlowSubscriber = errors.New("broadcast: subscriber too slow")
)

// Config configures a Hub.
type Config struct {
	BufferSize int
	Metrics    *Metrics
}

type hubState int

const (
	stateNew hubState = iota
	stateRunning
	stateStopped
)

// Hub is the process-wide event broadcaster.
type Hub struct {
	bufSize int
	metrics *Metrics
	log     *logger.Logger

	mu     sync.Mutex // emission lock: Seq order equals enqueue order
	state  hubState
	seq    uint64
	nextID uint64
	subs   map[uint64]*Subscription
}

var _ ledger.Publisher = (*Hub)(nil)

// NewHub creates a stopped hub.
func NewHub(cfg Config) *Hub {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultBufferSize
	}
	return &Hub{
		bufSize: cfg.BufferSize,
		metrics: cfg.Metrics,
		log:     logger.Default().WithComponent("broadcast"),
		subs:    make(map[uint64]*Subscription),
	}
}

// Start makes the hub accept subscribers and events.
func (h *Hub) Start() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state == stateNew {
		h.state = stateRunning
	}
}

// Stop closes every subscription and rejects new ones. Events published
// afterwards are discarded.
func (h *Hub) Stop(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state == stateStopped {
		return nil
	}
	h.state = stateStopped
	n := len(h.subs)
	for _, sub := range h.subs {
		h.dropLocked(sub, ErrStopped)
	}
	h.log.WithContext(ctx).Infow("hub stopped", "subscribers_closed", n)
	return nil
}

// Subscribe registers a new subscriber. name only labels log lines.
func (h *Hub) Subscribe(name string) (*Subscription, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch h.state {
	case stateNew:
		return nil, ErrNotStarted
	case stateStopped:
		return nil, ErrStopped
	}

	h.nextID++
	sub := &Subscription{
		id:     h.nextID,
		name:   name,
		hub:    h,
		events: make(chan ledger.Event, h.bufSize),
		done:   make(chan struct{}),
	}
	h.subs[sub.id] = sub
	h.metrics.setSubscribers(len(h.subs))
	h.log.Debugw("subscriber connected", "subscriber", name, "subscribers", len(h.subs))
	return sub, nil
}

// Publish assigns the event its sequence number and enqueues it for every
// current subscriber. It implements ledger.Publisher.
func (h *Hub) Publish(ctx context.Context, ev ledger.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state != stateRunning {
		return
	}

	h.seq++
	ev.Seq = h.seq
	h.metrics.incPublished()

	for _, sub := range h.subs {
		select {
		case sub.events <- ev:
			h.metrics.incDelivered()
		default:
			h.log.WithContext(ctx).Warnw("dropping slow subscriber",
				"subscriber", sub.name,
				"seq", ev.Seq,
				"buffer", h.bufSize,
			)
			h.dropLocked(sub, ErrSlowSubscriber)
		}
	}
}

// Count returns the number of connected subscribers.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// dropLocked removes sub and closes its channels. h.mu must be held; sends
// only happen under h.mu, so closing events here cannot race a send.
func (h *Hub) dropLocked(sub *Subscription, reason error) {
	if _, ok := h.subs[sub.id]; !ok {
		return
	}
	delete(h.subs, sub.id)
	sub.err = reason
	close(sub.events)
	close(sub.done)

	h.metrics.setSubscribers(len(h.subs))
	switch {
	case errors.Is(reason, ErrSlowSubscriber):
		h.metrics.incDropped("slow")
	case errors.Is(reason, ErrStopped):
		h.metrics.incDropped("shutdown")
	}
}

// Subscription is one subscriber's view of the event stream.
type Subscription struct {
	id     uint64
	name   string
	hub    *Hub
	events chan ledger.Event
	done   chan struct{}
	err    error // set under hub.mu before done is closed
}

// Events delivers events in Seq order. It is closed when the subscription ends.
func (s *Subscription) Events() <-chan ledger.Event { return s.events }

// Done is closed when the subscription ends for any reason.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Err reports why the subscription ended: nil after Close, ErrSlowSubscriber
// or ErrStopped when the hub ended it. Valid once Done is closed.
func (s *Subscription) Err() error {
	<-s.done
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	return s.err
}

// Close unsubscribes. Safe to call more than once.
func (s *Subscription) Close() {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	s.hub.dropLocked(s, nil)
}
