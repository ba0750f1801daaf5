package subscriber

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"stockledger/internal/domain/ledger"
	"stockledger/pkg/logger"
)

// DefaultReconnectDelay is the pause between a lost connection and the next attempt.
const DefaultReconnectDelay = 2 * time.Second

// SessionConfig configures a Session.
type SessionConfig struct {
	// EventsURL is the websocket endpoint, e.g. ws://localhost:8080/api/v1/events.
	EventsURL string
	Loader    Loader

	// OnEvent is called after each applied event with whether it changed the snapshot.
	OnEvent func(ev ledger.Event, changed bool, snap *Snapshot)
	// OnResync is called after every full read.
	OnResync func(snap *Snapshot)

	ReconnectDelay time.Duration
	Dialer         *websocket.Dialer
	Header         http.Header
}

// Session is one viewer's live connection.
// Every (re)connection subscribes first and then performs a full read, so no
// change committed in between can be missed.
type Session struct {
	cfg  SessionConfig
	snap *Snapshot
	log  *logger.Logger
}

// NewSession creates a session with an empty snapshot.
func NewSession(cfg SessionConfig) *Session {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	if cfg.Dialer == nil {
		cfg.Dialer = websocket.DefaultDialer
	}
	return &Session{
		cfg:  cfg,
		snap: NewSnapshot(),
		log:  logger.Default().WithComponent("subscriber"),
	}
}

// Snapshot returns the session's local state.
func (s *Session) Snapshot() *Snapshot { return s.snap }

// Run keeps the session connected until ctx is cancelled.
func (s *Session) Run(ctx context.Context) error {
	for {
		err := s.runOnce(ctx)
		if ctx.Err() != nil {
			return nil
		}
		s.log.WithContext(ctx).Warnw("event channel lost, reconnecting",
			"error", err,
			"delay", s.cfg.ReconnectDelay,
		)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(s.cfg.ReconnectDelay):
		}
	}
}

// errResync asks runOnce's caller to reconnect and resynchronize.
var errResync = errors.New("event sequence gap")

// runOnce serves one connection until it fails.
func (s *Session) runOnce(ctx context.Context) error {
	conn, _, err := s.cfg.Dialer.DialContext(ctx, s.cfg.EventsURL, s.cfg.Header)
	if err != nil {
		return fmt.Errorf("dial events: %w", err)
	}
	defer conn.Close()

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Events arriving during the full read wait here and are applied after it.
	events := make(chan ledger.Event, 256)
	readErr := make(chan error, 1)
	go func() {
		defer close(events)
		for {
			var ev ledger.Event
			if err := conn.ReadJSON(&ev); err != nil {
				readErr <- err
				return
			}
			select {
			case events <- ev:
			case <-connCtx.Done():
				return
			}
		}
	}()
	go func() {
		<-connCtx.Done()
		_ = conn.Close()
	}()

	if err := s.resync(ctx); err != nil {
		return err
	}

	for ev := range events {
		if last := s.snap.LastSeq(); last != 0 && ev.Seq > last+1 {
			s.log.WithContext(ctx).Warnw("missed events", "last_seq", last, "seq", ev.Seq)
			return errResync
		}
		changed := s.snap.Apply(ev)
		if s.cfg.OnEvent != nil {
			s.cfg.OnEvent(ev, changed, s.snap)
		}
	}

	select {
	case err := <-readErr:
		return fmt.Errorf("read event: %w", err)
	default:
		return ctx.Err()
	}
}

func (s *Session) resync(ctx context.Context) error {
	products, lots, err := s.cfg.Loader.Load(ctx)
	if err != nil {
		return fmt.Errorf("full read: %w", err)
	}
	s.snap.ResetSeq()
	s.snap.Seed(products, lots)
	s.log.WithContext(ctx).Infow("snapshot synchronized", "products", len(products), "lots", len(lots))
	if s.cfg.OnResync != nil {
		s.cfg.OnResync(s.snap)
	}
	return nil
}
