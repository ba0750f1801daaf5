// Package subscriber keeps a viewer's local copy of the ledger in step with
// the server: one full read, then incremental events.
package subscriber

import (
	"sort"
	"sync"

	"stockledger/internal/core/id"
	"stockledger/internal/domain/ledger"
)

// Snapshot is a viewer's local copy of products and lots.
//
// Apply is idempotent and never moves an entity back to an older version,
// so events that overlap a full read are harmless.
type Snapshot struct {
	mu       sync.RWMutex
	products map[id.ID]ledger.Product
	lots     map[id.ID]ledger.LotView
	lastSeq  uint64
}

// NewSnapshot returns an empty snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		products: make(map[id.ID]ledger.Product),
		lots:     make(map[id.ID]ledger.LotView),
	}
}

// Seed replaces the whole state with the result of a full read.
func (s *Snapshot) Seed(products []ledger.Product, lots []ledger.LotView) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.products = make(map[id.ID]ledger.Product, len(products))
	for _, p := range products {
		s.products[p.ID] = p
	}
	s.lots = make(map[id.ID]ledger.LotView, len(lots))
	for _, l := range lots {
		s.lots[l.ID] = l
	}
}

// Apply reconciles one event and reports whether the state changed.
func (s *Snapshot) Apply(ev ledger.Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ev.Seq > s.lastSeq {
		s.lastSeq = ev.Seq
	}

	switch ev.Kind {
	case ledger.ProductAdded:
		return ev.Product != nil && s.insertProduct(*ev.Product)

	case ledger.ProductUpdated:
		return ev.Product != nil && s.replaceProduct(*ev.Product)

	case ledger.ProductDeleted:
		if ev.Deleted == nil {
			return false
		}
		return s.removeProduct(ev.Deleted.ProductID)

	case ledger.LotAdded:
		changed := ev.Lot != nil && s.insertLot(*ev.Lot)
		return s.refreshOwner(ev) || changed

	case ledger.LotUpdated, ledger.LotDiscarded:
		changed := ev.Lot != nil && s.replaceLot(*ev.Lot)
		return s.refreshOwner(ev) || changed

	case ledger.LotDeleted:
		changed := false
		if ev.Deleted != nil && ev.Deleted.LotID != nil {
			if _, ok := s.lots[*ev.Deleted.LotID]; ok {
				delete(s.lots, *ev.Deleted.LotID)
				changed = true
			}
		}
		return s.refreshOwner(ev) || changed
	}
	return false
}

func (s *Snapshot) insertProduct(p ledger.Product) bool {
	if _, ok := s.products[p.ID]; ok {
		return false
	}
	s.products[p.ID] = p
	return true
}

func (s *Snapshot) replaceProduct(p ledger.Product) bool {
	held, ok := s.products[p.ID]
	if !ok || p.Version <= held.Version {
		return false
	}
	s.products[p.ID] = p
	return true
}

func (s *Snapshot) removeProduct(prodID id.ID) bool {
	_, changed := s.products[prodID]
	delete(s.products, prodID)
	for lotID, lot := range s.lots {
		if lot.ProductID == prodID {
			delete(s.lots, lotID)
			changed = true
		}
	}
	return changed
}

// insertLot ignores lots of products the snapshot does not hold: the owner
// was deleted, or it will arrive with the next full read.
func (s *Snapshot) insertLot(l ledger.LotView) bool {
	if _, ok := s.lots[l.ID]; ok {
		return false
	}
	if _, ok := s.products[l.ProductID]; !ok {
		return false
	}
	s.lots[l.ID] = l
	return true
}

func (s *Snapshot) replaceLot(l ledger.LotView) bool {
	held, ok := s.lots[l.ID]
	if !ok || l.Version <= held.Version {
		return false
	}
	s.lots[l.ID] = l
	return true
}

// refreshOwner applies the owning product carried by a lot event.
func (s *Snapshot) refreshOwner(ev ledger.Event) bool {
	if ev.Product == nil {
		return false
	}
	return s.replaceProduct(*ev.Product)
}

// LastSeq is the highest event sequence number applied.
func (s *Snapshot) LastSeq() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSeq
}

// ResetSeq forgets the sequence position, e.g. after reconnecting to a
// server process that numbers events from scratch.
func (s *Snapshot) ResetSeq() {
	s.mu.Lock()
	s.lastSeq = 0
	s.mu.Unlock()
}

// Products returns all products, newest first.
func (s *Snapshot) Products() []ledger.Product {
	s.mu.RLock()
	out := make([]ledger.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() > out[j].ID.String()
	})
	return out
}

// Lots returns all lots, newest first.
func (s *Snapshot) Lots() []ledger.LotView {
	s.mu.RLock()
	out := make([]ledger.LotView, 0, len(s.lots))
	for _, l := range s.lots {
		out = append(out, l)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() > out[j].ID.String()
	})
	return out
}

// Product looks up one product.
func (s *Snapshot) Product(prodID id.ID) (ledger.Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[prodID]
	return p, ok
}

// Lot looks up one lot.
func (s *Snapshot) Lot(lotID id.ID) (ledger.LotView, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.lots[lotID]
	return l, ok
}
