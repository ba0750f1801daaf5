package ledger

import (
	"context"
	"time"

	"stockledger/internal/core/id"
)

// EventKind tags a committed ledger change.
type EventKind string

const (
	ProductAdded   EventKind = "product.added"
	ProductUpdated EventKind = "product.updated"
	ProductDeleted EventKind = "product.deleted"
	LotAdded       EventKind = "lot.added"
	LotUpdated     EventKind = "lot.updated"
	LotDeleted     EventKind = "lot.deleted"
	LotDiscarded   EventKind = "lot.discarded"
)

// IsLotEvent reports whether the event is about a lot.
func (k EventKind) IsLotEvent() bool {
	switch k {
	case LotAdded, LotUpdated, LotDeleted, LotDiscarded:
		return true
	}
	return false
}

// DeletedRef identifies a removed entity plus the context viewers need to
// describe the removal. LotID is nil for product deletions.
type DeletedRef struct {
	ProductID   id.ID  `json:"prodId"`
	ProductName string `json:"prodName"`
	LotID       *id.ID `json:"lotId,omitempty"`
}

// Event describes one committed mutation.
//
// Product is set for product added/updated events and, for lot events, holds
// the owning product after the commit so its OverallStock stays current.
type Event struct {
	Seq        uint64         `json:"seq"`
	Kind       EventKind      `json:"kind"`
	OccurredAt time.Time      `json:"occurredAt"`
	Product    *Product       `json:"product,omitempty"`
	Lot        *LotView       `json:"lot,omitempty"`
	Deleted    *DeletedRef    `json:"deleted,omitempty"`
	Discard    *DiscardRecord `json:"discard,omitempty"`
}

// EntityID returns the identity the event is about.
func (e Event) EntityID() id.ID {
	switch {
	case e.Deleted != nil && e.Deleted.LotID != nil:
		return *e.Deleted.LotID
	case e.Deleted != nil:
		return e.Deleted.ProductID
	case e.Lot != nil:
		return e.Lot.ID
	case e.Product != nil:
		return e.Product.ID
	}
	return id.Nil()
}

// Publisher receives events after their transaction committed.
// Implementations must not block the caller on slow consumers.
type Publisher interface {
	Publish(ctx context.Context, ev Event)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, ev Event)

// Publish calls f.
func (f PublisherFunc) Publish(ctx context.Context, ev Event) { f(ctx, ev) }

// NopPublisher drops every event. Used by tools that run without viewers.
type NopPublisher struct{}

// Publish does nothing.
func (NopPublisher) Publish(context.Context, Event) {}

func productEvent(kind EventKind, p Product, at time.Time) Event {
	return Event{Kind: kind, OccurredAt: at, Product: &p}
}

func lotEvent(kind EventKind, lot LotView, owner Product, at time.Time) Event {
	return Event{Kind: kind, OccurredAt: at, Lot: &lot, Product: &owner}
}
