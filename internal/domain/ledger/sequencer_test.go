package ledger

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

type kindLog struct {
	mu    sync.Mutex
	kinds []EventKind
}

func (l *kindLog) Publish(_ context.Context, ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.kinds = append(l.kinds, ev.Kind)
}

func (l *kindLog) all() []EventKind {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]EventKind(nil), l.kinds...)
}

func TestSequencer_ReleasesInTicketOrder(t *testing.T) {
	ctx := context.Background()
	log := &kindLog{}
	seq := newSequencer(log)

	first, second, third := seq.take(), seq.take(), seq.take()

	seq.release(ctx, third, &Event{Kind: LotDeleted})
	seq.release(ctx, second, &Event{Kind: ProductDeleted})
	assert.Empty(t, log.all())
	assert.Equal(t, 2, seq.waiting())

	seq.release(ctx, first, &Event{Kind: LotAdded})
	assert.Equal(t, []EventKind{LotAdded, ProductDeleted, LotDeleted}, log.all())
	assert.Zero(t, seq.waiting())
}

func TestSequencer_AbandonedTicketDoesNotStall(t *testing.T) {
	ctx := context.Background()
	log := &kindLog{}
	seq := newSequencer(log)

	failed, ok := seq.take(), seq.take()
	seq.release(ctx, ok, &Event{Kind: ProductAdded})
	assert.Empty(t, log.all())

	seq.release(ctx, failed, nil)
	assert.Equal(t, []EventKind{ProductAdded}, log.all())

	next := seq.take()
	seq.release(ctx, next, &Event{Kind: ProductUpdated})
	assert.Equal(t, []EventKind{ProductAdded, ProductUpdated}, log.all())
}
