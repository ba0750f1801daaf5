package broadcast

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/domain/ledger"
)

func startedHub(t *testing.T, buf int) (*Hub, *Metrics) {
	t.Helper()
	m := NewMetrics(prometheus.NewRegistry())
	h := NewHub(Config{BufferSize: buf, Metrics: m})
	h.Start()
	t.Cleanup(func() { _ = h.Stop(context.Background()) })
	return h, m
}

func event(kind ledger.EventKind) ledger.Event {
	return ledger.Event{Kind: kind, OccurredAt: time.Now()}
}

func TestHub_LifecycleGuards(t *testing.T) {
	h := NewHub(Config{})

	_, err := h.Subscribe("early")
	assert.ErrorIs(t, err, ErrNotStarted)

	h.Start()
	sub, err := h.Subscribe("viewer")
	require.NoError(t, err)
	assert.Equal(t, 1, h.Count())

	require.NoError(t, h.Stop(context.Background()))
	<-sub.Done()
	assert.ErrorIs(t, sub.Err(), ErrStopped)
	assert.Equal(t, 0, h.Count())

	_, err = h.Subscribe("late")
	assert.ErrorIs(t, err, ErrStopped)

	// Publishing after Stop is a no-op.
	h.Publish(context.Background(), event(ledger.ProductAdded))
}

func TestHub_DeliversInOrderToEverySubscriber(t *testing.T) {
	h, m := startedHub(t, 16)

	a, err := h.Subscribe("a")
	require.NoError(t, err)
	b, err := h.Subscribe("b")
	require.NoError(t, err)

	kinds := []ledger.EventKind{ledger.ProductAdded, ledger.LotAdded, ledger.LotDiscarded}
	for _, k := range kinds {
		h.Publish(context.Background(), event(k))
	}

	for _, sub := range []*Subscription{a, b} {
		for i, k := range kinds {
			ev := <-sub.Events()
			assert.Equal(t, k, ev.Kind)
			assert.Equal(t, uint64(i+1), ev.Seq)
		}
	}

	assert.Equal(t, float64(3), testutil.ToFloat64(m.published))
	assert.Equal(t, float64(6), testutil.ToFloat64(m.delivered))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.subscribers))
}

func TestHub_SlowSubscriberIsDroppedOthersUnaffected(t *testing.T) {
	h, m := startedHub(t, 2)

	slow, err := h.Subscribe("slow")
	require.NoError(t, err)
	fast, err := h.Subscribe("fast")
	require.NoError(t, err)

	received := make(chan ledger.Event, 10)
	go func() {
		for ev := range fast.Events() {
			received <- ev
		}
	}()

	for i := 0; i < 5; i++ {
		h.Publish(context.Background(), event(ledger.LotUpdated))
		// Give the fast reader time to drain between publishes.
		require.Eventually(t, func() bool { return len(received) == i+1 }, time.Second, time.Millisecond)
	}

	<-slow.Done()
	assert.ErrorIs(t, slow.Err(), ErrSlowSubscriber)
	assert.Equal(t, 1, h.Count())
	assert.Equal(t, float64(1), testutil.ToFloat64(m.dropped.WithLabelValues("slow")))

	// The slow subscriber still sees what fit in its buffer, then a closed channel.
	var got []uint64
	for ev := range slow.Events() {
		got = append(got, ev.Seq)
	}
	assert.Equal(t, []uint64{1, 2}, got)
}

func TestHub_CloseIsIdempotent(t *testing.T) {
	h, _ := startedHub(t, 4)
	sub, err := h.Subscribe("viewer")
	require.NoError(t, err)

	sub.Close()
	sub.Close()

	assert.NoError(t, sub.Err())
	assert.Equal(t, 0, h.Count())
}

func TestHub_ConcurrentPublishersKeepSeqUnique(t *testing.T) {
	h, _ := startedHub(t, 1000)
	sub, err := h.Subscribe("viewer")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				h.Publish(context.Background(), event(ledger.LotAdded))
			}
		}()
	}
	wg.Wait()

	var last uint64
	for i := 0; i < 500; i++ {
		ev := <-sub.Events()
		assert.Equal(t, last+1, ev.Seq)
		last = ev.Seq
	}
}
