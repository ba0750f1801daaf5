package broadcast

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the broadcaster's Prometheus instruments.
type Metrics struct {
	published   prometheus.Counter
	delivered   prometheus.Counter
	dropped     *prometheus.CounterVec
	subscribers prometheus.Gauge
}

// NewMetrics registers the broadcaster metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		published: f.NewCounter(prometheus.CounterOpts{
			Name: "stockledger_broadcast_published_total",
			Help: "Events accepted for fan-out",
		}),
		delivered: f.NewCounter(prometheus.CounterOpts{
			Name: "stockledger_broadcast_delivered_total",
			Help: "Events enqueued onto subscriber buffers",
		}),
		dropped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "stockledger_broadcast_dropped_total",
			Help: "Subscribers disconnected by the hub, by reason",
		}, []string{"reason"}),
		subscribers: f.NewGauge(prometheus.GaugeOpts{
			Name: "stockledger_broadcast_subscribers",
			Help: "Currently connected subscribers",
		}),
	}
}

// The methods below accept a nil receiver so a Hub can run without metrics.

func (m *Metrics) incPublished() {
	if m != nil {
		m.published.Inc()
	}
}

func (m *Metrics) incDelivered() {
	if m != nil {
		m.delivered.Inc()
	}
}

func (m *Metrics) incDropped(reason string) {
	if m != nil {
		m.dropped.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) setSubscribers(n int) {
	if m != nil {
		m.subscribers.Set(float64(n))
	}
}
