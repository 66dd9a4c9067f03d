package transport

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes request counters for the transport client.
type Metrics struct {
	requests *prometheus.CounterVec
	duration prometheus.Histogram
}

// NewMetrics creates transport metrics and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "airlink_client",
			Subsystem: "transport",
			Name:      "requests_total",
			Help:      "Requests by outcome kind.",
		}, []string{"method", "outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "airlink_client",
			Subsystem: "transport",
			Name:      "request_duration_seconds",
			Help:      "Wall time of requests, excluding the visible-latency floor.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg != nil {
		reg.MustRegister(m.requests, m.duration)
	}
	return m
}

func (m *Metrics) observe(method string, outcome Kind, elapsed time.Duration) {
	if m == nil {
		return
	}
	label := "success"
	if outcome != "" {
		label = string(outcome)
	}
	m.requests.WithLabelValues(method, label).Inc()
	m.duration.Observe(elapsed.Seconds())
}
