// Package metrics: метрики Prometheus магазина.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "storefront"

// Metrics набор метрик процесса.
type Metrics struct {
	EventsTotal        *prometheus.CounterVec
	EventDuration      *prometheus.HistogramVec
	NotificationsTotal *prometheus.CounterVec
	RateLimited        prometheus.Counter
	StorageDurable     prometheus.Gauge
}

// New создаёт метрики и регистрирует их в reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Processed inbound events by type and outcome.",
		}, []string{"type", "outcome"}),
		EventDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "event_duration_seconds",
			Help:      "Inbound event processing time.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"type"}),
		NotificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Outbound notifications by kind and result.",
		}, []string{"kind", "result"}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Events rejected by the per-user rate limiter.",
		}),
		StorageDurable: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "storage_durable",
			Help:      "1 if the active storage backend survives restarts, 0 for the in-memory fallback.",
		}),
	}
	reg.MustRegister(m.EventsTotal, m.EventDuration, m.NotificationsTotal, m.RateLimited, m.StorageDurable)
	return m
}

// SetDurable выставляет storage_durable.
func (m *Metrics) SetDurable(durable bool) {
	if durable {
		m.StorageDurable.Set(1)
		return
	}
	m.StorageDurable.Set(0)
}
