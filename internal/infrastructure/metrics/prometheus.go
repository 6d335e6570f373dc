package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the zapper collectors. A nil *Metrics records nothing.
type Metrics struct {
	ZapsTotal   *prometheus.CounterVec
	ZapFailures *prometheus.CounterVec
	ZapDuration *prometheus.HistogramVec
	FeeUpdates  prometheus.Counter
}

// New creates the collectors and registers them with reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ZapsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zapper_zaps_total",
				Help: "Total number of zaps by variant and result.",
			},
			[]string{"variant", "result"},
		),
		ZapFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zapper_zap_failures_total",
				Help: "Total number of aborted zaps by error code.",
			},
			[]string{"code"},
		),
		ZapDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "zapper_zap_duration_seconds",
				Help:    "Time taken to execute a zap.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
			},
			[]string{"variant"},
		),
		FeeUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "zapper_fee_updates_total",
			Help: "Total number of accepted fee rate updates.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.ZapsTotal, m.ZapFailures, m.ZapDuration, m.FeeUpdates)
	}
	return m
}

// ObserveZap records one finished zap; code is empty on success
func (m *Metrics) ObserveZap(variant, code string, elapsed time.Duration) {
	if m == nil {
		return
	}
	result := "success"
	if code != "" {
		result = "failure"
		m.ZapFailures.WithLabelValues(code).Inc()
	}
	m.ZapsTotal.WithLabelValues(variant, result).Inc()
	m.ZapDuration.WithLabelValues(variant).Observe(elapsed.Seconds())
}

// FeeUpdated records an accepted fee change
func (m *Metrics) FeeUpdated() {
	if m == nil {
		return
	}
	m.FeeUpdates.Inc()
}
