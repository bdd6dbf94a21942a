package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// CartMetrics tracks stock reservations and the cart read path.
// A nil *CartMetrics is valid and records nothing.
type CartMetrics struct {
	Mutations        *prometheus.CounterVec
	UnitsReserved    prometheus.Counter
	UnitsReleased    prometheus.Counter
	StockRejections  prometheus.Counter
	TxFailures       *prometheus.CounterVec
	CacheLookups     *prometheus.CounterVec
	SessionsSwept    prometheus.Counter
	MutationDuration *prometheus.HistogramVec
}

// NewCartMetrics creates and registers cart metrics on reg.
func NewCartMetrics(reg prometheus.Registerer, namespace string) *CartMetrics {
	if namespace == "" {
		namespace = "harvest"
	}

	factory := promauto.With(reg)
	subsystem := "cart"

	return &CartMetrics{
		Mutations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "mutations_total",
				Help:      "Cart mutations by operation and outcome",
			},
			[]string{"op", "result"}, // result: ok, conflict, not_found, tx_failed, error
		),
		UnitsReserved: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "units_reserved_total",
				Help:      "Units of stock moved from products into carts",
			},
		),
		UnitsReleased: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "units_released_total",
				Help:      "Units of stock returned from carts to products",
			},
		),
		StockRejections: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "insufficient_stock_total",
				Help:      "Reservations rejected for insufficient stock",
			},
		),
		TxFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "tx_failures_total",
				Help:      "Cart transactions rolled back by the database",
			},
			[]string{"op"},
		),
		CacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "cache_lookups_total",
				Help:      "Cart cache lookups by result",
			},
			[]string{"result"}, // hit, miss, error
		),
		SessionsSwept: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "sessions_swept_total",
				Help:      "Expired sessions whose carts were released",
			},
		),
		MutationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "mutation_duration_seconds",
				Help:      "Cart mutation latency including lock waits",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"op"},
		),
	}
}

// ObserveMutation records the outcome and latency of a cart mutation.
func (m *CartMetrics) ObserveMutation(op, result string, seconds float64) {
	if m == nil {
		return
	}
	m.Mutations.WithLabelValues(op, result).Inc()
	m.MutationDuration.WithLabelValues(op).Observe(seconds)
	switch result {
	case "conflict":
		m.StockRejections.Inc()
	case "tx_failed":
		m.TxFailures.WithLabelValues(op).Inc()
	}
}

// Reserved records units taken from stock.
func (m *CartMetrics) Reserved(units int) {
	if m == nil || units <= 0 {
		return
	}
	m.UnitsReserved.Add(float64(units))
}

// Released records units returned to stock.
func (m *CartMetrics) Released(units int) {
	if m == nil || units <= 0 {
		return
	}
	m.UnitsReleased.Add(float64(units))
}

// CacheLookup records a cart cache hit, miss or error.
func (m *CartMetrics) CacheLookup(result string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

// SessionSwept records one expired session cleaned up.
func (m *CartMetrics) SessionSwept() {
	if m == nil {
		return
	}
	m.SessionsSwept.Inc()
}
