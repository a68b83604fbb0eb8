// Package metrics exposes soma runtime activity as Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/axon-labs/soma"
)

// Collector records organelle events as Prometheus metrics. All metrics
// are namespaced with "soma"; the counters are labelled by organelle
// label, while runs_active is a single unlabelled gauge.
//
// Metrics exposed:
//   - signals_delivered_total: payloads delivered to somas inside an
//     organelle.
//   - impulses_forwarded_total: payloads forwarded out of an organelle to
//     its enclosing scope.
//   - soma_failures_total: soma update failures lifted to Err impulses.
//   - protocol_violations_total: impulses observed at sites that cannot
//     legally receive them.
//   - runs_active: organelles currently between Init and Stop.
type Collector struct {
	signalsDelivered   *prometheus.CounterVec
	impulsesForwarded  *prometheus.CounterVec
	somaFailures       *prometheus.CounterVec
	protocolViolations *prometheus.CounterVec
	runsActive         prometheus.Gauge
}

// NewCollector creates and registers the soma metrics with registry. Pass
// prometheus.DefaultRegisterer for the global registry; a private
// registry is recommended for isolation.
func NewCollector(registry prometheus.Registerer) *Collector {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Collector{
		signalsDelivered: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "soma",
			Name:      "signals_delivered_total",
			Help:      "Payloads delivered to somas inside an organelle",
		}, []string{"organelle"}),

		impulsesForwarded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "soma",
			Name:      "impulses_forwarded_total",
			Help:      "Payloads forwarded out of an organelle to its enclosing scope",
		}, []string{"organelle"}),

		somaFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "soma",
			Name:      "soma_failures_total",
			Help:      "Soma update failures lifted to Err impulses",
		}, []string{"organelle"}),

		protocolViolations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "soma",
			Name:      "protocol_violations_total",
			Help:      "Impulses observed at sites that cannot legally receive them",
		}, []string{"organelle"}),

		runsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "soma",
			Name:      "runs_active",
			Help:      "Organelles currently between Init and Stop",
		}),
	}
}

// Handler returns the event handler to register on an organelle.
func (c *Collector) Handler() soma.EventHandler {
	return c.Handle
}

// Handle records one runtime event.
func (c *Collector) Handle(e soma.Event) {
	switch e.Kind {
	case soma.EventInitialized:
		c.runsActive.Inc()
	case soma.EventSignalDelivered:
		c.signalsDelivered.WithLabelValues(e.Label).Inc()
	case soma.EventImpulseForwarded:
		c.impulsesForwarded.WithLabelValues(e.Label).Inc()
	case soma.EventSomaFailed:
		c.somaFailures.WithLabelValues(e.Label).Inc()
	case soma.EventProtocolViolation:
		c.protocolViolations.WithLabelValues(e.Label).Inc()
	case soma.EventStopped:
		c.runsActive.Dec()
	}
}
