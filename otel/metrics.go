package otel

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/axon-labs/soma"
)

// MetricsHandler translates soma runtime events into OpenTelemetry
// metrics. It records counters for delivered signals, outward forwards,
// and soma failures, and a histogram of run durations.
type MetricsHandler struct {
	signalsDelivered metric.Int64Counter
	impulsesForward  metric.Int64Counter
	somaFailures     metric.Int64Counter
	runDuration      metric.Float64Histogram

	mu       sync.Mutex
	runStart map[string]time.Time
}

// NewMetricsHandler creates a MetricsHandler that uses the given meter to
// create instruments for recording soma runtime metrics.
func NewMetricsHandler(meter metric.Meter) (*MetricsHandler, error) {
	delivered, err := meter.Int64Counter("soma.signals.delivered",
		metric.WithDescription("Number of signals delivered inside an organelle"),
	)
	if err != nil {
		return nil, err
	}

	forwarded, err := meter.Int64Counter("soma.impulses.forwarded",
		metric.WithDescription("Number of payloads forwarded out of an organelle"),
	)
	if err != nil {
		return nil, err
	}

	failures, err := meter.Int64Counter("soma.failures",
		metric.WithDescription("Number of soma update failures"),
	)
	if err != nil {
		return nil, err
	}

	runDur, err := meter.Float64Histogram("soma.run.duration",
		metric.WithDescription("Duration of an organelle run in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &MetricsHandler{
		signalsDelivered: delivered,
		impulsesForward:  forwarded,
		somaFailures:     failures,
		runDuration:      runDur,
		runStart:         make(map[string]time.Time),
	}, nil
}

// Handler returns the event handler to register on an organelle.
func (h *MetricsHandler) Handler() soma.EventHandler {
	return h.Handle
}

// Handle processes a runtime event and records the appropriate metrics.
func (h *MetricsHandler) Handle(e soma.Event) {
	ctx := context.Background()
	attrs := metric.WithAttributes(
		attribute.String("organelle", e.Label),
	)

	switch e.Kind {
	case soma.EventInitialized:
		h.mu.Lock()
		h.runStart[e.RunID] = e.Time
		h.mu.Unlock()

	case soma.EventSignalDelivered:
		h.signalsDelivered.Add(ctx, 1, attrs)

	case soma.EventImpulseForwarded:
		h.impulsesForward.Add(ctx, 1, attrs)

	case soma.EventSomaFailed:
		h.somaFailures.Add(ctx, 1, attrs)

	case soma.EventStopped:
		h.mu.Lock()
		started, ok := h.runStart[e.RunID]
		if ok {
			delete(h.runStart, e.RunID)
		}
		h.mu.Unlock()
		if ok {
			h.runDuration.Record(ctx, e.Time.Sub(started).Seconds(), attrs)
		}
	}
}
