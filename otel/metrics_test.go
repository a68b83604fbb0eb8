package otel_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/axon-labs/soma"
	somaotel "github.com/axon-labs/soma/otel"
)

// newTestMeter returns a meter backed by a manual reader for collecting
// metrics in tests.
func newTestMeter() (*metric.ManualReader, *metric.MeterProvider) {
	reader := metric.NewManualReader()
	mp := metric.NewMeterProvider(metric.WithReader(reader))
	return reader, mp
}

func collectMetrics(t *testing.T, reader *metric.ManualReader) *metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
	}
	return &rm
}

func findMetric(rm *metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, scope := range rm.ScopeMetrics {
		for i := range scope.Metrics {
			if scope.Metrics[i].Name == name {
				return &scope.Metrics[i]
			}
		}
	}
	return nil
}

func counterValue(t *testing.T, m *metricdata.Metrics) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %s is %T, want Sum[int64]", m.Name, m.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestMetricsHandler_CountsTraffic(t *testing.T) {
	reader, mp := newTestMeter()
	h, err := somaotel.NewMetricsHandler(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetricsHandler: %v", err)
	}

	h.Handle(soma.Event{Kind: soma.EventSignalDelivered, RunID: "run-1", Label: "pipeline"})
	h.Handle(soma.Event{Kind: soma.EventSignalDelivered, RunID: "run-1", Label: "pipeline"})
	h.Handle(soma.Event{Kind: soma.EventImpulseForwarded, RunID: "run-1", Label: "pipeline"})
	h.Handle(soma.Event{Kind: soma.EventSomaFailed, RunID: "run-1", Label: "pipeline", Err: errors.New("boom")})

	rm := collectMetrics(t, reader)

	delivered := findMetric(rm, "soma.signals.delivered")
	if delivered == nil {
		t.Fatal("soma.signals.delivered not recorded")
	}
	if got := counterValue(t, delivered); got != 2 {
		t.Errorf("signals delivered = %d, want 2", got)
	}

	forwarded := findMetric(rm, "soma.impulses.forwarded")
	if forwarded == nil {
		t.Fatal("soma.impulses.forwarded not recorded")
	}
	if got := counterValue(t, forwarded); got != 1 {
		t.Errorf("impulses forwarded = %d, want 1", got)
	}

	failures := findMetric(rm, "soma.failures")
	if failures == nil {
		t.Fatal("soma.failures not recorded")
	}
	if got := counterValue(t, failures); got != 1 {
		t.Errorf("failures = %d, want 1", got)
	}
}

func TestMetricsHandler_RecordsRunDuration(t *testing.T) {
	reader, mp := newTestMeter()
	h, err := somaotel.NewMetricsHandler(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetricsHandler: %v", err)
	}

	started := time.Now()
	h.Handle(soma.Event{Kind: soma.EventInitialized, RunID: "run-1", Time: started})
	h.Handle(soma.Event{Kind: soma.EventStopped, RunID: "run-1", Time: started.Add(2 * time.Second)})

	rm := collectMetrics(t, reader)
	dur := findMetric(rm, "soma.run.duration")
	if dur == nil {
		t.Fatal("soma.run.duration not recorded")
	}

	hist, ok := dur.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("duration metric is %T, want Histogram[float64]", dur.Data)
	}
	if len(hist.DataPoints) != 1 {
		t.Fatalf("duration has %d data points, want 1", len(hist.DataPoints))
	}
	if got := hist.DataPoints[0].Sum; got < 1.9 || got > 2.1 {
		t.Errorf("recorded duration = %v, want about 2s", got)
	}
}
