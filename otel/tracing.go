// Package otel provides OpenTelemetry integration for soma runtime events.
package otel

import (
	"context"
	"errors"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/axon-labs/soma"
)

// TracingHandler translates soma runtime events into OpenTelemetry spans.
// Each organelle run gets one span, opened at Init and closed at Stop or
// on the first soma failure; routed traffic is recorded as span events.
type TracingHandler struct {
	tracer trace.Tracer

	mu       sync.RWMutex
	runSpans map[string]trace.Span // runID -> span
}

// NewTracingHandler creates a new TracingHandler that uses the given
// tracer to create spans from runtime events.
func NewTracingHandler(tracer trace.Tracer) *TracingHandler {
	return &TracingHandler{
		tracer:   tracer,
		runSpans: make(map[string]trace.Span),
	}
}

// Handler returns the event handler to register on an organelle.
func (h *TracingHandler) Handler() soma.EventHandler {
	return h.Handle
}

// Handle processes a runtime event and creates, annotates, or ends spans
// accordingly.
func (h *TracingHandler) Handle(e soma.Event) {
	switch e.Kind {
	case soma.EventInitialized:
		h.handleInitialized(e)
	case soma.EventSignalDelivered, soma.EventImpulseForwarded, soma.EventProbe, soma.EventProtocolViolation:
		h.handleTraffic(e)
	case soma.EventSomaFailed:
		h.handleFailed(e)
	case soma.EventStopped:
		h.handleStopped(e)
	}
}

// ActiveRunSpanContext returns the span context of a run's open span, or
// an invalid context when none is active.
func (h *TracingHandler) ActiveRunSpanContext(runID string) trace.SpanContext {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if span, ok := h.runSpans[runID]; ok {
		return span.SpanContext()
	}
	return trace.SpanContext{}
}

// handleInitialized opens the root span for the run.
func (h *TracingHandler) handleInitialized(e soma.Event) {
	spanName := "organelle:" + e.RunID
	if e.Label != "" {
		spanName = "organelle:" + e.Label
	}

	_, span := h.tracer.Start(context.Background(), spanName,
		trace.WithAttributes(
			attribute.String("soma.run_id", e.RunID),
		),
		trace.WithTimestamp(e.Time),
	)
	if e.Label != "" {
		span.SetAttributes(attribute.String("soma.organelle", e.Label))
	}

	h.mu.Lock()
	h.runSpans[e.RunID] = span
	h.mu.Unlock()
}

// handleTraffic records a routed impulse as a span event on the run span.
func (h *TracingHandler) handleTraffic(e soma.Event) {
	h.mu.RLock()
	span, ok := h.runSpans[e.RunID]
	h.mu.RUnlock()

	if !ok {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("soma.event_kind", string(e.Kind)),
	}
	if e.Impulse != 0 {
		attrs = append(attrs, attribute.String("soma.impulse", e.Impulse.String()))
	}
	if !e.Src.IsZero() {
		attrs = append(attrs, attribute.String("soma.src", e.Src.String()))
	}
	if !e.Dest.IsZero() {
		attrs = append(attrs, attribute.String("soma.dest", e.Dest.String()))
	}

	span.AddEvent(string(e.Kind), trace.WithTimestamp(e.Time), trace.WithAttributes(attrs...))
}

// handleFailed ends the run span with error status.
func (h *TracingHandler) handleFailed(e soma.Event) {
	h.mu.Lock()
	span, ok := h.runSpans[e.RunID]
	if ok {
		delete(h.runSpans, e.RunID)
	}
	h.mu.Unlock()

	if !ok {
		return
	}

	err := e.Err
	if err == nil {
		err = errors.New("soma failed")
	}
	span.SetAttributes(attribute.String("soma.node", e.Node.String()))
	span.SetStatus(codes.Error, err.Error())
	span.RecordError(err, trace.WithTimestamp(e.Time))
	span.End(trace.WithTimestamp(e.Time))
}

// handleStopped ends the run span with success status.
func (h *TracingHandler) handleStopped(e soma.Event) {
	h.mu.Lock()
	span, ok := h.runSpans[e.RunID]
	if ok {
		delete(h.runSpans, e.RunID)
	}
	h.mu.Unlock()

	if !ok {
		return
	}

	span.SetStatus(codes.Ok, "")
	span.End(trace.WithTimestamp(e.Time))
}
