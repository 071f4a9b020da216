// Package telemetry exports unit execution to OpenTelemetry: one span per
// unit attempt, and counters for tokens, messages, working time, retries,
// violations, and aborts. Register the hook with the batch runner:
//
//	hook, err := telemetry.New()
//	if err != nil {
//	    return err
//	}
//	registry := hooks.NewRegistry().Register(hook)
//	runner := batch.New(policy).WithHooks(registry)
//
// The hook uses the global tracer and meter providers; configure
// exporters with the OpenTelemetry SDK as usual.
package telemetry

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/evalkit/warden"
)

const scopeName = "github.com/evalkit/warden/telemetry"

// Hook implements the warden hook interfaces over OpenTelemetry.
// Safe for concurrent use by the runner's workers.
type Hook struct {
	tracer trace.Tracer

	mu    sync.Mutex
	spans map[string]trace.Span

	units          metric.Int64Counter
	tokens         metric.Int64Counter
	messages       metric.Int64Counter
	workingSeconds metric.Float64Counter
	retries        metric.Int64Counter
	violations     metric.Int64Counter
	aborts         metric.Int64Counter
}

// New creates a Hook backed by the global tracer and meter providers.
func New() (*Hook, error) {
	return NewWithProviders(otel.GetTracerProvider(), otel.GetMeterProvider())
}

// NewWithProviders creates a Hook backed by explicit providers. Useful in
// tests with in-memory exporters.
func NewWithProviders(tp trace.TracerProvider, mp metric.MeterProvider) (*Hook, error) {
	h := &Hook{
		tracer: tp.Tracer(scopeName),
		spans:  make(map[string]trace.Span),
	}
	meter := mp.Meter(scopeName)

	var err error
	if h.units, err = meter.Int64Counter("warden.units",
		metric.WithDescription("Unit attempts completed")); err != nil {
		return nil, fmt.Errorf("create units counter: %w", err)
	}
	if h.tokens, err = meter.Int64Counter("warden.tokens",
		metric.WithDescription("Tokens consumed by unit attempts")); err != nil {
		return nil, fmt.Errorf("create tokens counter: %w", err)
	}
	if h.messages, err = meter.Int64Counter("warden.messages",
		metric.WithDescription("Messages appended by unit attempts")); err != nil {
		return nil, fmt.Errorf("create messages counter: %w", err)
	}
	if h.workingSeconds, err = meter.Float64Counter("warden.working_seconds",
		metric.WithDescription("Productive seconds spent by unit attempts")); err != nil {
		return nil, fmt.Errorf("create working_seconds counter: %w", err)
	}
	if h.retries, err = meter.Int64Counter("warden.retries",
		metric.WithDescription("Unit retries")); err != nil {
		return nil, fmt.Errorf("create retries counter: %w", err)
	}
	if h.violations, err = meter.Int64Counter("warden.violations",
		metric.WithDescription("Tripped guards")); err != nil {
		return nil, fmt.Errorf("create violations counter: %w", err)
	}
	if h.aborts, err = meter.Int64Counter("warden.aborts",
		metric.WithDescription("Batch aborts on failure threshold")); err != nil {
		return nil, fmt.Errorf("create aborts counter: %w", err)
	}
	return h, nil
}

func spanKey(unitID string, attempt int) string {
	return fmt.Sprintf("%s#%d", unitID, attempt)
}

// OnBeforeUnit starts the attempt's span.
func (h *Hook) OnBeforeUnit(ctx context.Context, e warden.BeforeUnitEvent) {
	_, span := h.tracer.Start(ctx, "warden.unit",
		trace.WithAttributes(
			attribute.String("warden.unit_id", e.UnitID),
			attribute.Int("warden.attempt", e.Attempt),
		))
	h.mu.Lock()
	h.spans[spanKey(e.UnitID, e.Attempt)] = span
	h.mu.Unlock()
}

// OnAfterUnit ends the attempt's span and records its usage.
func (h *Hook) OnAfterUnit(ctx context.Context, e warden.AfterUnitEvent) {
	attrs := metric.WithAttributes(
		attribute.String("warden.unit_id", e.UnitID),
		attribute.String("warden.status", string(e.Status)),
	)
	h.units.Add(ctx, 1, attrs)
	h.tokens.Add(ctx, e.Usage.Tokens, attrs)
	h.messages.Add(ctx, e.Usage.Messages, attrs)
	h.workingSeconds.Add(ctx, e.Usage.Working.Seconds(), attrs)

	h.mu.Lock()
	key := spanKey(e.UnitID, e.Attempt)
	span, ok := h.spans[key]
	delete(h.spans, key)
	h.mu.Unlock()
	if !ok {
		return
	}

	span.SetAttributes(
		attribute.String("warden.status", string(e.Status)),
		attribute.Int64("warden.tokens", e.Usage.Tokens),
		attribute.Int64("warden.messages", e.Usage.Messages),
		attribute.Float64("warden.working_seconds", e.Usage.Working.Seconds()),
	)
	switch {
	case e.Status == warden.StatusError && e.Err != nil:
		span.RecordError(e.Err)
		span.SetStatus(codes.Error, e.Err.Error())
	case e.Violation != nil:
		span.SetAttributes(attribute.String("warden.limit_kind", string(e.Violation.Kind)))
	}
	span.End()
}

// OnRetry counts the retry.
func (h *Hook) OnRetry(ctx context.Context, e warden.RetryEvent) {
	h.retries.Add(ctx, 1, metric.WithAttributes(
		attribute.String("warden.unit_id", e.UnitID),
	))
}

// OnViolation counts the tripped guard.
func (h *Hook) OnViolation(ctx context.Context, e warden.ViolationEvent) {
	h.violations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("warden.unit_id", e.UnitID),
		attribute.String("warden.scope", e.Scope),
		attribute.String("warden.kind", string(e.Violation.Kind)),
	))
}

// OnAbort counts the abort.
func (h *Hook) OnAbort(ctx context.Context, e warden.AbortEvent) {
	h.aborts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("warden.reason", e.Reason),
	))
}

// Compile-time checks that Hook implements the hook interfaces.
var (
	_ warden.BeforeUnitHook = (*Hook)(nil)
	_ warden.AfterUnitHook  = (*Hook)(nil)
	_ warden.RetryHook      = (*Hook)(nil)
	_ warden.ViolationHook  = (*Hook)(nil)
	_ warden.AbortHook      = (*Hook)(nil)
)
