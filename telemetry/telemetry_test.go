package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/evalkit/warden"
)

func newTestHook(t *testing.T) (*Hook, *tracetest.InMemoryExporter, *sdkmetric.ManualReader) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	hook, err := NewWithProviders(tp, mp)
	require.NoError(t, err)
	return hook, exporter, reader
}

func counterValue(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "metric %s is not an int64 sum", name)
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			return total
		}
	}
	return 0
}

func TestHook_SpanPerAttempt(t *testing.T) {
	hook, exporter, _ := newTestHook(t)
	ctx := context.Background()

	hook.OnBeforeUnit(ctx, warden.BeforeUnitEvent{UnitID: "u1", Attempt: 1})
	hook.OnAfterUnit(ctx, warden.AfterUnitEvent{
		UnitID:  "u1",
		Attempt: 1,
		Status:  warden.StatusSuccess,
		Usage:   warden.Usage{Tokens: 1200, Messages: 4, Working: 90 * time.Second},
	})

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "warden.unit", spans[0].Name)

	attrs := map[string]any{}
	for _, kv := range spans[0].Attributes {
		attrs[string(kv.Key)] = kv.Value.AsInterface()
	}
	assert.Equal(t, "u1", attrs["warden.unit_id"])
	assert.Equal(t, "success", attrs["warden.status"])
	assert.Equal(t, int64(1200), attrs["warden.tokens"])
	assert.Equal(t, 90.0, attrs["warden.working_seconds"])
}

func TestHook_ErrorStatusRecordedOnSpan(t *testing.T) {
	hook, exporter, _ := newTestHook(t)
	ctx := context.Background()

	hook.OnBeforeUnit(ctx, warden.BeforeUnitEvent{UnitID: "u1", Attempt: 1})
	hook.OnAfterUnit(ctx, warden.AfterUnitEvent{
		UnitID:  "u1",
		Attempt: 1,
		Status:  warden.StatusError,
		Err:     errors.New("grader crashed"),
	})

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "Error", spans[0].Status.Code.String())
	require.Len(t, spans[0].Events, 1, "RecordError adds an exception event")
}

func TestHook_LimitExitAnnotatesKind(t *testing.T) {
	hook, exporter, _ := newTestHook(t)
	ctx := context.Background()

	hook.OnBeforeUnit(ctx, warden.BeforeUnitEvent{UnitID: "u1", Attempt: 1})
	hook.OnAfterUnit(ctx, warden.AfterUnitEvent{
		UnitID:    "u1",
		Attempt:   1,
		Status:    warden.StatusLimitExit,
		Violation: &warden.LimitError{Kind: warden.KindMessage, Value: 30, Limit: 30},
	})

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	found := false
	for _, kv := range spans[0].Attributes {
		if string(kv.Key) == "warden.limit_kind" {
			found = true
			assert.Equal(t, "message", kv.Value.AsString())
		}
	}
	assert.True(t, found)
}

func TestHook_Counters(t *testing.T) {
	hook, _, reader := newTestHook(t)
	ctx := context.Background()

	hook.OnAfterUnit(ctx, warden.AfterUnitEvent{
		UnitID: "u1", Attempt: 1, Status: warden.StatusSuccess,
		Usage: warden.Usage{Tokens: 500, Messages: 2},
	})
	hook.OnAfterUnit(ctx, warden.AfterUnitEvent{
		UnitID: "u2", Attempt: 1, Status: warden.StatusSuccess,
		Usage: warden.Usage{Tokens: 300, Messages: 1},
	})
	hook.OnRetry(ctx, warden.RetryEvent{UnitID: "u2", Attempt: 1})
	hook.OnViolation(ctx, warden.ViolationEvent{
		UnitID:    "u1",
		Scope:     "subagent",
		Violation: &warden.LimitError{Kind: warden.KindToken},
	})
	hook.OnAbort(ctx, warden.AbortEvent{Reason: "always"})

	assert.Equal(t, int64(2), counterValue(t, reader, "warden.units"))
	assert.Equal(t, int64(800), counterValue(t, reader, "warden.tokens"))
	assert.Equal(t, int64(3), counterValue(t, reader, "warden.messages"))
	assert.Equal(t, int64(1), counterValue(t, reader, "warden.retries"))
	assert.Equal(t, int64(1), counterValue(t, reader, "warden.violations"))
	assert.Equal(t, int64(1), counterValue(t, reader, "warden.aborts"))
}

func TestHook_AfterWithoutBeforeIsTolerated(t *testing.T) {
	hook, exporter, _ := newTestHook(t)

	assert.NotPanics(t, func() {
		hook.OnAfterUnit(context.Background(), warden.AfterUnitEvent{
			UnitID: "orphan", Attempt: 1, Status: warden.StatusSuccess,
		})
	})
	assert.Empty(t, exporter.GetSpans())
}
