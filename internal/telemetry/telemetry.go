// Package telemetry wires the repair loop's per-node-transition spans and
// counters onto OpenTelemetry, with exporters selected by
// OTEL_EXPORTER_FILE / OTEL_EXPORTER_CONSOLE.
package telemetry

import (
	"context"
	"fmt"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/repairloop/agent/internal/telemetry"

// Telemetry bundles the tracer and counters the repair loop touches at
// every node transition.
type Telemetry struct {
	tracer trace.Tracer

	runSuccess metric.Int64Counter
	runFailed  metric.Int64Counter
	iterations metric.Int64Counter
	llmCalls   metric.Int64Counter
	llmCostUSD metric.Float64Counter

	tp *sdktrace.TracerProvider
	mp *sdkmetric.MeterProvider
}

// New configures exporters from the environment. With neither
// OTEL_EXPORTER_FILE nor OTEL_EXPORTER_CONSOLE set, spans/metrics are
// recorded against a provider with no exporter (i.e. discarded) so
// instrumented code pays no cost but needs no nil-checks.
func New(ctx context.Context) (*Telemetry, error) {
	tp, err := newTracerProvider()
	if err != nil {
		return nil, fmt.Errorf("telemetry: tracer provider: %w", err)
	}
	mp, err := newMeterProvider()
	if err != nil {
		return nil, fmt.Errorf("telemetry: meter provider: %w", err)
	}

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)

	meter := mp.Meter(instrumentationName)
	t := &Telemetry{tracer: tp.Tracer(instrumentationName), tp: tp, mp: mp}

	if t.runSuccess, err = meter.Int64Counter("agent.run.success"); err != nil {
		return nil, err
	}
	if t.runFailed, err = meter.Int64Counter("agent.run.failed"); err != nil {
		return nil, err
	}
	if t.iterations, err = meter.Int64Counter("agent.iterations"); err != nil {
		return nil, err
	}
	if t.llmCalls, err = meter.Int64Counter("llm.calls"); err != nil {
		return nil, err
	}
	if t.llmCostUSD, err = meter.Float64Counter("llm.cost_usd"); err != nil {
		return nil, err
	}
	return t, nil
}

func exporterKind() string {
	if os.Getenv("OTEL_EXPORTER_FILE") != "" {
		return "file"
	}
	if os.Getenv("OTEL_EXPORTER_CONSOLE") != "" {
		return "console"
	}
	return "none"
}

// Shutdown flushes and releases exporter resources.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if err := t.tp.Shutdown(ctx); err != nil {
		return err
	}
	return t.mp.Shutdown(ctx)
}

// NodeSpan starts a span for one node entry/exit, tagged with run id,
// node name, and iteration.
func (t *Telemetry) NodeSpan(ctx context.Context, runID, node string, iteration int) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "graph.node", trace.WithAttributes(
		attribute.String("run_id", runID),
		attribute.String("node", node),
		attribute.Int("iteration", iteration),
	))
}

func (t *Telemetry) RecordRunSuccess(ctx context.Context) { t.runSuccess.Add(ctx, 1) }
func (t *Telemetry) RecordRunFailed(ctx context.Context)  { t.runFailed.Add(ctx, 1) }
func (t *Telemetry) RecordIteration(ctx context.Context)  { t.iterations.Add(ctx, 1) }
func (t *Telemetry) RecordLLMCall(ctx context.Context, costUSD float64) {
	t.llmCalls.Add(ctx, 1)
	t.llmCostUSD.Add(ctx, costUSD)
}
