package telemetry

import (
	"fmt"
	"os"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// newTracerProvider builds a TracerProvider whose span processor depends
// on exporterKind(): "file" writes JSON span data to OTEL_EXPORTER_FILE's
// path, "console" writes to stderr, "none" registers no processor (spans
// are created but never exported).
func newTracerProvider() (*sdktrace.TracerProvider, error) {
	switch exporterKind() {
	case "file":
		f, err := os.OpenFile(os.Getenv("OTEL_EXPORTER_FILE"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open OTEL_EXPORTER_FILE: %w", err)
		}
		exp, err := newStdoutSpanExporter(f)
		if err != nil {
			return nil, err
		}
		return sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp)), nil
	case "console":
		exp, err := newStdoutSpanExporter(os.Stderr)
		if err != nil {
			return nil, err
		}
		return sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp)), nil
	default:
		return sdktrace.NewTracerProvider(), nil
	}
}

func newMeterProvider() (*sdkmetric.MeterProvider, error) {
	switch exporterKind() {
	case "file":
		f, err := os.OpenFile(os.Getenv("OTEL_EXPORTER_FILE")+".metrics", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open metrics file: %w", err)
		}
		exp, err := newStdoutMetricExporter(f)
		if err != nil {
			return nil, err
		}
		return sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp))), nil
	case "console":
		exp, err := newStdoutMetricExporter(os.Stderr)
		if err != nil {
			return nil, err
		}
		return sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp))), nil
	default:
		return sdkmetric.NewMeterProvider(), nil
	}
}
