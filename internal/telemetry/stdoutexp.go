package telemetry

import (
	"io"

	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func newStdoutSpanExporter(w io.Writer) (sdktrace.SpanExporter, error) {
	return stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithoutTimestamps())
}

func newStdoutMetricExporter(w io.Writer) (sdkmetric.Exporter, error) {
	return stdoutmetric.New(stdoutmetric.WithWriter(w))
}
