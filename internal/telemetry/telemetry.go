// Package telemetry installs the global OpenTelemetry tracer provider.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	klog "github.com/reflector-network/txprep/internal/log"
)

// ServiceName identifies txprep spans in a collector.
const ServiceName = "txprep"

// Shutdown flushes and stops span export.
type Shutdown func(context.Context) error

func noop(context.Context) error { return nil }

// Init exports spans over OTLP/HTTP to endpoint (host:port) and installs the
// provider globally. An empty endpoint leaves the no-op provider in place.
func Init(ctx context.Context, endpoint, network string) (Shutdown, error) {
	if endpoint == "" {
		return noop, nil
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return noop, fmt.Errorf("create otlp exporter: %w", err)
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", ServiceName),
		attribute.String("stellar.network", network),
	)
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	klog.Info().Str("endpoint", endpoint).Msg("Trace export enabled")
	return tp.Shutdown, nil
}
