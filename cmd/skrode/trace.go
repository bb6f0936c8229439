package main

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/arrdem/skrode/internal/config"
)

// setupTracer installs the OTLP trace exporter when tracing is enabled.
// The returned shutdown flushes pending spans; it is a no-op when tracing
// is off.
func setupTracer(ctx context.Context, cfg config.Server) (func(context.Context) error, error) {
	if !cfg.EnableTrace {
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(cfg.TraceEndpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName("skrode"),
		)),
	)
	otel.SetTracerProvider(provider)

	slog.Info("tracing enabled",
		slog.String("endpoint", cfg.TraceEndpoint),
		slog.String("module", "main"),
	)
	return provider.Shutdown, nil
}
