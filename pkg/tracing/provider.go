package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/Ramsey-B/bramble/pkg/tracing/exporters"
)

// Config controls how spans leave the process.
type Config struct {
	ServiceName string
	// Exporter is "otlp", "console", or "" to disable export entirely.
	Exporter string
	OTLP     exporters.OTLPConfig
}

// Init builds a tracer provider, registers it globally, and points the package
// tracer at it. The returned shutdown func flushes pending spans.
func Init(ctx context.Context, cfg Config) (func(context.Context) error, error) {
	var exporter sdktrace.SpanExporter
	var err error

	switch cfg.Exporter {
	case "otlp":
		exporter, err = exporters.NewOTLPExporter(ctx, cfg.OTLP)
		if err != nil {
			return nil, fmt.Errorf("failed to create otlp exporter: %w", err)
		}
	case "console":
		exporter = &exporters.ConsoleExporter{}
	case "":
		SetTracer(nil)
		return func(context.Context) error { return nil }, nil
	default:
		return nil, fmt.Errorf("unsupported trace exporter: %s", cfg.Exporter)
	}

	res, err := sdkresource.Merge(
		sdkresource.Default(),
		sdkresource.NewWithAttributes(
			semconv.SchemaURL,
			attribute.String("service.name", cfg.ServiceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build trace resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	SetTracer(provider.Tracer(cfg.ServiceName))

	return provider.Shutdown, nil
}
