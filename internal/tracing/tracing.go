// Package tracing wires a thin OpenTelemetry tracer into the engine, per
// SPEC_FULL.md §4.14: one span per conversation turn and one per tool
// dispatch. Like internal/metrics, this is an ambient concern — when
// OTEL_EXPORTER_OTLP_ENDPOINT is unset, Setup returns a no-op tracer and
// the engine behaves exactly as if tracing didn't exist, grounded on the
// teacher's internal/observability.NewTracer no-endpoint fallback.
package tracing

import (
	"context"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// ServiceName identifies this binary's spans in any connected collector.
const ServiceName = "egg"

// Shutdown flushes and tears down the tracer provider. It is a no-op when
// no OTLP endpoint was configured.
type Shutdown func(context.Context) error

// Setup builds a trace.Tracer from OTEL_EXPORTER_OTLP_ENDPOINT. An empty
// endpoint yields the global no-op tracer; a set endpoint builds a real
// OTLP/HTTP exporter and batch span processor. Exporter construction
// failure degrades to the no-op tracer rather than aborting startup,
// matching spec.md §7's policy of never failing the conversation loop
// over an observability dependency.
func Setup(ctx context.Context) (trace.Tracer, Shutdown) {
	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if endpoint == "" {
		return otel.Tracer(ServiceName), func(context.Context) error { return nil }
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(endpoint))
	if err != nil {
		return otel.Tracer(ServiceName), func(context.Context) error { return nil }
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", ServiceName),
		)),
	)
	otel.SetTracerProvider(provider)
	return provider.Tracer(ServiceName), provider.Shutdown
}

// StartTurn opens the "egg.turn" span for one send_message round-trip,
// per SPEC_FULL.md §4.14.
func StartTurn(ctx context.Context, tracer trace.Tracer, modelKey string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "egg.turn", trace.WithAttributes(
		attribute.String("egg.model_key", modelKey),
	))
}

// StartToolDispatch opens the "egg.tool_dispatch" span for one tool call.
func StartToolDispatch(ctx context.Context, tracer trace.Tracer, toolName string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "egg.tool_dispatch", trace.WithAttributes(
		attribute.String("egg.tool", toolName),
	))
}

// EndWithError records err on span (if non-nil) before the caller's own
// span.End(), so traced errors surface as span events without the engine
// needing to import otel/codes directly everywhere a span is used.
func EndWithError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
