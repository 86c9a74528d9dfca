// Package otelhelper provides tracing and metric instruments for the engine and the dispatcher.
package otelhelper

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otlptracehttp "go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	// Common attribute keys.
	WorkflowIDKey  = "cadence.workflow.id"
	ExecutionIDKey = "cadence.execution.id"
	ContactIDKey   = "cadence.contact.id"
	NodeIDKey      = "cadence.node.id"
	NodeKindKey    = "cadence.node.kind"
	CampaignIDKey  = "cadence.campaign.id"
	ChannelKey     = "cadence.channel"
	OutcomeKey     = "cadence.outcome"
)

// Tracer returns the tracer of the global TracerProvider. It is a noop tracer
// until SetupTracing installs an exporting provider.
//
// nolint:ireturn // Returning interface is intentional for OpenTelemetry tracing
func Tracer() trace.Tracer {
	return otel.Tracer(meterName)
}

// SetupTracing installs an OTLP/HTTP exporting provider as the global one.
// The exporter reads the standard OTEL_EXPORTER_OTLP_* variables. The
// returned function flushes and stops it.
func SetupTracing(ctx context.Context, serviceName string) (func(context.Context) error, error) {
	provider, err := newTracerProvider(ctx, serviceName)
	if err != nil {
		return nil, err
	}

	return provider.Shutdown, nil
}

// nolint:ireturn,spancheck // Returning interface is intentional for OpenTelemetry tracing
func StartSpan(ctx context.Context, tracer trace.Tracer, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func newTracerProvider(ctx context.Context, serviceName string) (*sdktrace.TracerProvider, error) {
	r, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return nil, err
	}

	exporter, err := otlptracehttp.New(ctx)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(r),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}))

	return tp, nil
}
