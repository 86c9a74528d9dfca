package otelhelper

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/dukex/cadence"

// Metrics holds the counters recorded by the batch runner and the dispatcher.
// With no MeterProvider configured the global meter hands out noop instruments.
type Metrics struct {
	executions metric.Int64Counter
	messages   metric.Int64Counter
	duration   metric.Float64Histogram
}

// NewMetrics builds the instruments from the global MeterProvider.
func NewMetrics() *Metrics {
	return NewMetricsWithMeter(otel.Meter(meterName))
}

// NewMetricsWithMeter builds the instruments from meter.
func NewMetricsWithMeter(meter metric.Meter) *Metrics {
	// Instrument constructors fall back to noop instruments on error.
	executions, _ := meter.Int64Counter(
		"cadence.executions",
		metric.WithDescription("Executions handled by the batch runner, by outcome"),
		metric.WithUnit("{execution}"),
	)

	messages, _ := meter.Int64Counter(
		"cadence.messages",
		metric.WithDescription("Outbound messages, by channel and outcome"),
		metric.WithUnit("{message}"),
	)

	duration, _ := meter.Float64Histogram(
		"cadence.batch.duration",
		metric.WithDescription("Duration of one batch in seconds"),
		metric.WithUnit("s"),
	)

	return &Metrics{executions: executions, messages: messages, duration: duration}
}

// ExecutionHandled counts one execution with outcome processed, skipped or failed.
func (m *Metrics) ExecutionHandled(ctx context.Context, outcome string) {
	if m == nil {
		return
	}

	m.executions.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// MessageHandled counts one send attempt on channel.
func (m *Metrics) MessageHandled(ctx context.Context, channel, outcome string) {
	if m == nil {
		return
	}

	m.messages.Add(ctx, 1, metric.WithAttributes(
		attribute.String("channel", channel),
		attribute.String("outcome", outcome),
	))
}

// BatchFinished records the duration of a batch of kind ("workflow" or "campaign").
func (m *Metrics) BatchFinished(ctx context.Context, kind string, seconds float64) {
	if m == nil {
		return
	}

	m.duration.Record(ctx, seconds, metric.WithAttributes(attribute.String("kind", kind)))
}
