package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracer = otel.Tracer("promptbox")
	meter  = otel.Meter("promptbox")

	chatRequests metric.Int64Counter
	chatLatency  metric.Float64Histogram
)

func init() {
	// The global meter delegates to whatever provider InitTelemetry installs
	// later; without one these are no-ops.
	chatRequests, _ = meter.Int64Counter("chat.requests",
		metric.WithDescription("provider chat calls"))
	chatLatency, _ = meter.Float64Histogram("chat.latency",
		metric.WithUnit("ms"),
		metric.WithDescription("provider chat call latency"))
}

// StartChatSpan opens a span around one provider chat call.
func StartChatSpan(ctx context.Context, provider, model string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "chat.turn", trace.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("model", model),
	))
}

// RecordChat counts one provider chat call and records its latency.
func RecordChat(ctx context.Context, provider string, d time.Duration, success bool) {
	attrs := metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.Bool("success", success),
	)
	chatRequests.Add(ctx, 1, attrs)
	chatLatency.Record(ctx, float64(d.Milliseconds()), attrs)
}
