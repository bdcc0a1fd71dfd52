package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Standard attribute keys for Greenlight spans.
var (
	AttrCallID      = attribute.Key("greenlight.call.id")
	AttrToolName    = attribute.Key("greenlight.tool.name")
	AttrMessageID   = attribute.Key("greenlight.message.id")
	AttrMessageKind = attribute.Key("greenlight.message.kind")
	AttrRoute       = attribute.Key("greenlight.route")
	AttrApproved    = attribute.Key("greenlight.approved")

	// AttrSettledBy records which path answered a dispatched call:
	// "direct" or "push".
	AttrSettledBy = attribute.Key("greenlight.call.settled_by")
)

// StartSpan is a convenience wrapper that starts an internal span with common attributes.
func StartSpan(ctx context.Context, tracer trace.Tracer, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// StartConsumerSpan starts a span for an inbound push frame.
func StartConsumerSpan(ctx context.Context, tracer trace.Tracer, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindConsumer),
	)
}

// StartClientSpan starts a span for an outbound call (dispatch, store).
func StartClientSpan(ctx context.Context, tracer trace.Tracer, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}
