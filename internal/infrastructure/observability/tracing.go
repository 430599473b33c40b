package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName = "searchchat/chat-api"
)

// GetTracer returns the tracer for the chat-api service.
func GetTracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// RoundAttributes returns common attributes for completion round spans.
func RoundAttributes(model string, round int, toolsAllowed bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("chat.model", model),
		attribute.Int("chat.round", round),
		attribute.Bool("chat.tools_allowed", toolsAllowed),
	}
}

// StartRoundSpan starts a new span for one model completion round.
func StartRoundSpan(ctx context.Context, model string, round int, toolsAllowed bool) (context.Context, trace.Span) {
	ctx, span := GetTracer().Start(ctx, "chat.round",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(RoundAttributes(model, round, toolsAllowed)...),
	)
	return ctx, span
}

// StartToolSpan starts a new span for one tool execution.
func StartToolSpan(ctx context.Context, toolName, callID string) (context.Context, trace.Span) {
	ctx, span := GetTracer().Start(ctx, "tool.execute."+toolName,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("tool.name", toolName),
			attribute.String("tool.call_id", callID),
		),
	)
	return ctx, span
}

// RecordError records an error on a span.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
