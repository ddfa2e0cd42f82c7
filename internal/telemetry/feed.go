package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// FeedEvents opens spans for feed reads and mutations
type FeedEvents struct {
	tracer trace.Tracer
}

// NewFeedEvents uses the global tracer provider, so it is a no-op until InitTracer runs.
func NewFeedEvents() *FeedEvents {
	return &FeedEvents{
		tracer: otel.Tracer("feed"),
	}
}

// TraceFetch covers one planner + assembler round for a view
func (fe *FeedEvents) TraceFetch(ctx context.Context, viewKey string, token uint64) (context.Context, trace.Span) {
	return fe.tracer.Start(ctx, "feed.fetch",
		trace.WithAttributes(
			attribute.String("feed.view", viewKey),
			attribute.Int64("feed.request_token", int64(token)),
		),
	)
}

// TraceAssemble covers assembling count posts into view models
func (fe *FeedEvents) TraceAssemble(ctx context.Context, count int) (context.Context, trace.Span) {
	return fe.tracer.Start(ctx, "feed.assemble",
		trace.WithAttributes(attribute.Int("feed.post_count", count)),
	)
}

// TraceMutation covers a write such as toggle_like or add_comment
func (fe *FeedEvents) TraceMutation(ctx context.Context, op, targetID string) (context.Context, trace.Span) {
	return fe.tracer.Start(ctx, "feed."+op,
		trace.WithAttributes(
			attribute.String("feed.op", op),
			attribute.String("feed.target_id", targetID),
		),
	)
}

// End records err on span (if any) and ends it
func End(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	}
	span.End()
}

// MarkStale flags a fetch whose result was discarded by the cache
func MarkStale(span trace.Span) {
	span.SetAttributes(attribute.Bool("feed.stale", true))
}
