package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys for store operations.
const (
	AttrOperationType   = "store.operation.type"
	AttrHandlerCount    = "store.handler.count"
	AttrSubscriberCount = "store.subscriber.count"
	AttrModulePath      = "store.module.path"
	AttrHot             = "store.reset.hot"
)

// Span name prefixes.
const (
	SpanPrefixCommit   = "store.commit."
	SpanPrefixDispatch = "store.dispatch."
	SpanPrefixModule   = "store.module."
)

// Event names for span events.
const (
	EventUnknownOperation = "operation.unknown"
	EventRejected         = "action.rejected"
)

// Start opens a span when tracer is non-nil. The returned span is always
// safe to use; without a tracer it is a no-op span and ctx is unchanged.
func Start(ctx context.Context, tracer trace.Tracer, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(context.Background())
	}
	return tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
}

// Finish records err on span and ends it. Spans not created by Start with a
// tracer are left alone.
func Finish(span trace.Span, err error) {
	if !span.IsRecording() {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
