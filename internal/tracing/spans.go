package tracing

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// StartTranslationSpan creates a child span for one orchestrator request
// lifecycle phase ("detect", "route", "pivot", "respond").
func StartTranslationSpan(ctx context.Context, phase string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "translation."+phase,
		trace.WithAttributes(attribute.String("translation.phase", phase)),
	)
}

// StartCacheSpan creates a child span for a pipeline cache lookup or load.
func StartCacheSpan(ctx context.Context, family, event string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "pipelinecache."+event,
		trace.WithAttributes(
			attribute.String("pipelinecache.family", family),
			attribute.String("pipelinecache.event", event),
		),
	)
}

// StartInferenceSpan creates a child span for a call into the inference
// runtime backing a cached pipeline.
func StartInferenceSpan(ctx context.Context, modelID, device string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "inference.translate",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("inference.model_id", modelID),
			attribute.String("inference.device", device),
		),
	)
}

// InjectHeaders injects the current trace context (traceparent, tracestate)
// into the given HTTP request headers so the upstream service can continue
// the trace.
func InjectHeaders(ctx context.Context, req *http.Request) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))
}

// SetRequestAttributes adds request-level attributes to the current span.
func SetRequestAttributes(ctx context.Context, requestID, srcLang, tgtLang string, itemCount int) {
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(
		attribute.String("request.id", requestID),
		attribute.String("request.src_lang", srcLang),
		attribute.String("request.tgt_lang", tgtLang),
		attribute.Int("request.item_count", itemCount),
	)
}

// SetResponseAttributes adds response-level attributes to the current span.
func SetResponseAttributes(ctx context.Context, statusCode int, family string, pivoted bool) {
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(
		attribute.Int("response.status_code", statusCode),
		attribute.String("response.family", family),
		attribute.Bool("response.pivoted", pivoted),
	)
}

// RecordError records an error on the current span.
func RecordError(ctx context.Context, err error) {
	if err != nil {
		trace.SpanFromContext(ctx).RecordError(err)
	}
}
