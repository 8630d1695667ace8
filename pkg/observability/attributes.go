package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Validator semantic convention attributes.
var (
	AttrJobID     = attribute.Key("validator.job.id")
	AttrRole      = attribute.Key("validator.artifact.role")
	AttrBucket    = attribute.Key("validator.artifact.bucket")
	AttrKey       = attribute.Key("validator.artifact.key")
	AttrStep      = attribute.Key("validator.step")
	AttrAlgorithm = attribute.Key("validator.hash.algorithm")
	AttrFileCount = attribute.Key("validator.file.count")
	AttrOutcome   = attribute.Key("validator.outcome")
	AttrReason    = attribute.Key("validator.verdict.reason")
)

// Job outcomes.
const (
	OutcomePassed = "passed"
	OutcomeFailed = "failed"
	OutcomeError  = "error"
)

// JobAttributes identifies a job.
func JobAttributes(jobID string) []attribute.KeyValue {
	return []attribute.KeyValue{AttrJobID.String(jobID)}
}

// ArtifactOperation creates attributes for a per-artifact step.
func ArtifactOperation(step, role, bucket, key string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrStep.String(step),
		AttrRole.String(role),
		AttrBucket.String(bucket),
		AttrKey.String(key),
	}
}

// FingerprintOperation creates attributes for fingerprinting.
func FingerprintOperation(role, algorithm string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrStep.String("fingerprint"),
		AttrRole.String(role),
		AttrAlgorithm.String(algorithm),
	}
}

// SpanFromContext extracts the span from context.
func SpanFromContext(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}

// AddSpanEvent adds an event to the current span.
func AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).AddEvent(name, trace.WithAttributes(attrs...))
}

// SetSpanStatus marks the current span as failed when err is non-nil.
func SetSpanStatus(ctx context.Context, err error) {
	if err == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
