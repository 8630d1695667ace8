package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newTestProvider(t *testing.T) (*Provider, *tracetest.SpanRecorder, *sdkmetric.ManualReader) {
	t.Helper()
	spans := tracetest.NewSpanRecorder()
	reader := sdkmetric.NewManualReader()
	p, err := newProvider(DefaultConfig(),
		sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans)),
		sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })
	return p, spans, reader
}

func sumOf(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "metric %s is not an int64 sum", name)
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	return total
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	require.Equal(t, "artifact-validator", config.ServiceName)
	require.Equal(t, "development", config.Environment)
	require.Equal(t, "localhost:4317", config.OTLPEndpoint)
	require.Equal(t, 1.0, config.SampleRate)
	require.False(t, config.Enabled)
}

func TestNewProviderDisabled(t *testing.T) {
	p, err := New(context.Background(), &Config{Enabled: false})
	require.NoError(t, err)
	require.NotNil(t, p)

	// Should not fail even when disabled
	require.NotNil(t, p.Tracer())
	require.NotNil(t, p.Meter())
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestNewProviderWithNilConfig(t *testing.T) {
	p, err := New(context.Background(), nil)
	require.NoError(t, err)
	require.NotNil(t, p)
}

func TestTrackOperation(t *testing.T) {
	p, spans, reader := newTestProvider(t)

	attrs := ArtifactOperation("fetch", "candidate", "bucket", "key.zip")
	ctx, finish := p.TrackOperation(context.Background(), "validator.fetch", attrs...)
	require.NotNil(t, ctx)
	time.Sleep(time.Millisecond)
	finish(nil)

	ended := spans.Ended()
	require.Len(t, ended, 1)
	require.Equal(t, "validator.fetch", ended[0].Name())
	require.Equal(t, codes.Unset, ended[0].Status().Code)
	require.Equal(t, int64(1), sumOf(t, reader, "validator.steps.total"))
	require.Equal(t, int64(0), sumOf(t, reader, "validator.errors.total"))
	require.Equal(t, int64(0), sumOf(t, reader, "validator.steps.active"))
}

func TestTrackOperationWithError(t *testing.T) {
	p, spans, reader := newTestProvider(t)

	_, finish := p.TrackOperation(context.Background(), "validator.unpack")
	finish(errors.New("corrupt archive"))

	ended := spans.Ended()
	require.Len(t, ended, 1)
	require.Equal(t, codes.Error, ended[0].Status().Code)
	require.Equal(t, "corrupt archive", ended[0].Status().Description)
	require.Equal(t, int64(1), sumOf(t, reader, "validator.errors.total"))
}

func TestTrackOperationNilProvider(t *testing.T) {
	var p *Provider
	ctx, finish := p.TrackOperation(context.Background(), "validator.compare")
	require.NotNil(t, ctx)
	finish(errors.New("ignored"))
}

func TestRecordOutcome(t *testing.T) {
	p, _, reader := newTestProvider(t)

	p.RecordOutcome(context.Background(), OutcomePassed, JobAttributes("job-1")...)
	p.RecordOutcome(context.Background(), OutcomeFailed, JobAttributes("job-2")...)
	require.Equal(t, int64(2), sumOf(t, reader, "validator.jobs.total"))
}

func TestRecordMetricsDisabled(t *testing.T) {
	p, err := New(context.Background(), &Config{Enabled: false})
	require.NoError(t, err)

	ctx := context.Background()
	// These should not panic when provider is disabled
	p.RecordOutcome(ctx, OutcomeError)
	p.RecordError(ctx, errors.New("test"), attribute.String("test", "value"))
	p.RecordDuration(ctx, 100*time.Millisecond, attribute.String("test", "value"))
}

func TestArtifactOperation(t *testing.T) {
	attrs := ArtifactOperation("fetch", "reference", "pipeline-artifacts", "test-artifact/artifact.zip")
	require.Len(t, attrs, 4)
	require.Equal(t, "validator.artifact.role", string(attrs[1].Key))
	require.Equal(t, "reference", attrs[1].Value.AsString())
}

func TestFingerprintOperation(t *testing.T) {
	attrs := FingerprintOperation("candidate", "sha256")
	require.Len(t, attrs, 3)
	require.Equal(t, "validator.hash.algorithm", string(attrs[2].Key))
	require.Equal(t, "sha256", attrs[2].Value.AsString())
}

func TestSpanHelpersWithoutSpan(t *testing.T) {
	ctx := context.Background()
	require.NotNil(t, SpanFromContext(ctx)) // no-op span
	AddSpanEvent(ctx, "test.event", attribute.String("key", "value"))
	SetSpanStatus(ctx, errors.New("test error"))
	SetSpanStatus(ctx, nil)
}
