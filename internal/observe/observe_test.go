package observe

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	sums := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					sums[m.Name] += dp.Value
				}
			}
		}
	}
	return sums
}

func TestMetrics_Record(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := NewMetrics(provider.Meter("test"))
	require.NoError(t, err)
	ctx := context.Background()

	m.RecordLookup(ctx, "cache_video_list", ResultMemory)
	m.RecordLookup(ctx, "cache_video_list", ResultMiss)
	m.RecordProducer(ctx, "cache_video_list", 12*time.Millisecond, nil)
	m.RecordProducer(ctx, "cache_video_list", 3*time.Millisecond, errors.New("boom"))
	m.RecordStorageFailure(ctx, "cache_metadata", "load")
	m.RecordInvalidation(ctx, "all", 7)

	sums := collect(t, reader)
	assert.Equal(t, int64(2), sums["cache.lookups"])
	assert.Equal(t, int64(2), sums["cache.producer.calls"])
	assert.Equal(t, int64(1), sums["cache.producer.errors"])
	assert.Equal(t, int64(1), sums["cache.storage.failures"])
	assert.Equal(t, int64(1), sums["cache.invalidations"])
	assert.Equal(t, int64(7), sums["cache.invalidated_entries"])
}

func TestNoopMetrics(t *testing.T) {
	m := NoopMetrics()
	assert.NotPanics(t, func() {
		m.RecordLookup(context.Background(), "b", ResultDisk)
		m.RecordInvalidation(context.Background(), "entry", 1)
	})
}

func TestSetup_Disabled(t *testing.T) {
	p, err := Setup(context.Background(), Config{ServiceName: "reel", Metrics: ExporterNone})
	require.NoError(t, err)
	assert.NotNil(t, p.Meter())
	assert.NotNil(t, p.Tracer())
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestSetup_Stdout(t *testing.T) {
	var buf bytes.Buffer
	p, err := Setup(context.Background(), Config{
		ServiceName: "reel",
		Version:     "test",
		Metrics:     ExporterStdout,
		Tracing:     ExporterStdout,
		Writer:      &buf,
	})
	require.NoError(t, err)

	m, err := NewMetrics(p.Meter())
	require.NoError(t, err)
	m.RecordLookup(context.Background(), "cache_common", ResultMiss)

	_, span := p.Tracer().Start(context.Background(), "cache.produce")
	span.End()

	require.NoError(t, p.Shutdown(context.Background()))
	assert.Contains(t, buf.String(), "cache.lookups")
	assert.Contains(t, buf.String(), "cache.produce")
}

func TestSetup_UnknownExporter(t *testing.T) {
	_, err := Setup(context.Background(), Config{Metrics: "carrier-pigeon"})
	assert.Error(t, err)
}
