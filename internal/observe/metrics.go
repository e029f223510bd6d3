package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Lookup outcomes
const (
	ResultMemory = "memory"
	ResultDisk   = "disk"
	ResultMiss   = "miss"
)

// Metrics records cache activity.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordLookup records the outcome of a cache lookup for a bucket.
	RecordLookup(ctx context.Context, bucket, result string)

	// RecordProducer records a call through to the data source on a miss.
	RecordProducer(ctx context.Context, bucket string, duration time.Duration, err error)

	// RecordStorageFailure records a disk tier failure that was degraded to a miss or no-op.
	RecordStorageFailure(ctx context.Context, bucket, op string)

	// RecordInvalidation records an invalidation and how many entries it removed.
	RecordInvalidation(ctx context.Context, scope string, entries int)
}

type metricsImpl struct {
	lookups         metric.Int64Counter
	producerCalls   metric.Int64Counter
	producerErrors  metric.Int64Counter
	producerLatency metric.Float64Histogram
	storageFailures metric.Int64Counter
	invalidations   metric.Int64Counter
	invalidated     metric.Int64Counter
}

// NewMetrics creates cache instruments on the given meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	lookups, err := meter.Int64Counter(
		"cache.lookups",
		metric.WithDescription("Cache lookups by bucket and outcome"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, err
	}

	producerCalls, err := meter.Int64Counter(
		"cache.producer.calls",
		metric.WithDescription("Calls through to the data source on cache miss"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	producerErrors, err := meter.Int64Counter(
		"cache.producer.errors",
		metric.WithDescription("Failed calls through to the data source"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	producerLatency, err := meter.Float64Histogram(
		"cache.producer.duration_ms",
		metric.WithDescription("Data source call duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	storageFailures, err := meter.Int64Counter(
		"cache.storage.failures",
		metric.WithDescription("Disk tier failures treated as miss or no-op"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	invalidations, err := meter.Int64Counter(
		"cache.invalidations",
		metric.WithDescription("Invalidation operations by scope"),
		metric.WithUnit("{invalidation}"),
	)
	if err != nil {
		return nil, err
	}

	invalidated, err := meter.Int64Counter(
		"cache.invalidated_entries",
		metric.WithDescription("Entries removed by invalidation"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		lookups:         lookups,
		producerCalls:   producerCalls,
		producerErrors:  producerErrors,
		producerLatency: producerLatency,
		storageFailures: storageFailures,
		invalidations:   invalidations,
		invalidated:     invalidated,
	}, nil
}

func (m *metricsImpl) RecordLookup(ctx context.Context, bucket, result string) {
	m.lookups.Add(ctx, 1, metric.WithAttributes(
		attribute.String("cache.bucket", bucket),
		attribute.String("cache.result", result),
	))
}

func (m *metricsImpl) RecordProducer(ctx context.Context, bucket string, duration time.Duration, err error) {
	opt := metric.WithAttributes(attribute.String("cache.bucket", bucket))

	m.producerCalls.Add(ctx, 1, opt)
	if err != nil {
		m.producerErrors.Add(ctx, 1, opt)
	}
	m.producerLatency.Record(ctx, float64(duration.Milliseconds()), opt)
}

func (m *metricsImpl) RecordStorageFailure(ctx context.Context, bucket, op string) {
	m.storageFailures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("cache.bucket", bucket),
		attribute.String("cache.op", op),
	))
}

func (m *metricsImpl) RecordInvalidation(ctx context.Context, scope string, entries int) {
	opt := metric.WithAttributes(attribute.String("cache.scope", scope))
	m.invalidations.Add(ctx, 1, opt)
	m.invalidated.Add(ctx, int64(entries), opt)
}

// NoopMetrics returns a Metrics that records nothing.
func NoopMetrics() Metrics {
	return noopMetrics{}
}

type noopMetrics struct{}

func (noopMetrics) RecordLookup(context.Context, string, string)                 {}
func (noopMetrics) RecordProducer(context.Context, string, time.Duration, error) {}
func (noopMetrics) RecordStorageFailure(context.Context, string, string)         {}
func (noopMetrics) RecordInvalidation(context.Context, string, int)              {}
