// Package observe provides application-wide observability primitives for
// segue: OpenTelemetry metrics, tracing helpers, and HTTP middleware.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped from the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all segue metrics.
const meterName = "github.com/MrWong99/segue"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// Transitions counts detected track changes. Use with attribute:
	//   attribute.String("source", "trigger"|"update")
	Transitions metric.Int64Counter

	// LockDuration tracks how long playback stayed locked per transition.
	// Use with attribute: attribute.String("outcome", "completed"|"timeout"|"immediate")
	LockDuration metric.Float64Histogram

	// AnnounceTimeouts counts transitions where no completion signal arrived
	// within the bounded wait and playback was force-resumed.
	AnnounceTimeouts metric.Int64Counter

	// PrefetchDispatched counts prewarm requests actually sent to the
	// announcement service.
	PrefetchDispatched metric.Int64Counter

	// PrefetchAbandoned counts deferred prefetch checks dropped before
	// dispatch. Use with attribute:
	//   attribute.String("cause", "stale"|"duplicate")
	PrefetchAbandoned metric.Int64Counter

	// LockEngaged tracks whether the playback lock is currently held
	// (0 or 1 in practice; an UpDownCounter keeps it cheap).
	LockEngaged metric.Int64UpDownCounter

	// HTTPRequestDuration tracks HTTP request processing time on the admin
	// server. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// lockBuckets defines histogram bucket boundaries (in seconds) sized for
// spoken-transition lengths: most announcements run 2–15 seconds.
var lockBuckets = []float64{
	0.1, 0.5, 1, 2.5, 5, 10, 15, 20, 30, 60,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.Transitions, err = m.Int64Counter("segue.transitions",
		metric.WithDescription("Total detected track changes by source."),
	); err != nil {
		return nil, err
	}
	if met.LockDuration, err = m.Float64Histogram("segue.lock.duration",
		metric.WithDescription("Duration playback stayed locked per transition."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(lockBuckets...),
	); err != nil {
		return nil, err
	}
	if met.AnnounceTimeouts, err = m.Int64Counter("segue.announce.timeouts",
		metric.WithDescription("Total transitions force-resumed after the completion wait expired."),
	); err != nil {
		return nil, err
	}
	if met.PrefetchDispatched, err = m.Int64Counter("segue.prefetch.dispatched",
		metric.WithDescription("Total prewarm requests sent to the announcement service."),
	); err != nil {
		return nil, err
	}
	if met.PrefetchAbandoned, err = m.Int64Counter("segue.prefetch.abandoned",
		metric.WithDescription("Total deferred prefetches dropped before dispatch, by cause."),
	); err != nil {
		return nil, err
	}
	if met.LockEngaged, err = m.Int64UpDownCounter("segue.lock.engaged",
		metric.WithDescription("Whether the playback lock is currently held."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("segue.http.request.duration",
		metric.WithDescription("HTTP request latency on the admin server by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordTransition records one detected track change.
func (m *Metrics) RecordTransition(ctx context.Context, source string) {
	m.Transitions.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
}

// RecordLockDuration records how long the lock was held and the outcome of
// the wait.
func (m *Metrics) RecordLockDuration(ctx context.Context, seconds float64, outcome string) {
	m.LockDuration.Record(ctx, seconds, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordPrefetchAbandoned records one dropped prefetch with its cause.
func (m *Metrics) RecordPrefetchAbandoned(ctx context.Context, cause string) {
	m.PrefetchAbandoned.Add(ctx, 1, metric.WithAttributes(attribute.String("cause", cause)))
}
