// Package observe provides application-wide observability primitives for
// Lectern: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
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

// meterName is the instrumentation scope name used for all Lectern metrics.
const meterName = "github.com/MrWong99/lectern"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// ASRDuration tracks speech-recognition latency per audio frame.
	ASRDuration metric.Float64Histogram

	// TranslateDuration tracks translation latency per segment.
	TranslateDuration metric.Float64Histogram

	// BroadcastDuration tracks full room fan-out latency per subtitle event.
	BroadcastDuration metric.Float64Histogram

	// --- Counters ---

	// SubtitleEvents counts produced subtitle events. Use with attributes:
	//   attribute.String("stream", ...), attribute.String("status", ...)
	SubtitleEvents metric.Int64Counter

	// DeliveryErrors counts listeners dropped during fan-out.
	DeliveryErrors metric.Int64Counter

	// PersistenceTasks counts queue task outcomes. Use with attributes:
	//   attribute.String("kind", ...), attribute.String("status", ...)
	PersistenceTasks metric.Int64Counter

	// ProviderErrors counts ASR and translation backend errors. Use with
	// attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveConnections tracks the number of live WebSocket connections.
	ActiveConnections metric.Int64UpDownCounter

	// ActiveRooms tracks the number of lecture rooms with at least one
	// listener.
	ActiveRooms metric.Int64UpDownCounter

	// QueueDepth tracks the number of pending persistence tasks.
	QueueDepth metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for realtime subtitle latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.ASRDuration, err = m.Float64Histogram("lectern.asr.duration",
		metric.WithDescription("Latency of speech recognition per audio frame."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TranslateDuration, err = m.Float64Histogram("lectern.translate.duration",
		metric.WithDescription("Latency of translation per transcript segment."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.BroadcastDuration, err = m.Float64Histogram("lectern.broadcast.duration",
		metric.WithDescription("Latency of room fan-out per subtitle event."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.SubtitleEvents, err = m.Int64Counter("lectern.subtitle.events",
		metric.WithDescription("Total subtitle events by stream and status."),
	); err != nil {
		return nil, err
	}
	if met.DeliveryErrors, err = m.Int64Counter("lectern.delivery.errors",
		metric.WithDescription("Total listeners dropped during fan-out."),
	); err != nil {
		return nil, err
	}
	if met.PersistenceTasks, err = m.Int64Counter("lectern.persistence.tasks",
		metric.WithDescription("Total persistence queue task outcomes by kind and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("lectern.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveConnections, err = m.Int64UpDownCounter("lectern.active_connections",
		metric.WithDescription("Number of live WebSocket connections."),
	); err != nil {
		return nil, err
	}
	if met.ActiveRooms, err = m.Int64UpDownCounter("lectern.active_rooms",
		metric.WithDescription("Number of lecture rooms with at least one listener."),
	); err != nil {
		return nil, err
	}
	if met.QueueDepth, err = m.Int64UpDownCounter("lectern.queue_depth",
		metric.WithDescription("Number of pending persistence tasks."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("lectern.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
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

// RecordSubtitleEvent is a convenience method that records a subtitle event
// counter increment with the standard attribute set.
func (m *Metrics) RecordSubtitleEvent(ctx context.Context, stream, status string) {
	m.SubtitleEvents.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("stream", stream),
			attribute.String("status", status),
		),
	)
}

// RecordPersistenceTask is a convenience method that records a queue task
// outcome counter increment.
func (m *Metrics) RecordPersistenceTask(ctx context.Context, kind, status string) {
	m.PersistenceTasks.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError is a convenience method that records a provider error
// counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}
