// Package observe provides application-wide observability primitives for
// voxpal: OpenTelemetry metrics, distributed tracing, structured logging, and
// HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
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

// meterName is the instrumentation scope name used for all voxpal metrics.
const meterName = "github.com/MrWong99/voxpal"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// --- Latency histograms ---

	// TTSDuration tracks a single provider synthesis attempt. Use with
	// attributes: attribute.String("provider", ...), attribute.String("status", ...)
	TTSDuration metric.Float64Histogram

	// SpeakDuration tracks a whole speak request including fallback.
	SpeakDuration metric.Float64Histogram

	// --- Counters ---

	// ProviderRequests counts provider calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts provider failures. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// Fallbacks counts switches from the primary attempt to the standard
	// fallback voice. Use with attribute: attribute.String("reason", ...)
	Fallbacks metric.Int64Counter

	// ProviderDisables counts sessions whose premium provider got disabled
	// after a credential failure.
	ProviderDisables metric.Int64Counter

	// PlaybackTransitions counts playback state changes. Use with attributes:
	//   attribute.String("from", ...), attribute.String("to", ...)
	PlaybackTransitions metric.Int64Counter

	// AutoplayTriggers counts autoplay triggers. Use with attribute:
	//   attribute.String("trigger", "speech"|"sfx")
	AutoplayTriggers metric.Int64Counter

	// CacheLookups counts audio cache lookups. Use with attribute:
	//   attribute.String("result", "hit"|"miss")
	CacheLookups metric.Int64Counter

	// BreakerTrips counts upstream circuit breaker openings. Use with
	// attribute: attribute.String("breaker", ...)
	BreakerTrips metric.Int64Counter

	// --- Gauges ---

	// ActiveCalls tracks the number of live voice calls.
	ActiveCalls metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("route", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) for
// synthesis round trips, which range from cache hits to slow premium voices.
var latencyBuckets = []float64{
	0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 15, 30,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.TTSDuration, err = m.Float64Histogram("voxpal.tts.duration",
		metric.WithDescription("Latency of a single provider synthesis attempt."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SpeakDuration, err = m.Float64Histogram("voxpal.speak.duration",
		metric.WithDescription("Latency of a speak request including fallback."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.ProviderRequests, err = m.Int64Counter("voxpal.provider.requests",
		metric.WithDescription("Total provider synthesis requests by provider and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("voxpal.provider.errors",
		metric.WithDescription("Total provider failures by provider and kind."),
	); err != nil {
		return nil, err
	}
	if met.Fallbacks, err = m.Int64Counter("voxpal.tts.fallbacks",
		metric.WithDescription("Total fallbacks to the standard voice by reason."),
	); err != nil {
		return nil, err
	}
	if met.ProviderDisables, err = m.Int64Counter("voxpal.tts.provider_disables",
		metric.WithDescription("Total sessions whose premium provider was disabled."),
	); err != nil {
		return nil, err
	}
	if met.PlaybackTransitions, err = m.Int64Counter("voxpal.playback.transitions",
		metric.WithDescription("Total playback state transitions."),
	); err != nil {
		return nil, err
	}
	if met.AutoplayTriggers, err = m.Int64Counter("voxpal.autoplay.triggers",
		metric.WithDescription("Total autoplay triggers by trigger type."),
	); err != nil {
		return nil, err
	}
	if met.CacheLookups, err = m.Int64Counter("voxpal.cache.lookups",
		metric.WithDescription("Total audio cache lookups by result."),
	); err != nil {
		return nil, err
	}
	if met.BreakerTrips, err = m.Int64Counter("voxpal.breaker.trips",
		metric.WithDescription("Total circuit breaker openings by breaker."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveCalls, err = m.Int64UpDownCounter("voxpal.active_calls",
		metric.WithDescription("Number of live voice calls."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("voxpal.http.request.duration",
		metric.WithDescription("HTTP request latency by method and route."),
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

// RecordProviderRequest records one provider synthesis attempt: the request
// counter and its latency.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, status string, seconds float64) {
	attrs := metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("status", status),
	)
	m.ProviderRequests.Add(ctx, 1, attrs)
	m.TTSDuration.Record(ctx, seconds, attrs)
}

// RecordProviderError records a provider failure of the given kind.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// RecordFallback records a switch to the standard fallback voice.
func (m *Metrics) RecordFallback(ctx context.Context, reason string) {
	m.Fallbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// RecordProviderDisabled records that a session disabled its premium provider.
func (m *Metrics) RecordProviderDisabled(ctx context.Context, provider string) {
	m.ProviderDisables.Add(ctx, 1, metric.WithAttributes(attribute.String("provider", provider)))
}

// RecordPlaybackTransition records a playback state change.
func (m *Metrics) RecordPlaybackTransition(ctx context.Context, from, to string) {
	m.PlaybackTransitions.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("from", from),
			attribute.String("to", to),
		),
	)
}

// RecordAutoplayTrigger records a speech or sfx autoplay trigger.
func (m *Metrics) RecordAutoplayTrigger(ctx context.Context, trigger string) {
	m.AutoplayTriggers.Add(ctx, 1, metric.WithAttributes(attribute.String("trigger", trigger)))
}

// RecordCacheLookup records an audio cache hit or miss.
func (m *Metrics) RecordCacheLookup(ctx context.Context, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// RecordBreakerTrip records a circuit breaker opening.
func (m *Metrics) RecordBreakerTrip(ctx context.Context, breaker string) {
	m.BreakerTrips.Add(ctx, 1, metric.WithAttributes(attribute.String("breaker", breaker)))
}
