// Package observe provides application-wide observability primitives for
// SpeakSmart: OpenTelemetry metrics, tracing helpers, and HTTP middleware
// that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is installed by [InitProvider] so that metrics can be
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

// meterName is the instrumentation scope name used for all SpeakSmart metrics.
const meterName = "github.com/MrWong99/speaksmart"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// --- Latency histograms ---

	// StageDuration tracks audio pipeline stage latency. Use with attributes:
	//   attribute.String("stage", ...), attribute.String("status", ...)
	StageDuration metric.Float64Histogram

	// STTDuration tracks speech-to-text transcription latency.
	STTDuration metric.Float64Histogram

	// TTSDuration tracks prompt synthesis latency.
	TTSDuration metric.Float64Histogram

	// --- Counters ---

	// Events counts inbound chat events. Use with attribute:
	//   attribute.String("kind", ...)
	Events metric.Int64Counter

	// PracticeAttempts counts scored voice answers. Use with attribute:
	//   attribute.String("band", ...)
	PracticeAttempts metric.Int64Counter

	// FAQQueries counts FAQ lookups. Use with attribute:
	//   attribute.String("result", "hit"|"miss"|"error")
	FAQQueries metric.Int64Counter

	// Tickets counts ticket lifecycle transitions. Use with attribute:
	//   attribute.String("action", "opened"|"updated"|"closed"|"notify_failed")
	Tickets metric.Int64Counter

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// ActivePipelines tracks voice answers currently being processed.
	ActivePipelines metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("route", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) for
// transcoding and transcription, which run from tens of milliseconds to
// several seconds.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.StageDuration, err = m.Float64Histogram("speaksmart.pipeline.stage.duration",
		metric.WithDescription("Latency of audio pipeline stages."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.STTDuration, err = m.Float64Histogram("speaksmart.stt.duration",
		metric.WithDescription("Latency of speech-to-text transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TTSDuration, err = m.Float64Histogram("speaksmart.tts.duration",
		metric.WithDescription("Latency of text-to-speech prompt synthesis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.Events, err = m.Int64Counter("speaksmart.events",
		metric.WithDescription("Total inbound chat events by kind."),
	); err != nil {
		return nil, err
	}
	if met.PracticeAttempts, err = m.Int64Counter("speaksmart.practice.attempts",
		metric.WithDescription("Total scored practice answers by feedback band."),
	); err != nil {
		return nil, err
	}
	if met.FAQQueries, err = m.Int64Counter("speaksmart.faq.queries",
		metric.WithDescription("Total FAQ lookups by result."),
	); err != nil {
		return nil, err
	}
	if met.Tickets, err = m.Int64Counter("speaksmart.tickets",
		metric.WithDescription("Total ticket lifecycle transitions by action."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("speaksmart.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActivePipelines, err = m.Int64UpDownCounter("speaksmart.active_pipelines",
		metric.WithDescription("Number of voice answers currently being processed."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("speaksmart.http.request.duration",
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

// RecordStage records the duration of one pipeline stage.
func (m *Metrics) RecordStage(ctx context.Context, stage, status string, seconds float64) {
	m.StageDuration.Record(ctx, seconds,
		metric.WithAttributes(
			attribute.String("stage", stage),
			attribute.String("status", status),
		),
	)
}

// RecordEvent increments the inbound event counter.
func (m *Metrics) RecordEvent(ctx context.Context, kind string) {
	m.Events.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordPracticeAttempt increments the practice attempt counter.
func (m *Metrics) RecordPracticeAttempt(ctx context.Context, band string) {
	m.PracticeAttempts.Add(ctx, 1, metric.WithAttributes(attribute.String("band", band)))
}

// RecordFAQQuery increments the FAQ lookup counter.
func (m *Metrics) RecordFAQQuery(ctx context.Context, result string) {
	m.FAQQueries.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// RecordTicket increments the ticket transition counter.
func (m *Metrics) RecordTicket(ctx context.Context, action string) {
	m.Tickets.Add(ctx, 1, metric.WithAttributes(attribute.String("action", action)))
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
