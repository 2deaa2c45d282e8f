// Package observe provides application-wide observability primitives for
// Voxloop: OpenTelemetry metrics and the SDK provider setup.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
//
// All recording helpers are nil-receiver safe so callers can treat metrics
// as optional and skip the nil checks.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Voxloop metrics.
const meterName = "github.com/voxloop/voxloop"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// TranscriptionDuration tracks speech-to-text inference latency.
	TranscriptionDuration metric.Float64Histogram

	// SynthesisDuration tracks text-to-speech synthesis latency.
	SynthesisDuration metric.Float64Histogram

	// ListeningDuration tracks how long the learner spoke before the
	// end-of-speech detector fired.
	ListeningDuration metric.Float64Histogram

	// --- Counters ---

	// SentencesCompleted counts sentences the learner finished shadowing.
	SentencesCompleted metric.Int64Counter

	// CacheDownloads counts reference audio downloads that missed the
	// local cache.
	CacheDownloads metric.Int64Counter

	// ProviderErrors counts provider failures. Use with attribute:
	//   attribute.String("provider", ...)
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of live shadowing sessions.
	ActiveSessions metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// speech-pipeline latencies.
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
	if met.TranscriptionDuration, err = m.Float64Histogram("voxloop.stt.duration",
		metric.WithDescription("Latency of speech-to-text inference."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SynthesisDuration, err = m.Float64Histogram("voxloop.tts.duration",
		metric.WithDescription("Latency of text-to-speech synthesis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ListeningDuration, err = m.Float64Histogram("voxloop.listening.duration",
		metric.WithDescription("Time from listening start to end-of-speech detection."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.SentencesCompleted, err = m.Int64Counter("voxloop.sentences.completed",
		metric.WithDescription("Total sentences completed by learners."),
	); err != nil {
		return nil, err
	}
	if met.CacheDownloads, err = m.Int64Counter("voxloop.audiocache.downloads",
		metric.WithDescription("Total reference audio downloads that missed the cache."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("voxloop.provider.errors",
		metric.WithDescription("Total provider errors by provider."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("voxloop.active_sessions",
		metric.WithDescription("Number of live shadowing sessions."),
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

// RecordTranscriptionDuration records one speech-to-text inference latency.
func (m *Metrics) RecordTranscriptionDuration(ctx context.Context, d time.Duration) {
	if m == nil {
		return
	}
	m.TranscriptionDuration.Record(ctx, d.Seconds())
}

// RecordSynthesisDuration records one text-to-speech synthesis latency.
func (m *Metrics) RecordSynthesisDuration(ctx context.Context, d time.Duration) {
	if m == nil {
		return
	}
	m.SynthesisDuration.Record(ctx, d.Seconds())
}

// RecordListeningDuration records how long a learner spoke before the
// detector fired.
func (m *Metrics) RecordListeningDuration(ctx context.Context, d time.Duration) {
	if m == nil {
		return
	}
	m.ListeningDuration.Record(ctx, d.Seconds())
}

// RecordSentenceCompleted increments the completed-sentence counter.
func (m *Metrics) RecordSentenceCompleted(ctx context.Context) {
	if m == nil {
		return
	}
	m.SentencesCompleted.Add(ctx, 1)
}

// RecordCacheDownload increments the cache-miss download counter.
func (m *Metrics) RecordCacheDownload(ctx context.Context) {
	if m == nil {
		return
	}
	m.CacheDownloads.Add(ctx, 1)
}

// RecordProviderError increments the error counter for the named provider.
func (m *Metrics) RecordProviderError(ctx context.Context, provider string) {
	if m == nil {
		return
	}
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("provider", provider)),
	)
}

// AddActiveSessions adjusts the live session gauge by delta.
func (m *Metrics) AddActiveSessions(ctx context.Context, delta int64) {
	if m == nil {
		return
	}
	m.ActiveSessions.Add(ctx, delta)
}
