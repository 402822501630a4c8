// Package observe provides application-wide observability primitives:
// OpenTelemetry metrics and the Prometheus exporter bridge.
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

// meterName is the instrumentation scope name used for all application metrics.
const meterName = "github.com/racksdue/voice-application"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// WindowDuration tracks the full capture-to-decode cycle latency.
	WindowDuration metric.Float64Histogram

	// InferenceDuration tracks speech recognition latency per window,
	// including retries.
	InferenceDuration metric.Float64Histogram

	// SynthesisDuration tracks text-to-speech synthesis latency.
	SynthesisDuration metric.Float64Histogram

	// --- Counters ---

	// WindowsProcessed counts decoded windows. Use with attribute:
	//   attribute.String("mode", "fixed-step"|"vad")
	WindowsProcessed metric.Int64Counter

	// InferenceRetries counts individual retry attempts beyond the first
	// inference call of a window.
	InferenceRetries metric.Int64Counter

	// InferenceFailures counts windows dropped after the retry budget was
	// spent.
	InferenceFailures metric.Int64Counter

	// VADDecisions counts voice-activity classifications. Use with attribute:
	//   attribute.String("decision", "speech"|"silence")
	VADDecisions metric.Int64Counter

	// DroppedAudioMs accumulates milliseconds of captured audio discarded by
	// the lossy backpressure policy.
	DroppedAudioMs metric.Int64Counter

	// TriggerMatches counts trigger phrase hits. Use with attribute:
	//   attribute.String("phrase", ...)
	TriggerMatches metric.Int64Counter

	// --- Gauges ---

	// ContextTokens tracks the current size of the rolling decoding context.
	ContextTokens metric.Int64Gauge
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for voice-pipeline latencies.
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
	if met.WindowDuration, err = m.Float64Histogram("voiceapp.window.duration",
		metric.WithDescription("Latency of one full capture-to-decode cycle."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.InferenceDuration, err = m.Float64Histogram("voiceapp.inference.duration",
		metric.WithDescription("Latency of speech recognition per window, including retries."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SynthesisDuration, err = m.Float64Histogram("voiceapp.synthesis.duration",
		metric.WithDescription("Latency of text-to-speech synthesis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.WindowsProcessed, err = m.Int64Counter("voiceapp.windows.processed",
		metric.WithDescription("Total decoded windows by capture mode."),
	); err != nil {
		return nil, err
	}
	if met.InferenceRetries, err = m.Int64Counter("voiceapp.inference.retries",
		metric.WithDescription("Total inference retry attempts beyond the first call."),
	); err != nil {
		return nil, err
	}
	if met.InferenceFailures, err = m.Int64Counter("voiceapp.inference.failures",
		metric.WithDescription("Total windows dropped after the retry budget was spent."),
	); err != nil {
		return nil, err
	}
	if met.VADDecisions, err = m.Int64Counter("voiceapp.vad.decisions",
		metric.WithDescription("Total voice-activity classifications by decision."),
	); err != nil {
		return nil, err
	}
	if met.DroppedAudioMs, err = m.Int64Counter("voiceapp.audio.dropped",
		metric.WithDescription("Milliseconds of captured audio discarded under backpressure."),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}
	if met.TriggerMatches, err = m.Int64Counter("voiceapp.trigger.matches",
		metric.WithDescription("Total trigger phrase hits by phrase."),
	); err != nil {
		return nil, err
	}

	// Gauges.
	if met.ContextTokens, err = m.Int64Gauge("voiceapp.context.tokens",
		metric.WithDescription("Current size of the rolling decoding context."),
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

// RecordVADDecision records one voice-activity classification.
func (m *Metrics) RecordVADDecision(ctx context.Context, speech bool) {
	decision := "silence"
	if speech {
		decision = "speech"
	}
	m.VADDecisions.Add(ctx, 1,
		metric.WithAttributes(attribute.String("decision", decision)),
	)
}

// RecordWindow records one decoded window for the given capture mode.
func (m *Metrics) RecordWindow(ctx context.Context, mode string, seconds float64) {
	attrs := metric.WithAttributes(attribute.String("mode", mode))
	m.WindowsProcessed.Add(ctx, 1, attrs)
	m.WindowDuration.Record(ctx, seconds, attrs)
}

// RecordTriggerMatch records one trigger phrase hit.
func (m *Metrics) RecordTriggerMatch(ctx context.Context, phrase string) {
	m.TriggerMatches.Add(ctx, 1,
		metric.WithAttributes(attribute.String("phrase", phrase)),
	)
}
