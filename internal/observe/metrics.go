// Package observe provides application-wide observability primitives for
// Voxtale: OpenTelemetry metrics and provider setup.
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
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Voxtale metrics.
const meterName = "github.com/voxtale/voxtale"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// TurnDuration tracks wall time from user speech start to response
	// completion for one conversation turn.
	TurnDuration metric.Float64Histogram

	// SyncDeliveryDuration tracks memory-store delivery latency per record,
	// including retries.
	SyncDeliveryDuration metric.Float64Histogram

	// --- Counters ---

	// AudioSends counts outbound audio wire messages (batches, not frames).
	AudioSends metric.Int64Counter

	// RateLimitRejections counts rate-limit errors returned by the model
	// endpoint.
	RateLimitRejections metric.Int64Counter

	// Interruptions counts user barge-ins that cancelled an in-flight
	// response.
	Interruptions metric.Int64Counter

	// SyncOutcomes counts sync pipeline events. Use with attribute:
	//   attribute.String("outcome", "enqueued"|"synced"|"failed"|"dropped")
	SyncOutcomes metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of live voice sessions.
	ActiveSessions metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// conversational turn and sync latencies.
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
	if met.TurnDuration, err = m.Float64Histogram("voxtale.turn.duration",
		metric.WithDescription("Duration of one conversation turn, speech start to response done."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SyncDeliveryDuration, err = m.Float64Histogram("voxtale.sync.delivery.duration",
		metric.WithDescription("Memory-store delivery latency per turn record, retries included."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.AudioSends, err = m.Int64Counter("voxtale.audio.sends",
		metric.WithDescription("Total outbound audio batch messages."),
	); err != nil {
		return nil, err
	}
	if met.RateLimitRejections, err = m.Int64Counter("voxtale.ratelimit.rejections",
		metric.WithDescription("Total rate-limit errors returned by the model endpoint."),
	); err != nil {
		return nil, err
	}
	if met.Interruptions, err = m.Int64Counter("voxtale.session.interruptions",
		metric.WithDescription("Total user barge-ins cancelling an in-flight response."),
	); err != nil {
		return nil, err
	}
	if met.SyncOutcomes, err = m.Int64Counter("voxtale.sync.outcomes",
		metric.WithDescription("Sync pipeline events by outcome."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("voxtale.active_sessions",
		metric.WithDescription("Number of live voice sessions."),
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

// RecordSyncOutcome records one sync pipeline event with the standard
// outcome attribute.
func (m *Metrics) RecordSyncOutcome(ctx context.Context, outcome string) {
	m.SyncOutcomes.Add(ctx, 1,
		metric.WithAttributes(attribute.String("outcome", outcome)),
	)
}

// RecordTurn records a completed turn's duration.
func (m *Metrics) RecordTurn(ctx context.Context, d time.Duration) {
	m.TurnDuration.Record(ctx, d.Seconds())
}

// RecordSyncDelivery records one record's delivery latency.
func (m *Metrics) RecordSyncDelivery(ctx context.Context, d time.Duration) {
	m.SyncDeliveryDuration.Record(ctx, d.Seconds())
}
