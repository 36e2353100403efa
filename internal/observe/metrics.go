// Package observe provides the observability primitives shared by the radio
// engine: OpenTelemetry metrics, tracing, trace-aware structured logging and
// HTTP middleware for the operational endpoint.
//
// Metrics are recorded through the OpenTelemetry Metrics API and exposed in
// Prometheus format by [InitProvider] and [MetricsHandler]. [DefaultMetrics]
// returns a process-wide instance bound to the global meter provider; tests
// should build their own with [NewMetrics] and a manual reader.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/MrWong99/radiodj"

// Status values used for the "status" and "outcome" attributes.
const (
	StatusOK      = "ok"
	StatusError   = "error"
	StatusSkipped = "skipped"
)

// Metrics holds all metric instruments of the application. The underlying
// OpenTelemetry types are safe for concurrent use.
type Metrics struct {
	// LLMDuration tracks announcement text generation latency, fallbacks
	// included.
	LLMDuration metric.Float64Histogram

	// TTSDuration tracks speech synthesis latency per provider attempt.
	TTSDuration metric.Float64Histogram

	// ProviderRequests counts provider attempts. Attributes: provider, kind,
	// status.
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts failed provider attempts. Attributes: provider,
	// kind.
	ProviderErrors metric.Int64Counter

	// BreakerTransitions counts circuit breaker state changes. Attributes:
	// provider, state.
	BreakerTransitions metric.Int64Counter

	// Generations counts produced announcement texts. Attributes: intent,
	// source ("llm" or "fallback").
	Generations metric.Int64Counter

	// Announcements counts announcement attempts by final outcome.
	// Attributes: intent, outcome.
	Announcements metric.Int64Counter

	// Songs counts committed track-start cycles.
	Songs metric.Int64Counter

	// AutoRadioStarts counts auto-radio start attempts. Attribute: outcome.
	AutoRadioStarts metric.Int64Counter

	// ArtifactsLive tracks synthesised audio files not yet released.
	ArtifactsLive metric.Int64UpDownCounter

	// ActiveGuilds tracks guilds with a connected voice session.
	ActiveGuilds metric.Int64UpDownCounter

	// HTTPRequestDuration tracks operational HTTP request latency.
	// Attributes: method, path.
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets are histogram boundaries in seconds, sized for remote LLM
// and TTS round trips.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 15, 30,
}

// NewMetrics creates a fully initialised [Metrics] from mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	histogram := func(name, desc string) (metric.Float64Histogram, error) {
		return m.Float64Histogram(name,
			metric.WithDescription(desc),
			metric.WithUnit("s"),
			metric.WithExplicitBucketBoundaries(latencyBuckets...),
		)
	}

	if met.LLMDuration, err = histogram("radiodj.llm.duration", "Latency of announcement text generation."); err != nil {
		return nil, err
	}
	if met.TTSDuration, err = histogram("radiodj.tts.duration", "Latency of a single speech synthesis attempt."); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = histogram("radiodj.http.request.duration", "Latency of operational HTTP requests."); err != nil {
		return nil, err
	}

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&met.ProviderRequests, "radiodj.provider.requests", "Total provider attempts."},
		{&met.ProviderErrors, "radiodj.provider.errors", "Total failed provider attempts."},
		{&met.BreakerTransitions, "radiodj.breaker.transitions", "Circuit breaker state changes."},
		{&met.Generations, "radiodj.announcement.generated", "Announcement texts produced, by source."},
		{&met.Announcements, "radiodj.announcements", "Announcement attempts, by outcome."},
		{&met.Songs, "radiodj.songs", "Committed track-start cycles."},
		{&met.AutoRadioStarts, "radiodj.autoradio.starts", "Auto-radio start attempts, by outcome."},
	}
	for _, c := range counters {
		if *c.dst, err = m.Int64Counter(c.name, metric.WithDescription(c.desc)); err != nil {
			return nil, err
		}
	}

	if met.ArtifactsLive, err = m.Int64UpDownCounter("radiodj.artifacts.live",
		metric.WithDescription("Synthesised audio files awaiting release."),
	); err != nil {
		return nil, err
	}
	if met.ActiveGuilds, err = m.Int64UpDownCounter("radiodj.guilds.active",
		metric.WithDescription("Guilds with a connected voice session."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call from [otel.GetMeterProvider]. Panics if instrument creation
// fails, which does not happen with the global provider.
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

// Attr is shorthand for [attribute.String].
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordProviderAttempt records one provider attempt. kind is "llm" or "tts".
// Skipped attempts (open breaker) count as requests with status "skipped" and
// do not record a duration.
func (m *Metrics) RecordProviderAttempt(ctx context.Context, kind, provider string, d time.Duration, err error, skipped bool) {
	status := StatusOK
	switch {
	case skipped:
		status = StatusSkipped
	case err != nil:
		status = StatusError
	}
	m.ProviderRequests.Add(ctx, 1, metric.WithAttributes(
		Attr("provider", provider), Attr("kind", kind), Attr("status", status),
	))
	if err != nil && !skipped {
		m.ProviderErrors.Add(ctx, 1, metric.WithAttributes(Attr("provider", provider), Attr("kind", kind)))
	}
	if !skipped && kind == "tts" {
		m.TTSDuration.Record(ctx, d.Seconds(), metric.WithAttributes(Attr("provider", provider)))
	}
}

// RecordBreakerTransition records a circuit breaker entering state.
func (m *Metrics) RecordBreakerTransition(ctx context.Context, provider, state string) {
	m.BreakerTransitions.Add(ctx, 1, metric.WithAttributes(Attr("provider", provider), Attr("state", state)))
}

// RecordGeneration records one produced announcement text.
func (m *Metrics) RecordGeneration(ctx context.Context, intent, source string, d time.Duration) {
	m.Generations.Add(ctx, 1, metric.WithAttributes(Attr("intent", intent), Attr("source", source)))
	m.LLMDuration.Record(ctx, d.Seconds(), metric.WithAttributes(Attr("intent", intent), Attr("source", source)))
}

// RecordAnnouncement records the final outcome of one announcement attempt.
func (m *Metrics) RecordAnnouncement(ctx context.Context, intent, outcome string) {
	m.Announcements.Add(ctx, 1, metric.WithAttributes(Attr("intent", intent), Attr("outcome", outcome)))
}

// RecordSong records a committed track-start cycle.
func (m *Metrics) RecordSong(ctx context.Context) {
	m.Songs.Add(ctx, 1)
}

// RecordAutoRadioStart records an auto-radio start attempt.
func (m *Metrics) RecordAutoRadioStart(ctx context.Context, outcome string) {
	m.AutoRadioStarts.Add(ctx, 1, metric.WithAttributes(Attr("outcome", outcome)))
}
