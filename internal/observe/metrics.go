// Package observe provides OpenTelemetry metrics and tracing for
// transcription runs. A Prometheus exporter bridge is available through
// InitProvider so metrics can be scraped from /metrics. Tests should build
// their own Metrics with NewMetrics and a ManualReader-backed provider.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all metrics.
const meterName = "whisperdesk"

// Outcome labels for RunsCompleted.
const (
	OutcomeDone    = "done"
	OutcomeStopped = "stopped"
	OutcomeFailed  = "failed"
)

// Metrics holds the metric instruments for transcription runs. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	// RunsStarted counts accepted runs. Attribute: format.
	RunsStarted metric.Int64Counter

	// RunsCompleted counts finished runs. Attribute: outcome.
	RunsCompleted metric.Int64Counter

	// RunDuration tracks wall-clock processing time.
	RunDuration metric.Float64Histogram

	// RunSpeed tracks media duration divided by processing time.
	RunSpeed metric.Float64Histogram

	// Segments counts segments reported by the engine.
	Segments metric.Int64Counter

	// GuardForcedStops counts stops requested by the duplicate-segment guard.
	GuardForcedStops metric.Int64Counter

	// ActiveRuns is 1 while a run is in flight.
	ActiveRuns metric.Int64UpDownCounter
}

// durationBuckets are histogram boundaries in seconds for whole-file runs.
var durationBuckets = []float64{
	1, 5, 15, 30, 60, 120, 300, 600, 1200, 3600,
}

// speedBuckets are boundaries for the relative processing speed ratio.
var speedBuckets = []float64{
	0.25, 0.5, 1, 2, 4, 8, 16, 32, 64,
}

// NewMetrics creates all instruments on the given provider.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.RunsStarted, err = m.Int64Counter("whisperdesk.runs.started",
		metric.WithDescription("Transcription runs accepted."),
	); err != nil {
		return nil, err
	}
	if met.RunsCompleted, err = m.Int64Counter("whisperdesk.runs.completed",
		metric.WithDescription("Transcription runs finished, by outcome."),
	); err != nil {
		return nil, err
	}
	if met.RunDuration, err = m.Float64Histogram("whisperdesk.run.duration",
		metric.WithDescription("Processing time of a transcription run."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBuckets...),
	); err != nil {
		return nil, err
	}
	if met.RunSpeed, err = m.Float64Histogram("whisperdesk.run.speed",
		metric.WithDescription("Media duration divided by processing time."),
		metric.WithExplicitBucketBoundaries(speedBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Segments, err = m.Int64Counter("whisperdesk.segments",
		metric.WithDescription("Segments produced by the engine."),
	); err != nil {
		return nil, err
	}
	if met.GuardForcedStops, err = m.Int64Counter("whisperdesk.guard.forced_stops",
		metric.WithDescription("Runs stopped early because of repeated segments."),
	); err != nil {
		return nil, err
	}
	if met.ActiveRuns, err = m.Int64UpDownCounter("whisperdesk.runs.active",
		metric.WithDescription("Transcription runs in flight."),
	); err != nil {
		return nil, err
	}
	return met, nil
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// DefaultMetrics returns metrics bound to the global meter provider. Call it
// after InitProvider so the instruments reach the exporter.
func DefaultMetrics() *Metrics {
	defaultOnce.Do(func() {
		m, err := NewMetrics(otel.GetMeterProvider())
		if err != nil {
			return
		}
		defaultMetrics = m
	})
	return defaultMetrics
}

// RecordRunStarted counts an accepted run and marks it active.
func (m *Metrics) RecordRunStarted(ctx context.Context, format string) {
	if m == nil {
		return
	}
	m.RunsStarted.Add(ctx, 1, metric.WithAttributes(attribute.String("format", format)))
	m.ActiveRuns.Add(ctx, 1)
}

// RecordRunCompleted counts a finished run and its timings.
func (m *Metrics) RecordRunCompleted(ctx context.Context, outcome string, elapsedSeconds, speed float64) {
	if m == nil {
		return
	}
	m.RunsCompleted.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	m.ActiveRuns.Add(ctx, -1)
	if outcome == OutcomeFailed {
		return
	}
	m.RunDuration.Record(ctx, elapsedSeconds)
	if speed > 0 {
		m.RunSpeed.Record(ctx, speed)
	}
}

// RecordSegments counts n new segments.
func (m *Metrics) RecordSegments(ctx context.Context, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.Segments.Add(ctx, int64(n))
}

// RecordForcedStop counts a guard-triggered stop.
func (m *Metrics) RecordForcedStop(ctx context.Context) {
	if m == nil {
		return
	}
	m.GuardForcedStops.Add(ctx, 1)
}
