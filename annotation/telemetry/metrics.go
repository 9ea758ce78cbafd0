// Package telemetry records pipeline metrics through the OpenTelemetry metrics API and exposes
// them for Prometheus scraping during long runs.
package telemetry

import (
	"context"
	"slices"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/theimaginaryfoundation/role-annotator/annotation"
)

const meterName = "github.com/theimaginaryfoundation/role-annotator"

// Metrics holds the instruments used by the annotation pipeline.
type Metrics struct {
	// Attempts counts completion attempts by result: ok, completion_error, parse_failure,
	// identity_mismatch, invalid_role.
	Attempts metric.Int64Counter

	// Dialogues counts finished dialogues by outcome: succeeded or failed.
	Dialogues metric.Int64Counter

	// CompletionDuration tracks model latency per attempt.
	CompletionDuration metric.Float64Histogram

	// attrs are added to every measurement.
	attrs []attribute.KeyValue
}

var _ annotation.Recorder = (*Metrics)(nil)

// completionBuckets are in seconds; local models on CPU can take minutes per dialogue.
var completionBuckets = []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 160, 320}

// Attributes describes one run; pass them to NewMetrics.
func Attributes(approach, backend, model string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("approach", approach),
		attribute.String("backend", backend),
		attribute.String("model", model),
	}
}

// NewMetrics creates the instruments on mp. attrs are attached to every measurement.
func NewMetrics(mp metric.MeterProvider, attrs ...attribute.KeyValue) (*Metrics, error) {
	m := mp.Meter(meterName)
	met := &Metrics{attrs: attrs}
	var err error

	if met.Attempts, err = m.Int64Counter("role_annotator.attempts",
		metric.WithDescription("Completion attempts by result."),
	); err != nil {
		return nil, err
	}
	if met.Dialogues, err = m.Int64Counter("role_annotator.dialogues",
		metric.WithDescription("Dialogues finished by outcome."),
	); err != nil {
		return nil, err
	}
	if met.CompletionDuration, err = m.Float64Histogram("role_annotator.completion.duration",
		metric.WithDescription("Latency of one model completion."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(completionBuckets...),
	); err != nil {
		return nil, err
	}
	return met, nil
}

func (m *Metrics) RecordAttempt(ctx context.Context, result string, latency time.Duration) {
	m.Attempts.Add(ctx, 1, m.with(attribute.String("result", result)))
	m.CompletionDuration.Record(ctx, latency.Seconds(), m.with())
}

func (m *Metrics) RecordDialogue(ctx context.Context, outcome string) {
	m.Dialogues.Add(ctx, 1, m.with(attribute.String("outcome", outcome)))
}

func (m *Metrics) with(extra ...attribute.KeyValue) metric.MeasurementOption {
	return metric.WithAttributes(slices.Concat(m.attrs, extra)...)
}
