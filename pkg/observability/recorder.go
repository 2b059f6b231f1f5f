package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/kckern/DaylightStation-sub013/pkg/governance"
)

// Metric names.
const (
	MetricEvaluations  = "governance.evaluations"
	MetricPhaseChanges = "governance.phase_changes"
	MetricGhosts       = "governance.ghost_participants"
	MetricEvalDuration = "governance.evaluation.duration"
)

// Recorder implements governance.Observer on OpenTelemetry instruments.
type Recorder struct {
	evaluations  metric.Int64Counter
	phaseChanges metric.Int64Counter
	ghosts       metric.Int64Counter
	duration     metric.Float64Histogram
}

var _ governance.Observer = (*Recorder)(nil)

// NewRecorder creates the governance instruments on meter.
func NewRecorder(meter metric.Meter) (*Recorder, error) {
	r := &Recorder{}
	var err error

	r.evaluations, err = meter.Int64Counter(MetricEvaluations,
		metric.WithDescription("Evaluations by trigger source and outcome"),
		metric.WithUnit("{evaluation}"),
	)
	if err != nil {
		return nil, err
	}

	r.phaseChanges, err = meter.Int64Counter(MetricPhaseChanges,
		metric.WithDescription("Phase transitions by from/to phase"),
		metric.WithUnit("{transition}"),
	)
	if err != nil {
		return nil, err
	}

	r.ghosts, err = meter.Int64Counter(MetricGhosts,
		metric.WithDescription("Participants evaluated without a resolvable zone"),
		metric.WithUnit("{participant}"),
	)
	if err != nil {
		return nil, err
	}

	r.duration, err = meter.Float64Histogram(MetricEvalDuration,
		metric.WithDescription("Evaluation latency in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.05),
	)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// ObserveEvaluation records one evaluation.
func (r *Recorder) ObserveEvaluation(ctx context.Context, s governance.Summary, elapsed time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("source", string(s.Source)),
		attribute.String("outcome", string(s.Outcome)),
	)
	r.evaluations.Add(ctx, 1, attrs)
	r.duration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attribute.String("source", string(s.Source))))
	if s.GhostCount > 0 {
		r.ghosts.Add(ctx, int64(s.GhostCount), metric.WithAttributes(attribute.String("source", string(s.Source))))
	}
}

// ObservePhaseChange records one phase transition.
func (r *Recorder) ObservePhaseChange(ctx context.Context, c governance.PhaseChange) {
	r.phaseChanges.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", string(c.From)),
		attribute.String("to", string(c.To)),
		attribute.String("outcome", string(c.Outcome)),
	))
}
