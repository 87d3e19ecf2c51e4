package metrics

import (
	"context"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Registry holds the fraud-domain metrics for the engine.
type Registry struct {
	meter metric.Meter

	// Scoring pipeline
	ScoringDuration       metric.Float64Histogram
	ScoringCounter        metric.Int64Counter
	SignalsPerAttempt     metric.Int64Histogram
	BlockedCounter        metric.Int64Counter
	RecommendationCounter metric.Int64Counter

	// Chargebacks and registry
	ChargebackCounter metric.Int64Counter
	ActivePatterns    metric.Int64ObservableGauge

	patternCount atomic.Int64
}

// NewRegistry creates a metrics registry on the named meter.
func NewRegistry(meterName string) (*Registry, error) {
	meter := otel.Meter(meterName)
	r := &Registry{meter: meter}

	var err error

	r.ScoringDuration, err = meter.Float64Histogram(
		"fraud.scoring.duration",
		metric.WithDescription("Duration of one scoring pass"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	r.ScoringCounter, err = meter.Int64Counter(
		"fraud.scoring.total",
		metric.WithDescription("Payment attempts scored"),
	)
	if err != nil {
		return nil, err
	}

	r.SignalsPerAttempt, err = meter.Int64Histogram(
		"fraud.scoring.signals",
		metric.WithDescription("Signals produced per scored attempt"),
	)
	if err != nil {
		return nil, err
	}

	r.BlockedCounter, err = meter.Int64Counter(
		"fraud.policy.blocked.total",
		metric.WithDescription("Attempts blocked by the decision policy"),
	)
	if err != nil {
		return nil, err
	}

	r.RecommendationCounter, err = meter.Int64Counter(
		"fraud.scoring.recommendation.total",
		metric.WithDescription("Recommendations emitted, by kind"),
	)
	if err != nil {
		return nil, err
	}

	r.ChargebackCounter, err = meter.Int64Counter(
		"fraud.chargeback.total",
		metric.WithDescription("Chargeback notifications processed"),
	)
	if err != nil {
		return nil, err
	}

	r.ActivePatterns, err = meter.Int64ObservableGauge(
		"fraud.patterns.active",
		metric.WithDescription("Patterns in the active registry snapshot"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(r.patternCount.Load())
			return nil
		}),
	)
	if err != nil {
		return nil, err
	}

	return r, nil
}

// RecordScoring records one completed scoring pass.
func (r *Registry) RecordScoring(ctx context.Context, d time.Duration, recommendation string, blocked bool, signals int) {
	attrs := metric.WithAttributes(attribute.String("recommendation", recommendation))
	r.ScoringDuration.Record(ctx, d.Seconds(), attrs)
	r.ScoringCounter.Add(ctx, 1, attrs)
	r.SignalsPerAttempt.Record(ctx, int64(signals))
	r.RecommendationCounter.Add(ctx, 1, attrs)
	if blocked {
		r.BlockedCounter.Add(ctx, 1)
	}
}

// RecordChargeback records one processed dispute notification.
func (r *Registry) RecordChargeback(ctx context.Context) {
	r.ChargebackCounter.Add(ctx, 1)
}

// SetPatternCount updates the registry-size gauge.
func (r *Registry) SetPatternCount(n int) {
	r.patternCount.Store(int64(n))
}
