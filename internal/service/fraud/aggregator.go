package fraud

import (
	"github.com/atlaspay/fraud-risk-engine/internal/domain/fraud"
)

// RiskAggregator combines evaluator and velocity output into one bounded
// score plus a recommendation. Pure, non-blocking, in-memory.
type RiskAggregator struct{}

// NewRiskAggregator creates an aggregator.
func NewRiskAggregator() *RiskAggregator {
	return &RiskAggregator{}
}

// Score sums each signal's severity and clamps to [0,100]. Adding a
// matching signal never decreases the pre-clamp raw score: severities are
// non-negative by pattern validation.
func (a *RiskAggregator) Score(signals []fraud.FraudSignal) (int, fraud.Recommendation) {
	score := fraud.ClampScore(fraud.SumSeverities(signals))
	return score, fraud.RecommendationForScore(score)
}

// FailSafe is the deliberate conservative outcome for internal evaluation
// failures: middle score, manual review. Never approve on failure.
func (a *RiskAggregator) FailSafe() (int, fraud.Recommendation) {
	return failSafeScore, fraud.RecommendReview
}
