package fraud

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// RiskLevel is the coarse classification derived from the overall score.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Sub-score weights for the overall blend. Payment behaviour dominates;
// usage and velocity carry placeholder weight until richer telemetry
// exists (documented extension point).
const (
	WeightPayment  = 0.40
	WeightAccount  = 0.30
	WeightUsage    = 0.15
	WeightVelocity = 0.15
)

// Review threshold: at or above this overall score a profile always
// requires manual review, independent of chargeback history.
const ReviewScoreThreshold = 70

// UserRiskProfile is the persisted, periodically recomputed summary of a
// user's historical risk. The overall score is always the weighted
// recombination of the four sub-scores over the trailing 30-day window;
// it is recomputed from scratch, never incrementally patched. Profiles
// are never deleted, even for deactivated users.
type UserRiskProfile struct {
	UserID              uuid.UUID
	PaymentRisk         int
	AccountRisk         int
	UsageRisk           int
	VelocityRisk        int
	OverallRiskScore    int
	RiskLevel           RiskLevel
	RequiresReview      bool
	SuspiciousFlagCount int
	LastCalculatedAt    time.Time

	// Version guards concurrent recalculations: the store only accepts a
	// write whose version matches the row it read, so a persisted profile
	// always reflects one complete recomputation.
	Version int64
}

// ComputeOverallScore blends the four sub-scores into a rounded integer.
func ComputeOverallScore(payment, account, usage, velocity int) int {
	blended := float64(payment)*WeightPayment +
		float64(account)*WeightAccount +
		float64(usage)*WeightUsage +
		float64(velocity)*WeightVelocity
	return ClampScore(int(math.Round(blended)))
}

// RiskLevelForScore maps an overall score to its risk level.
func RiskLevelForScore(score int) RiskLevel {
	switch {
	case score >= 80:
		return RiskCritical
	case score >= 60:
		return RiskHigh
	case score >= 40:
		return RiskMedium
	default:
		return RiskLow
	}
}

// Finalize derives the overall score, risk level and review flag from the
// sub-scores. hasChargeback permanently elevates scrutiny: a chargeback in
// history forces review even if subsequent behaviour is clean.
func (p *UserRiskProfile) Finalize(hasChargeback bool, at time.Time) {
	p.OverallRiskScore = ComputeOverallScore(p.PaymentRisk, p.AccountRisk, p.UsageRisk, p.VelocityRisk)
	p.RiskLevel = RiskLevelForScore(p.OverallRiskScore)
	p.RequiresReview = p.OverallRiskScore >= ReviewScoreThreshold || hasChargeback
	p.LastCalculatedAt = at
}
