package fraud

import (
	"github.com/atlaspay/fraud-risk-engine/internal/domain/fraud"
)

// Policy score thresholds.
const (
	policyAlwaysBlockScore = 90
	policyHighValueScore   = 70
)

// DecisionPolicy decides block vs. allow from the user's profile and the
// attempt amount. Pure function of its inputs, no side effects; the
// caller may still apply the per-attempt recommendation (e.g. step-up
// auth) independently of this boolean.
type DecisionPolicy struct {
	// HighValueMinorUnits gates high-risk users out of large transactions.
	HighValueMinorUnits int64
	// LowValueMinorUnits protects small, low-friction transactions from
	// over-blocking while still gating anything non-trivial for users
	// under review.
	LowValueMinorUnits int64
}

// ShouldBlock applies the policy ladder:
//   - overall >= 90 blocks regardless of amount,
//   - overall >= 70 blocks amounts above the high-value threshold,
//   - requiresReview blocks amounts above the low-value threshold.
func (p DecisionPolicy) ShouldBlock(profile *fraud.UserRiskProfile, amountMinorUnits int64) bool {
	if profile == nil {
		return false
	}
	if profile.OverallRiskScore >= policyAlwaysBlockScore {
		return true
	}
	if profile.OverallRiskScore >= policyHighValueScore && amountMinorUnits > p.HighValueMinorUnits {
		return true
	}
	if profile.RequiresReview && amountMinorUnits > p.LowValueMinorUnits {
		return true
	}
	return false
}
