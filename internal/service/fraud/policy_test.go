package fraud

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/atlaspay/fraud-risk-engine/internal/domain/fraud"
)

func TestDecisionPolicy_ShouldBlock(t *testing.T) {
	policy := DecisionPolicy{
		HighValueMinorUnits: 50_000,
		LowValueMinorUnits:  2_000,
	}

	profile := func(overall int, review bool) *fraud.UserRiskProfile {
		return &fraud.UserRiskProfile{
			UserID:           uuid.New(),
			OverallRiskScore: overall,
			RiskLevel:        fraud.RiskLevelForScore(overall),
			RequiresReview:   review,
		}
	}

	tests := []struct {
		name    string
		profile *fraud.UserRiskProfile
		amount  int64
		want    bool
	}{
		{name: "no profile never blocks", profile: nil, amount: 1_000_000, want: false},
		{name: "critical score blocks any amount", profile: profile(95, false), amount: 1, want: true},
		{name: "score 90 is the unconditional edge", profile: profile(90, false), amount: 1, want: true},
		{name: "score 89 needs the amount gate", profile: profile(89, false), amount: 1, want: false},
		{name: "high score blocks above high-value threshold", profile: profile(75, false), amount: 50_001, want: true},
		{name: "high score allows at high-value threshold", profile: profile(75, false), amount: 50_000, want: false},
		{name: "score 70 is the high-value edge", profile: profile(70, false), amount: 60_000, want: true},
		{name: "score 69 passes the high-value gate", profile: profile(69, false), amount: 60_000, want: false},
		{name: "review blocks above low-value threshold", profile: profile(50, true), amount: 2_001, want: true},
		{name: "review allows at low-value threshold", profile: profile(50, true), amount: 2_000, want: false},
		{name: "clean profile allows large amount", profile: profile(20, false), amount: 100_000, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, policy.ShouldBlock(tt.profile, tt.amount))
		})
	}
}
