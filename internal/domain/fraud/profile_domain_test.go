package fraud

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestComputeOverallScore(t *testing.T) {
	tests := []struct {
		name                              string
		payment, account, usage, velocity int
		want                              int
	}{
		{name: "all zero", want: 0},
		{name: "all maxed", payment: 100, account: 100, usage: 100, velocity: 100, want: 100},
		{name: "payment dominates", payment: 100, want: 40},
		{name: "weighted blend rounds", payment: 50, account: 30, usage: 10, velocity: 20, want: 34},
		{name: "rounding up", payment: 1, account: 1, usage: 1, velocity: 1, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeOverallScore(tt.payment, tt.account, tt.usage, tt.velocity)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRiskLevelForScore(t *testing.T) {
	tests := []struct {
		score int
		want  RiskLevel
	}{
		{score: 0, want: RiskLow},
		{score: 39, want: RiskLow},
		{score: 40, want: RiskMedium},
		{score: 59, want: RiskMedium},
		{score: 60, want: RiskHigh},
		{score: 79, want: RiskHigh},
		{score: 80, want: RiskCritical},
		{score: 100, want: RiskCritical},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, RiskLevelForScore(tt.score), "score %d", tt.score)
	}
}

func TestUserRiskProfile_Finalize(t *testing.T) {
	now := time.Now()

	p := &UserRiskProfile{
		UserID:       uuid.New(),
		PaymentRisk:  80,
		AccountRisk:  85,
		UsageRisk:    10,
		VelocityRisk: 40,
	}
	p.Finalize(false, now)

	assert.Equal(t, 65, p.OverallRiskScore)
	assert.Equal(t, RiskHigh, p.RiskLevel)
	assert.False(t, p.RequiresReview)
	assert.Equal(t, now, p.LastCalculatedAt)
}

func TestUserRiskProfile_FinalizeChargebackForcesReview(t *testing.T) {
	p := &UserRiskProfile{UserID: uuid.New()}
	p.Finalize(true, time.Now())

	// Even a zero-score profile stays under review after a chargeback.
	assert.Equal(t, RiskLow, p.RiskLevel)
	assert.True(t, p.RequiresReview)
}

func TestUserRiskProfile_FinalizeHighScoreForcesReview(t *testing.T) {
	p := &UserRiskProfile{
		UserID:      uuid.New(),
		PaymentRisk: 100,
		AccountRisk: 100,
	}
	p.Finalize(false, time.Now())

	assert.Equal(t, 70, p.OverallRiskScore)
	assert.True(t, p.RequiresReview)
}
