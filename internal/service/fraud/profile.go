package fraud

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	domainerrors "github.com/atlaspay/fraud-risk-engine/internal/domain/errors"
	"github.com/atlaspay/fraud-risk-engine/internal/domain/fraud"
)

// ProfileCalculator recomputes a user's risk profile from scratch over
// the trailing 30-day window. It never patches sub-scores incrementally;
// recomputation from the same history is idempotent.
type ProfileCalculator struct {
	attempts AttemptRepository
	profiles ProfileRepository
	logger   *slog.Logger
	now      func() time.Time
}

// NewProfileCalculator creates a calculator.
func NewProfileCalculator(attempts AttemptRepository, profiles ProfileRepository, logger *slog.Logger) *ProfileCalculator {
	return &ProfileCalculator{
		attempts: attempts,
		profiles: profiles,
		logger:   logger,
		now:      time.Now,
	}
}

// Recalculate rebuilds and persists the profile for userID. Concurrent
// recalculations for the same user are serialized by the store's
// version-guarded upsert: on conflict the calculator re-reads and
// recomputes, so the persisted row always reflects one complete pass.
func (c *ProfileCalculator) Recalculate(ctx context.Context, userID uuid.UUID) (*fraud.UserRiskProfile, error) {
	var lastErr error
	for i := 0; i < profileSaveRetries; i++ {
		profile, err := c.compute(ctx, userID)
		if err != nil {
			return nil, err
		}

		if err := c.profiles.Save(ctx, profile); err != nil {
			if domainerrors.IsConflict(err) {
				lastErr = err
				continue
			}
			return nil, domainerrors.Wrap(err, "saving risk profile")
		}
		return profile, nil
	}
	return nil, domainerrors.Wrap(lastErr, "risk profile save kept conflicting")
}

// Compute builds the profile without persisting it. Exposed separately so
// callers can preview a recalculation.
func (c *ProfileCalculator) Compute(ctx context.Context, userID uuid.UUID) (*fraud.UserRiskProfile, error) {
	return c.compute(ctx, userID)
}

func (c *ProfileCalculator) compute(ctx context.Context, userID uuid.UUID) (*fraud.UserRiskProfile, error) {
	now := c.now()
	history, err := c.attempts.FindRecentByUser(ctx, userID, now.Add(-profileWindow))
	if err != nil {
		return nil, domainerrors.Wrap(err, "loading attempt history")
	}

	var (
		failedCount    int
		peakScore      int
		hasChargeback  bool
		suspiciousCnt  int
		attemptsIn24h  int
		last24h        = now.Add(-24 * time.Hour)
	)
	for _, a := range history {
		if a.IsFailed() {
			failedCount++
		}
		if a.Status == fraud.StatusChargeback {
			hasChargeback = true
		}
		if a.FraudScore > peakScore {
			peakScore = a.FraudScore
		}
		if a.FraudScore >= fraud.ReviewThreshold {
			suspiciousCnt++
		}
		if a.CreatedAt.After(last24h) {
			attemptsIn24h++
		}
	}

	existing, err := c.profiles.Get(ctx, userID)
	if err != nil && !domainerrors.IsNotFound(err) {
		return nil, domainerrors.Wrap(err, "loading existing profile")
	}

	profile := &fraud.UserRiskProfile{
		UserID:              userID,
		PaymentRisk:         paymentRisk(failedCount, peakScore),
		AccountRisk:         accountRisk(failedCount, hasChargeback),
		UsageRisk:           defaultUsageRisk,
		VelocityRisk:        velocityRisk(attemptsIn24h),
		SuspiciousFlagCount: suspiciousCnt,
	}
	if existing != nil {
		profile.Version = existing.Version
	}
	profile.Finalize(hasChargeback, now)

	return profile, nil
}

// paymentRisk grows with failed attempts and with the worst fraud score
// seen in the window. Bounded 0-100.
func paymentRisk(failedCount, peakScore int) int {
	return fraud.ClampScore(failedCount*12 + peakScore/2)
}

// accountRisk is pinned high by any chargeback in history; otherwise it
// scales with failed attempts, capped below the high band.
func accountRisk(failedCount int, hasChargeback bool) int {
	if hasChargeback {
		return chargebackAccountRisk
	}
	risk := failedCount * 10
	if risk > 60 {
		risk = 60
	}
	return risk
}

// velocityRisk is a coarse behavioural proxy over the last day. Like
// usageRisk it is a placeholder until richer telemetry lands.
func velocityRisk(attemptsIn24h int) int {
	risk := attemptsIn24h * 8
	if risk > 60 {
		risk = 60
	}
	return risk
}
