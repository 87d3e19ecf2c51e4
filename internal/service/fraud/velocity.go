package fraud

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/atlaspay/fraud-risk-engine/internal/domain/fraud"
)

// VelocityAnalyzer runs the built-in time-windowed count checks against
// the immutable attempt history. It never mutates anything.
type VelocityAnalyzer struct {
	attempts AttemptRepository
}

// NewVelocityAnalyzer creates an analyzer over the given history.
func NewVelocityAnalyzer(attempts AttemptRepository) *VelocityAnalyzer {
	return &VelocityAnalyzer{attempts: attempts}
}

// AnalyzeVelocity runs two independent checks over fixed trailing windows
// relative to now: recent-attempt velocity (same user, 15 minutes) and
// recent-failure velocity (same user, 60 minutes). A count exactly at a
// threshold triggers. A store error is returned to the caller so the
// aggregator can take its fail-safe path; velocity being unavailable
// must not be mistaken for velocity being clean.
//
// ip is part of the analysis input surface; the built-in checks are
// user-keyed and do not consult it.
func (v *VelocityAnalyzer) AnalyzeVelocity(ctx context.Context, userID uuid.UUID, ip string, now time.Time) ([]fraud.FraudSignal, error) {
	var signals []fraud.FraudSignal

	attemptCount, err := v.attempts.CountRecentByUser(ctx, userID, now.Add(-attemptVelocityWindow))
	if err != nil {
		return nil, fmt.Errorf("recent-attempt velocity query: %w", err)
	}
	if attemptCount >= attemptVelocityThreshold {
		signals = append(signals, fraud.FraudSignal{
			PatternKey: signalRapidAttempts,
			Severity:   attemptVelocitySeverity,
			Confidence: attemptVelocityConfidence,
			Details: map[string]interface{}{
				"count":          attemptCount,
				"window_minutes": int(attemptVelocityWindow.Minutes()),
			},
		})
	}

	failureCount, err := v.attempts.CountRecentFailedByUser(ctx, userID, now.Add(-failureVelocityWindow))
	if err != nil {
		return nil, fmt.Errorf("recent-failure velocity query: %w", err)
	}
	if failureCount >= failureVelocityThreshold {
		signals = append(signals, fraud.FraudSignal{
			PatternKey: signalRepeatedFailures,
			Severity:   failureVelocitySeverity,
			Confidence: failureVelocityConfidence,
			Details: map[string]interface{}{
				"count":          failureCount,
				"window_minutes": int(failureVelocityWindow.Minutes()),
			},
		})
	}

	return signals, nil
}
