package fraud

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/atlaspay/fraud-risk-engine/internal/domain/fraud"
	"github.com/atlaspay/fraud-risk-engine/internal/domain/values"
)

// AttemptRepository is the persistence contract for payment attempts.
// Velocity and reuse queries are read-only over the immutable history.
type AttemptRepository interface {
	// Save persists a new attempt with its score and signals.
	Save(ctx context.Context, attempt *fraud.PaymentAttempt) error
	// Update persists status/chargeback mutations of an existing attempt.
	Update(ctx context.Context, attempt *fraud.PaymentAttempt) error
	// FindByGatewayReference looks up the attempt for a dispute.
	FindByGatewayReference(ctx context.Context, ref string) (*fraud.PaymentAttempt, error)
	// FindRecentByUser returns the user's attempts since the given time,
	// newest first.
	FindRecentByUser(ctx context.Context, userID uuid.UUID, since time.Time) ([]*fraud.PaymentAttempt, error)
	// CountRecentByUser counts the user's attempts since the given time.
	CountRecentByUser(ctx context.Context, userID uuid.UUID, since time.Time) (int, error)
	// CountRecentFailedByUser counts the user's failed attempts since the
	// given time.
	CountRecentFailedByUser(ctx context.Context, userID uuid.UUID, since time.Time) (int, error)
	// CountDistinctUsersByMethodDigest counts distinct users that have
	// presented the given payment-method digest since the given time.
	CountDistinctUsersByMethodDigest(ctx context.Context, digest values.Digest, since time.Time) (int, error)
}

// PatternRepository loads and stores operator-curated fraud patterns.
// Upsert replaces an existing pattern with the same key.
type PatternRepository interface {
	ListActive(ctx context.Context) ([]*fraud.FraudPattern, error)
	Upsert(ctx context.Context, p *fraud.FraudPattern) error
}

// ProfileRepository persists user risk profiles. Save performs a
// version-guarded upsert: it fails with a conflict error when the stored
// version no longer matches the profile's, so a persisted profile always
// reflects one complete recomputation.
type ProfileRepository interface {
	Get(ctx context.Context, userID uuid.UUID) (*fraud.UserRiskProfile, error)
	Save(ctx context.Context, profile *fraud.UserRiskProfile) error
}

// EvidenceRepository persists chargeback evidence bundles.
type EvidenceRepository interface {
	SaveBundle(ctx context.Context, bundle []*fraud.ChargebackEvidence) error
	FindByAttempt(ctx context.Context, attemptID uuid.UUID) ([]*fraud.ChargebackEvidence, error)
}

// AlertPublisher emits alert events for an external notifier. Delivery and
// retry are the notifier's concern.
type AlertPublisher interface {
	Publish(ctx context.Context, alert *fraud.FraudAlert) error
}

// AnalysisResult is the scoring outcome returned to the caller. The caller
// only ever sees a score plus recommendation and a decisive block signal;
// internal store failures are absorbed by the conservative fallback.
type AnalysisResult struct {
	AttemptID      uuid.UUID            `json:"attempt_id"`
	FraudScore     int                  `json:"fraud_score"`
	Signals        []fraud.FraudSignal  `json:"signals"`
	Recommendation fraud.Recommendation `json:"recommendation"`
	Blocked        bool                 `json:"blocked"`
}
