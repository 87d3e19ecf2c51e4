package fraud

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	domainerrors "github.com/atlaspay/fraud-risk-engine/internal/domain/errors"
	"github.com/atlaspay/fraud-risk-engine/internal/domain/fraud"
)

// EvidenceCollector assembles a defensible evidence bundle when a dispute
// notification arrives. Unlike the scoring path, a missing attempt record
// here is fatal and surfaced: a dispute cannot be defended blind.
type EvidenceCollector struct {
	attempts AttemptRepository
	evidence EvidenceRepository
	alerts   AlertPublisher
	logger   *slog.Logger
	now      func() time.Time
}

// NewEvidenceCollector creates a collector.
func NewEvidenceCollector(attempts AttemptRepository, evidence EvidenceRepository, alerts AlertPublisher, logger *slog.Logger) *EvidenceCollector {
	return &EvidenceCollector{
		attempts: attempts,
		evidence: evidence,
		alerts:   alerts,
		logger:   logger,
		now:      time.Now,
	}
}

// CollectEvidence reconstructs the evidence bundle for the disputed
// attempt identified by gatewayRef. Idempotent: a repeated dispute
// notification for the same reference returns the existing bundle and
// writes nothing new. On first collection it also flags the attempt as
// charged back and emits an alert event.
func (c *EvidenceCollector) CollectEvidence(ctx context.Context, gatewayRef string, userID uuid.UUID) ([]*fraud.ChargebackEvidence, error) {
	if gatewayRef == "" {
		return nil, domainerrors.ErrMissingDisputeRef
	}

	attempt, err := c.attempts.FindByGatewayReference(ctx, gatewayRef)
	if err != nil {
		if domainerrors.IsNotFound(err) {
			return nil, domainerrors.ErrAttemptNotFound.WithDetails(map[string]interface{}{
				"gateway_reference": gatewayRef,
			})
		}
		return nil, domainerrors.Wrap(err, "looking up disputed attempt")
	}

	existing, err := c.evidence.FindByAttempt(ctx, attempt.ID)
	if err != nil {
		return nil, domainerrors.Wrap(err, "checking existing evidence")
	}
	if len(existing) > 0 {
		c.logger.InfoContext(ctx, "evidence already collected for dispute, returning existing bundle",
			"gateway_reference", gatewayRef,
			"attempt_id", attempt.ID,
			"records", len(existing),
		)
		return existing, nil
	}

	bundle := c.buildBundle(attempt)
	if err := c.evidence.SaveBundle(ctx, bundle); err != nil {
		// A uniqueness conflict means a concurrent notification won the
		// write after our empty read; their bundle is the bundle.
		if domainerrors.IsConflict(err) {
			existing, rerr := c.evidence.FindByAttempt(ctx, attempt.ID)
			if rerr == nil && len(existing) > 0 {
				c.logger.InfoContext(ctx, "concurrent dispute already persisted evidence, returning existing bundle",
					"gateway_reference", gatewayRef,
					"attempt_id", attempt.ID,
				)
				return existing, nil
			}
		}
		return nil, domainerrors.Wrap(err, "persisting evidence bundle")
	}

	attempt.MarkChargeback(c.now())
	if err := c.attempts.Update(ctx, attempt); err != nil {
		// The bundle is already persisted; the flag can be reconciled later.
		c.logger.ErrorContext(ctx, "failed to flag attempt as charged back",
			"attempt_id", attempt.ID,
			"error", err,
		)
	}

	alert := fraud.NewFraudAlert(
		fraud.AlertChargeback,
		fraud.AlertSeverityHigh,
		attempt.UserID,
		fmt.Sprintf("chargeback received for attempt %s", attempt.ID),
		map[string]interface{}{
			"gateway_reference": gatewayRef,
			"amount":            attempt.Amount.String(),
		},
	)
	if err := c.alerts.Publish(ctx, alert); err != nil {
		c.logger.WarnContext(ctx, "failed to publish chargeback alert", "error", err)
	}

	return bundle, nil
}

// buildBundle synthesizes the minimum four evidence types from the
// attempt's own recorded metadata. No external enrichment is required; a
// geolocation lookup can be layered on as an optional collaborator.
func (c *EvidenceCollector) buildBundle(attempt *fraud.PaymentAttempt) []*fraud.ChargebackEvidence {
	var subscription string
	if attempt.SubscriptionID != nil {
		subscription = attempt.SubscriptionID.String()
	}

	return []*fraud.ChargebackEvidence{
		fraud.NewChargebackEvidence(attempt.ID, attempt.UserID, fraud.EvidenceUserAgreement, map[string]interface{}{
			"subscription_id": subscription,
			"accepted_at":     attempt.CreatedAt.UTC().Format(time.RFC3339),
			"amount":          attempt.Amount.String(),
		}),
		fraud.NewChargebackEvidence(attempt.ID, attempt.UserID, fraud.EvidenceLoginProof, map[string]interface{}{
			"user_id":           attempt.UserID.String(),
			"authenticated_at":  attempt.CreatedAt.UTC().Format(time.RFC3339),
			"user_agent_digest": attempt.UserAgentDigest.String(),
		}),
		fraud.NewChargebackEvidence(attempt.ID, attempt.UserID, fraud.EvidenceUsageLog, map[string]interface{}{
			"gateway_reference": attempt.GatewayReference,
			"fraud_score":       attempt.FraudScore,
			"status":            string(attempt.Status),
			"occurred_at":       attempt.CreatedAt.UTC().Format(time.RFC3339),
		}),
		fraud.NewChargebackEvidence(attempt.ID, attempt.UserID, fraud.EvidenceIPLog, map[string]interface{}{
			"ip_address":      attempt.IPAddress,
			"billing_country": attempt.BillingDetails.Country,
			"observed_at":     attempt.CreatedAt.UTC().Format(time.RFC3339),
		}),
	}
}
