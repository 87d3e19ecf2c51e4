package fraud

import (
	"time"

	"github.com/google/uuid"
)

// EvidenceType classifies one piece of a chargeback evidence bundle.
type EvidenceType string

const (
	EvidenceUserAgreement EvidenceType = "user_agreement"
	EvidenceLoginProof    EvidenceType = "login_proof"
	EvidenceUsageLog      EvidenceType = "usage_log"
	EvidenceIPLog         EvidenceType = "ip_log"
)

// ChargebackEvidence is one structured record assembled to contest a
// payment dispute. Created exactly once, at dispute time; immutable
// thereafter.
type ChargebackEvidence struct {
	ID           uuid.UUID
	AttemptID    uuid.UUID
	UserID       uuid.UUID
	EvidenceType EvidenceType
	EvidenceData map[string]interface{}
	CreatedAt    time.Time
}

// NewChargebackEvidence links one evidence record to its disputed attempt.
func NewChargebackEvidence(attemptID, userID uuid.UUID, evidenceType EvidenceType, data map[string]interface{}) *ChargebackEvidence {
	return &ChargebackEvidence{
		ID:           uuid.New(),
		AttemptID:    attemptID,
		UserID:       userID,
		EvidenceType: evidenceType,
		EvidenceData: data,
		CreatedAt:    time.Now(),
	}
}
