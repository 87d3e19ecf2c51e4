package fraud

import (
	"time"

	"github.com/google/uuid"
)

// AlertType identifies what tripped an alert.
type AlertType string

const (
	AlertHighRiskScore  AlertType = "high_risk_score"
	AlertPolicyBlock    AlertType = "policy_block"
	AlertChargeback     AlertType = "chargeback_received"
	AlertProfileReview  AlertType = "profile_escalation"
)

// AlertSeverity mirrors the risk levels used elsewhere in the engine.
type AlertSeverity string

const (
	AlertSeverityMedium   AlertSeverity = "medium"
	AlertSeverityHigh     AlertSeverity = "high"
	AlertSeverityCritical AlertSeverity = "critical"
)

// FraudAlert is an event emitted for an external notifier. Delivery and
// retry are the notifier's responsibility, not this engine's.
type FraudAlert struct {
	ID        uuid.UUID              `json:"id"`
	AlertType AlertType              `json:"alert_type"`
	Severity  AlertSeverity          `json:"severity"`
	UserID    uuid.UUID              `json:"user_id"`
	Message   string                 `json:"message"`
	Data      map[string]interface{} `json:"data,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// NewFraudAlert creates an alert event.
func NewFraudAlert(alertType AlertType, severity AlertSeverity, userID uuid.UUID, message string, data map[string]interface{}) *FraudAlert {
	return &FraudAlert{
		ID:        uuid.New(),
		AlertType: alertType,
		Severity:  severity,
		UserID:    userID,
		Message:   message,
		Data:      data,
		CreatedAt: time.Now(),
	}
}
