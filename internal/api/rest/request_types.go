package rest

import "github.com/atlaspay/fraud-risk-engine/internal/domain/fraud"

// ScoreAttemptRequest is the scoring input. Raw payment-method data and
// user agents are accepted here and digested before anything is stored.
type ScoreAttemptRequest struct {
	UserID           string         `json:"user_id" validate:"required,uuid4"`
	SubscriptionID   string         `json:"subscription_id,omitempty" validate:"omitempty,uuid4"`
	GatewayReference string         `json:"gateway_reference,omitempty"`
	AmountMinorUnits int64          `json:"amount_minor_units" validate:"gte=0"`
	Currency         string         `json:"currency,omitempty" validate:"omitempty,len=3,alpha"`
	IPAddress        string         `json:"ip_address" validate:"required,ip"`
	UserAgent        string         `json:"user_agent,omitempty"`
	PaymentMethod    string         `json:"payment_method,omitempty"`
	Billing          BillingRequest `json:"billing,omitempty"`
}

// BillingRequest is the redacted billing subset the engine may see.
type BillingRequest struct {
	Country    string `json:"country,omitempty" validate:"omitempty,len=2,alpha"`
	PostalCode string `json:"postal_code,omitempty"`
}

// PatternRequest creates or replaces an operator-curated detection
// pattern. Rule parameter coherence is checked by the domain constructor,
// not here.
type PatternRequest struct {
	Key            string              `json:"key" validate:"required"`
	Category       string              `json:"category" validate:"required"`
	Description    string              `json:"description,omitempty"`
	SeverityWeight int                 `json:"severity_weight" validate:"gte=0,lte=100"`
	Rule           fraud.DetectionRule `json:"rule"`
}

// ChargebackRequest is a dispute notification from the payment gateway.
type ChargebackRequest struct {
	GatewayReference string `json:"gateway_reference" validate:"required"`
	UserID           string `json:"user_id" validate:"required,uuid4"`
}
