package fraud

import (
	"time"

	"github.com/google/uuid"

	"github.com/atlaspay/fraud-risk-engine/internal/domain/errors"
	"github.com/atlaspay/fraud-risk-engine/internal/domain/values"
)

// AttemptStatus is the lifecycle state of a payment attempt.
type AttemptStatus string

const (
	StatusPending    AttemptStatus = "pending"
	StatusApproved   AttemptStatus = "approved"
	StatusBlocked    AttemptStatus = "blocked"
	StatusChargeback AttemptStatus = "chargeback"
)

// BillingDetails is the redacted, structured subset of billing data the
// engine is allowed to see. No names, no street addresses.
type BillingDetails struct {
	Country    string `json:"country,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
}

// PaymentAttempt is the immutable record of one scoring request. Created
// once per attempt; later mutated only to record the outcome status and
// chargeback flags. All payment-method data at rest is a one-way digest.
type PaymentAttempt struct {
	ID                  uuid.UUID
	UserID              uuid.UUID
	SubscriptionID      *uuid.UUID
	GatewayReference    string
	Amount              values.Money
	IPAddress           string
	UserAgentDigest     values.Digest
	BillingDetails      BillingDetails
	PaymentMethodDigest values.Digest
	FraudScore          int
	Signals             []FraudSignal
	Status              AttemptStatus
	ChargebackAt        *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// NewAttemptParams carries the caller-supplied attempt metadata. Raw
// payment-method data and user agents are digested here, at the edge.
type NewAttemptParams struct {
	UserID           uuid.UUID
	SubscriptionID   *uuid.UUID
	GatewayReference string
	AmountMinorUnits int64
	Currency         string
	IPAddress        string
	UserAgent        string
	BillingDetails   BillingDetails
	PaymentMethod    string
}

// NewPaymentAttempt builds a pending attempt from request metadata.
func NewPaymentAttempt(p NewAttemptParams) (*PaymentAttempt, error) {
	if p.UserID == uuid.Nil {
		return nil, errors.NewValidationError("INVALID_ATTEMPT", "user id is required")
	}
	if p.IPAddress == "" {
		return nil, errors.NewValidationError("INVALID_ATTEMPT", "ip address is required")
	}

	currency := p.Currency
	if currency == "" {
		currency = values.DefaultCurrency
	}
	amount, err := values.NewMoneyFromMinorUnits(p.AmountMinorUnits, currency)
	if err != nil {
		return nil, errors.NewValidationError("INVALID_ATTEMPT", err.Error())
	}

	a := &PaymentAttempt{
		ID:               uuid.New(),
		UserID:           p.UserID,
		SubscriptionID:   p.SubscriptionID,
		GatewayReference: p.GatewayReference,
		Amount:           amount,
		IPAddress:        p.IPAddress,
		BillingDetails:   p.BillingDetails,
		Status:           StatusPending,
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
	}
	if p.UserAgent != "" {
		a.UserAgentDigest = values.ComputeDigest(p.UserAgent)
	}
	if p.PaymentMethod != "" {
		a.PaymentMethodDigest = values.ComputeDigest(p.PaymentMethod)
	}
	return a, nil
}

// RecordScore attaches the evaluation outcome to the attempt.
func (a *PaymentAttempt) RecordScore(score int, signals []FraudSignal) {
	a.FraudScore = ClampScore(score)
	a.Signals = signals
	a.UpdatedAt = time.Now()
}

// Approve marks the attempt approved.
func (a *PaymentAttempt) Approve() {
	a.Status = StatusApproved
	a.UpdatedAt = time.Now()
}

// Block marks the attempt blocked.
func (a *PaymentAttempt) Block() {
	a.Status = StatusBlocked
	a.UpdatedAt = time.Now()
}

// MarkChargeback flags the attempt as disputed. Idempotent.
func (a *PaymentAttempt) MarkChargeback(at time.Time) {
	if a.Status == StatusChargeback {
		return
	}
	a.Status = StatusChargeback
	a.ChargebackAt = &at
	a.UpdatedAt = time.Now()
}

// IsFailed reports whether the attempt counts toward failure velocity.
// Blocked attempts and charged-back attempts both count: either way the
// money did not clear cleanly.
func (a *PaymentAttempt) IsFailed() bool {
	return a.Status == StatusBlocked || a.Status == StatusChargeback
}

// IsInternational reports whether the billing country differs from the
// given home country. Unknown billing countries are not international.
func (a *PaymentAttempt) IsInternational(homeCountry string) bool {
	return a.BillingDetails.Country != "" && homeCountry != "" &&
		a.BillingDetails.Country != homeCountry
}
