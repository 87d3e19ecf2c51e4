package fraud

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlaspay/fraud-risk-engine/internal/domain/values"
)

func validParams() NewAttemptParams {
	return NewAttemptParams{
		UserID:           uuid.New(),
		GatewayReference: "ch_123",
		AmountMinorUnits: 2_599,
		Currency:         values.USD,
		IPAddress:        "203.0.113.10",
		UserAgent:        "Mozilla/5.0",
		PaymentMethod:    "tok_4242",
	}
}

func TestNewPaymentAttempt(t *testing.T) {
	a, err := NewPaymentAttempt(validParams())
	require.NoError(t, err)

	assert.Equal(t, StatusPending, a.Status)
	assert.Equal(t, int64(2_599), a.Amount.MinorUnits())

	// Raw instrument data never survives construction; only digests do.
	assert.False(t, a.PaymentMethodDigest.IsZero())
	assert.True(t, a.PaymentMethodDigest.Equal(values.ComputeDigest("tok_4242")))
	assert.False(t, a.UserAgentDigest.IsZero())
}

func TestNewPaymentAttempt_Validation(t *testing.T) {
	missing := validParams()
	missing.UserID = uuid.Nil
	_, err := NewPaymentAttempt(missing)
	assert.Error(t, err)

	noIP := validParams()
	noIP.IPAddress = ""
	_, err = NewPaymentAttempt(noIP)
	assert.Error(t, err)
}

func TestNewPaymentAttempt_DefaultCurrency(t *testing.T) {
	p := validParams()
	p.Currency = ""

	a, err := NewPaymentAttempt(p)
	require.NoError(t, err)
	assert.Equal(t, values.DefaultCurrency, a.Amount.Currency())
}

func TestPaymentAttempt_MarkChargebackIdempotent(t *testing.T) {
	a, err := NewPaymentAttempt(validParams())
	require.NoError(t, err)

	first := time.Now()
	a.MarkChargeback(first)
	require.NotNil(t, a.ChargebackAt)
	assert.Equal(t, first, *a.ChargebackAt)

	a.MarkChargeback(first.Add(time.Hour))
	assert.Equal(t, first, *a.ChargebackAt)
	assert.Equal(t, StatusChargeback, a.Status)
}

func TestPaymentAttempt_IsFailed(t *testing.T) {
	a, err := NewPaymentAttempt(validParams())
	require.NoError(t, err)
	assert.False(t, a.IsFailed())

	a.Approve()
	assert.False(t, a.IsFailed())

	a.Block()
	assert.True(t, a.IsFailed())

	a.MarkChargeback(time.Now())
	assert.True(t, a.IsFailed())
}

func TestPaymentAttempt_IsInternational(t *testing.T) {
	a, err := NewPaymentAttempt(validParams())
	require.NoError(t, err)

	// Unknown billing country is never treated as international.
	assert.False(t, a.IsInternational("US"))

	a.BillingDetails.Country = "BR"
	assert.True(t, a.IsInternational("US"))
	assert.False(t, a.IsInternational("BR"))
}

func TestPaymentAttempt_RecordScoreClamps(t *testing.T) {
	a, err := NewPaymentAttempt(validParams())
	require.NoError(t, err)

	a.RecordScore(145, []FraudSignal{{PatternKey: "p", Severity: 145}})
	assert.Equal(t, 100, a.FraudScore)
	assert.Len(t, a.Signals, 1)
}
