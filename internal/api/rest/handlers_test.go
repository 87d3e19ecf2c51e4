package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/atlaspay/fraud-risk-engine/internal/domain/errors"
	"github.com/atlaspay/fraud-risk-engine/internal/domain/fraud"
	fraudservice "github.com/atlaspay/fraud-risk-engine/internal/service/fraud"
)

type mockService struct {
	scoreResult    *fraudservice.AnalysisResult
	scoreErr       error
	scoredParams   *fraud.NewAttemptParams
	evidence       []*fraud.ChargebackEvidence
	chargebackErr  error
	profile        *fraud.UserRiskProfile
	profileErr     error
	refreshErr     error
	refreshCalls   int
	savedPattern   *fraud.FraudPattern
	savePatternErr error
}

func (m *mockService) ScoreAttempt(_ context.Context, params fraud.NewAttemptParams) (*fraudservice.AnalysisResult, error) {
	m.scoredParams = &params
	return m.scoreResult, m.scoreErr
}

func (m *mockService) ProcessChargeback(_ context.Context, _ string, _ uuid.UUID) ([]*fraud.ChargebackEvidence, error) {
	return m.evidence, m.chargebackErr
}

func (m *mockService) GetProfile(_ context.Context, _ uuid.UUID) (*fraud.UserRiskProfile, error) {
	return m.profile, m.profileErr
}

func (m *mockService) RecalculateProfile(_ context.Context, _ uuid.UUID) (*fraud.UserRiskProfile, error) {
	return m.profile, m.profileErr
}

func (m *mockService) RefreshPatterns(_ context.Context) error {
	m.refreshCalls++
	return m.refreshErr
}

func (m *mockService) SavePattern(_ context.Context, p *fraud.FraudPattern) error {
	m.savedPattern = p
	return m.savePatternErr
}

func newTestHandler(svc ScoringService, health map[string]HealthChecker) *Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewHandler(svc, logger, health)
}

func doRequest(t *testing.T, h *Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}

	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func validScoreBody(userID uuid.UUID) map[string]interface{} {
	return map[string]interface{}{
		"user_id":            userID.String(),
		"gateway_reference":  "pi_test_123",
		"amount_minor_units": 2599,
		"currency":           "USD",
		"ip_address":         "203.0.113.10",
		"user_agent":         "test-agent/1.0",
		"payment_method":     "tok_4242",
		"billing": map[string]interface{}{
			"country":     "US",
			"postal_code": "94105",
		},
	}
}

func TestHandleScoreAttempt(t *testing.T) {
	userID := uuid.New()

	t.Run("returns analysis result", func(t *testing.T) {
		svc := &mockService{
			scoreResult: &fraudservice.AnalysisResult{
				AttemptID:      uuid.New(),
				FraudScore:     35,
				Recommendation: fraud.RecommendApprove,
			},
		}
		h := newTestHandler(svc, nil)

		rec := doRequest(t, h, http.MethodPost, "/api/v1/payments/score", validScoreBody(userID))

		require.Equal(t, http.StatusOK, rec.Code)
		var result fraudservice.AnalysisResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
		assert.Equal(t, 35, result.FraudScore)
		assert.Equal(t, fraud.RecommendApprove, result.Recommendation)

		require.NotNil(t, svc.scoredParams)
		assert.Equal(t, userID, svc.scoredParams.UserID)
		assert.Equal(t, int64(2599), svc.scoredParams.AmountMinorUnits)
		assert.Equal(t, "US", svc.scoredParams.BillingDetails.Country)
	})

	t.Run("forwards subscription id when present", func(t *testing.T) {
		svc := &mockService{scoreResult: &fraudservice.AnalysisResult{}}
		h := newTestHandler(svc, nil)

		subID := uuid.New()
		body := validScoreBody(userID)
		body["subscription_id"] = subID.String()

		rec := doRequest(t, h, http.MethodPost, "/api/v1/payments/score", body)

		require.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, svc.scoredParams.SubscriptionID)
		assert.Equal(t, subID, *svc.scoredParams.SubscriptionID)
	})

	t.Run("rejects malformed json", func(t *testing.T) {
		h := newTestHandler(&mockService{}, nil)

		mux := http.NewServeMux()
		h.RegisterRoutes(mux)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/score", bytes.NewReader([]byte("{not json")))
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "INVALID_JSON")
	})

	t.Run("rejects missing required fields", func(t *testing.T) {
		svc := &mockService{}
		h := newTestHandler(svc, nil)

		body := validScoreBody(userID)
		delete(body, "ip_address")

		rec := doRequest(t, h, http.MethodPost, "/api/v1/payments/score", body)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "VALIDATION_FAILED")
		assert.Nil(t, svc.scoredParams)
	})

	t.Run("maps service errors to status codes", func(t *testing.T) {
		svc := &mockService{scoreErr: domainerrors.NewNotFoundError("pattern")}
		h := newTestHandler(svc, nil)

		rec := doRequest(t, h, http.MethodPost, "/api/v1/payments/score", validScoreBody(userID))

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("unknown errors become 500", func(t *testing.T) {
		svc := &mockService{scoreErr: errors.New("boom")}
		h := newTestHandler(svc, nil)

		rec := doRequest(t, h, http.MethodPost, "/api/v1/payments/score", validScoreBody(userID))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestHandleChargeback(t *testing.T) {
	userID := uuid.New()

	t.Run("returns evidence bundle", func(t *testing.T) {
		svc := &mockService{
			evidence: []*fraud.ChargebackEvidence{
				fraud.NewChargebackEvidence(uuid.New(), userID, fraud.EvidenceUserAgreement, nil),
				fraud.NewChargebackEvidence(uuid.New(), userID, fraud.EvidenceIPLog, nil),
			},
		}
		h := newTestHandler(svc, nil)

		rec := doRequest(t, h, http.MethodPost, "/api/v1/chargebacks", map[string]string{
			"gateway_reference": "pi_test_123",
			"user_id":           userID.String(),
		})

		require.Equal(t, http.StatusOK, rec.Code)
		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, float64(2), body["evidence_count"])
		assert.Equal(t, "pi_test_123", body["gateway_reference"])
	})

	t.Run("unknown reference maps to 404", func(t *testing.T) {
		svc := &mockService{chargebackErr: domainerrors.NewNotFoundError("payment attempt")}
		h := newTestHandler(svc, nil)

		rec := doRequest(t, h, http.MethodPost, "/api/v1/chargebacks", map[string]string{
			"gateway_reference": "pi_missing",
			"user_id":           userID.String(),
		})

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("rejects missing gateway reference", func(t *testing.T) {
		h := newTestHandler(&mockService{}, nil)

		rec := doRequest(t, h, http.MethodPost, "/api/v1/chargebacks", map[string]string{
			"user_id": userID.String(),
		})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleGetProfile(t *testing.T) {
	userID := uuid.New()

	t.Run("returns stored profile", func(t *testing.T) {
		svc := &mockService{
			profile: &fraud.UserRiskProfile{
				UserID:           userID,
				PaymentRisk:      24,
				OverallRiskScore: 31,
				RiskLevel:        fraud.RiskMedium,
				LastCalculatedAt: time.Now().UTC(),
			},
		}
		h := newTestHandler(svc, nil)

		rec := doRequest(t, h, http.MethodGet, "/api/v1/users/"+userID.String()+"/risk-profile", nil)

		require.Equal(t, http.StatusOK, rec.Code)
		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, userID.String(), body["user_id"])
		assert.Equal(t, float64(31), body["overall_risk_score"])
		assert.Equal(t, "medium", body["risk_level"])
	})

	t.Run("invalid uuid is rejected", func(t *testing.T) {
		h := newTestHandler(&mockService{}, nil)

		rec := doRequest(t, h, http.MethodGet, "/api/v1/users/not-a-uuid/risk-profile", nil)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing profile maps to 404", func(t *testing.T) {
		svc := &mockService{profileErr: domainerrors.NewNotFoundError("risk profile")}
		h := newTestHandler(svc, nil)

		rec := doRequest(t, h, http.MethodGet, "/api/v1/users/"+userID.String()+"/risk-profile", nil)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestHandleSavePattern(t *testing.T) {
	validBody := map[string]interface{}{
		"key":             "high_amount_intl",
		"category":        "payment",
		"description":     "large international charge",
		"severity_weight": 30,
		"rule": map[string]interface{}{
			"kind":               "amount_threshold",
			"amount_minor_units": 100_000,
			"international_only": true,
		},
	}

	t.Run("stores a valid pattern", func(t *testing.T) {
		svc := &mockService{}
		h := newTestHandler(svc, nil)

		rec := doRequest(t, h, http.MethodPut, "/api/v1/patterns", validBody)

		require.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, svc.savedPattern)
		assert.Equal(t, "high_amount_intl", svc.savedPattern.Key)
		assert.Equal(t, fraud.CategoryPayment, svc.savedPattern.Category)
		assert.Equal(t, 30, svc.savedPattern.SeverityWeight)
		assert.Equal(t, fraud.RuleAmountThreshold, svc.savedPattern.Rule.Kind)
		assert.Equal(t, int64(100_000), svc.savedPattern.Rule.AmountMinorUnits)
	})

	t.Run("rejects incoherent rule parameters", func(t *testing.T) {
		svc := &mockService{}
		h := newTestHandler(svc, nil)

		body := map[string]interface{}{
			"key":             "bad_rule",
			"category":        "payment",
			"severity_weight": 30,
			"rule":            map[string]interface{}{"kind": "amount_threshold"},
		}
		rec := doRequest(t, h, http.MethodPut, "/api/v1/patterns", body)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Nil(t, svc.savedPattern)
	})

	t.Run("rejects missing key", func(t *testing.T) {
		svc := &mockService{}
		h := newTestHandler(svc, nil)

		body := map[string]interface{}{
			"category":        "payment",
			"severity_weight": 30,
			"rule":            map[string]interface{}{"kind": "geo_mismatch", "expected_currency": "USD", "billing_country": "US"},
		}
		rec := doRequest(t, h, http.MethodPut, "/api/v1/patterns", body)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("store failure surfaces", func(t *testing.T) {
		svc := &mockService{savePatternErr: errors.New("store down")}
		h := newTestHandler(svc, nil)

		rec := doRequest(t, h, http.MethodPut, "/api/v1/patterns", validBody)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestHandleRefreshPatterns(t *testing.T) {
	t.Run("triggers refresh", func(t *testing.T) {
		svc := &mockService{}
		h := newTestHandler(svc, nil)

		rec := doRequest(t, h, http.MethodPost, "/api/v1/patterns/refresh", nil)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 1, svc.refreshCalls)
	})

	t.Run("refresh failure surfaces", func(t *testing.T) {
		svc := &mockService{refreshErr: errors.New("store down")}
		h := newTestHandler(svc, nil)

		rec := doRequest(t, h, http.MethodPost, "/api/v1/patterns/refresh", nil)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestHandleHealth(t *testing.T) {
	t.Run("all checks passing", func(t *testing.T) {
		h := newTestHandler(&mockService{}, map[string]HealthChecker{
			"database": func(context.Context) error { return nil },
			"cache":    func(context.Context) error { return nil },
		})

		rec := doRequest(t, h, http.MethodGet, "/healthz", nil)

		require.Equal(t, http.StatusOK, rec.Code)
		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "ok", body["status"])
	})

	t.Run("failing dependency degrades health", func(t *testing.T) {
		h := newTestHandler(&mockService{}, map[string]HealthChecker{
			"database": func(context.Context) error { return errors.New("connection refused") },
		})

		rec := doRequest(t, h, http.MethodGet, "/healthz", nil)

		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "degraded", body["status"])
	})
}
