package rest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	domainerrors "github.com/atlaspay/fraud-risk-engine/internal/domain/errors"
	"github.com/atlaspay/fraud-risk-engine/internal/domain/fraud"
	fraudservice "github.com/atlaspay/fraud-risk-engine/internal/service/fraud"
)

// ScoringService is the engine surface the API depends on.
type ScoringService interface {
	ScoreAttempt(ctx context.Context, params fraud.NewAttemptParams) (*fraudservice.AnalysisResult, error)
	ProcessChargeback(ctx context.Context, gatewayRef string, userID uuid.UUID) ([]*fraud.ChargebackEvidence, error)
	GetProfile(ctx context.Context, userID uuid.UUID) (*fraud.UserRiskProfile, error)
	RecalculateProfile(ctx context.Context, userID uuid.UUID) (*fraud.UserRiskProfile, error)
	RefreshPatterns(ctx context.Context) error
	SavePattern(ctx context.Context, p *fraud.FraudPattern) error
}

// HealthChecker reports readiness of a backing dependency.
type HealthChecker func(ctx context.Context) error

// Handler serves the fraud engine's HTTP surface.
type Handler struct {
	service  ScoringService
	logger   *slog.Logger
	validate *validator.Validate
	health   map[string]HealthChecker
}

// NewHandler creates the API handler. Health checkers are optional and
// keyed by dependency name for the health payload.
func NewHandler(service ScoringService, logger *slog.Logger, health map[string]HealthChecker) *Handler {
	return &Handler{
		service:  service,
		logger:   logger,
		validate: validator.New(),
		health:   health,
	}
}

// RegisterRoutes attaches all endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/payments/score", h.handleScoreAttempt)
	mux.HandleFunc("POST /api/v1/chargebacks", h.handleChargeback)
	mux.HandleFunc("GET /api/v1/users/{id}/risk-profile", h.handleGetProfile)
	mux.HandleFunc("POST /api/v1/users/{id}/risk-profile/recalculate", h.handleRecalculateProfile)
	mux.HandleFunc("PUT /api/v1/patterns", h.handleSavePattern)
	mux.HandleFunc("POST /api/v1/patterns/refresh", h.handleRefreshPatterns)
	mux.HandleFunc("GET /healthz", h.handleHealth)
}

func (h *Handler) handleScoreAttempt(w http.ResponseWriter, r *http.Request) {
	var req ScoreAttemptRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		h.writeError(w, r, domainerrors.NewValidationError("INVALID_USER_ID", "user_id is not a valid UUID"))
		return
	}

	params := fraud.NewAttemptParams{
		UserID:           userID,
		GatewayReference: req.GatewayReference,
		AmountMinorUnits: req.AmountMinorUnits,
		Currency:         req.Currency,
		IPAddress:        req.IPAddress,
		UserAgent:        req.UserAgent,
		PaymentMethod:    req.PaymentMethod,
		BillingDetails: fraud.BillingDetails{
			Country:    req.Billing.Country,
			PostalCode: req.Billing.PostalCode,
		},
	}
	if req.SubscriptionID != "" {
		subID, err := uuid.Parse(req.SubscriptionID)
		if err != nil {
			h.writeError(w, r, domainerrors.NewValidationError("INVALID_SUBSCRIPTION_ID", "subscription_id is not a valid UUID"))
			return
		}
		params.SubscriptionID = &subID
	}

	result, err := h.service.ScoreAttempt(r.Context(), params)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleChargeback(w http.ResponseWriter, r *http.Request) {
	var req ChargebackRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		h.writeError(w, r, domainerrors.NewValidationError("INVALID_USER_ID", "user_id is not a valid UUID"))
		return
	}

	bundle, err := h.service.ProcessChargeback(r.Context(), req.GatewayReference, userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"gateway_reference": req.GatewayReference,
		"evidence_count":    len(bundle),
		"evidence":          bundle,
	})
}

func (h *Handler) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathUUID(w, r, "id")
	if !ok {
		return
	}

	profile, err := h.service.GetProfile(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, profileResponse(profile))
}

func (h *Handler) handleRecalculateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathUUID(w, r, "id")
	if !ok {
		return
	}

	profile, err := h.service.RecalculateProfile(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, profileResponse(profile))
}

func (h *Handler) handleSavePattern(w http.ResponseWriter, r *http.Request) {
	var req PatternRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	pattern, err := fraud.NewFraudPattern(
		req.Key, fraud.PatternCategory(req.Category), req.Description, req.SeverityWeight, req.Rule)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.service.SavePattern(r.Context(), pattern); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{
		"key":    pattern.Key,
		"status": "stored",
	})
}

func (h *Handler) handleRefreshPatterns(w http.ResponseWriter, r *http.Request) {
	if err := h.service.RefreshPatterns(r.Context()); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "refreshed"})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(h.health))
	for name, check := range h.health {
		if err := check(ctx); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
		} else {
			checks[name] = "ok"
		}
	}

	h.writeJSON(w, status, map[string]interface{}{
		"status": map[bool]string{true: "ok", false: "degraded"}[status == http.StatusOK],
		"checks": checks,
	})
}

func (h *Handler) pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		h.writeError(w, r, domainerrors.NewValidationError("INVALID_ID", name+" is not a valid UUID"))
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) decodeAndValidate(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.writeError(w, r, domainerrors.NewValidationError("INVALID_JSON", "request body is not valid JSON"))
		return false
	}
	if err := h.validate.Struct(v); err != nil {
		h.writeError(w, r, domainerrors.NewValidationError("VALIDATION_FAILED", err.Error()))
		return false
	}
	return true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := domainerrors.GetStatusCode(err)
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed",
			"path", r.URL.Path,
			"error", err,
		)
	}

	body := map[string]interface{}{
		"error": map[string]interface{}{
			"message": err.Error(),
		},
	}
	var appErr *domainerrors.AppError
	if errors.As(err, &appErr) {
		body["error"] = map[string]interface{}{
			"code":    appErr.Code,
			"message": appErr.Message,
			"details": appErr.Details,
		}
	}
	h.writeJSON(w, status, body)
}

// profileResponse shapes the stored profile for the wire.
func profileResponse(p *fraud.UserRiskProfile) map[string]interface{} {
	return map[string]interface{}{
		"user_id":               p.UserID,
		"payment_risk":          p.PaymentRisk,
		"account_risk":          p.AccountRisk,
		"usage_risk":            p.UsageRisk,
		"velocity_risk":         p.VelocityRisk,
		"overall_risk_score":    p.OverallRiskScore,
		"risk_level":            p.RiskLevel,
		"requires_review":       p.RequiresReview,
		"suspicious_flag_count": p.SuspiciousFlagCount,
		"last_calculated_at":    p.LastCalculatedAt,
	}
}
