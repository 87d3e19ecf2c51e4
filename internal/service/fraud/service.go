package fraud

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	domainerrors "github.com/atlaspay/fraud-risk-engine/internal/domain/errors"
	"github.com/atlaspay/fraud-risk-engine/internal/domain/fraud"
	"github.com/atlaspay/fraud-risk-engine/internal/metrics"
)

// Engine is the fraud scoring engine: one explicit dependency-injected
// struct constructed at process start and passed by reference. No global
// instance. Scoring holds no shared mutable state beyond the registry's
// atomically swapped snapshot, so concurrent ScoreAttempt calls are safe.
type Engine struct {
	attempts    AttemptRepository
	patterns    PatternRepository
	profiles    ProfileRepository
	registry    *PatternRegistry
	evaluator   *SignalEvaluator
	velocity    *VelocityAnalyzer
	aggregator  *RiskAggregator
	policy      DecisionPolicy
	alerts      AlertPublisher
	profileCalc *ProfileCalculator
	collector   *EvidenceCollector
	logger      *slog.Logger
	metrics     *metrics.Registry
	now         func() time.Time

	alertScoreThreshold int
}

// Config carries the engine's tunables.
type Config struct {
	// HomeCountry anchors cross-border pattern checks.
	HomeCountry string
	// Policy thresholds, minor units.
	HighValueMinorUnits int64
	LowValueMinorUnits  int64
	// AlertScoreThreshold is the score at or above which a scoring pass
	// emits an alert event.
	AlertScoreThreshold int
}

// Deps bundles the engine's collaborators.
type Deps struct {
	Attempts AttemptRepository
	Patterns PatternRepository
	Profiles ProfileRepository
	Evidence EvidenceRepository
	Alerts   AlertPublisher
	Logger   *slog.Logger
	Metrics  *metrics.Registry
}

// NewEngine wires the scoring pipeline.
func NewEngine(cfg Config, deps Deps) *Engine {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	registry := NewPatternRegistry(deps.Patterns, logger)

	return &Engine{
		attempts:    deps.Attempts,
		patterns:    deps.Patterns,
		profiles:    deps.Profiles,
		registry:    registry,
		evaluator:   NewSignalEvaluator(deps.Attempts, cfg.HomeCountry, logger),
		velocity:    NewVelocityAnalyzer(deps.Attempts),
		aggregator:  NewRiskAggregator(),
		policy: DecisionPolicy{
			HighValueMinorUnits: cfg.HighValueMinorUnits,
			LowValueMinorUnits:  cfg.LowValueMinorUnits,
		},
		alerts:              deps.Alerts,
		profileCalc:         NewProfileCalculator(deps.Attempts, deps.Profiles, logger),
		collector:           NewEvidenceCollector(deps.Attempts, deps.Evidence, deps.Alerts, logger),
		logger:              logger,
		metrics:             deps.Metrics,
		now:                 time.Now,
		alertScoreThreshold: cfg.AlertScoreThreshold,
	}
}

// ScoreAttempt runs the full pipeline for one payment attempt: signal
// evaluation and velocity analysis concurrently, aggregation, persistence,
// profile recalculation and the block/allow decision. Scoring-path store
// failures are absorbed into the conservative fallback; only invalid
// input reaches the caller as an error.
func (e *Engine) ScoreAttempt(ctx context.Context, params fraud.NewAttemptParams) (*AnalysisResult, error) {
	started := e.now()

	attempt, err := fraud.NewPaymentAttempt(params)
	if err != nil {
		return nil, err
	}

	patterns := e.registry.ActivePatterns(fraud.CategoryPayment, fraud.CategoryAccount)

	// The two query paths are independent reads; run them concurrently
	// and merge only after both complete.
	type velocityOutcome struct {
		signals []fraud.FraudSignal
		err     error
	}
	velocityCh := make(chan velocityOutcome, 1)
	go func() {
		signals, verr := e.velocity.AnalyzeVelocity(ctx, attempt.UserID, attempt.IPAddress, started)
		velocityCh <- velocityOutcome{signals: signals, err: verr}
	}()

	signals := e.evaluator.Evaluate(ctx, attempt, patterns)
	velocity := <-velocityCh

	var score int
	var recommendation fraud.Recommendation
	if velocity.err != nil {
		// Velocity unavailable is not velocity clean: conservative default.
		e.logger.WarnContext(ctx, "velocity analysis failed, using fail-safe score",
			"user_id", attempt.UserID,
			"error", velocity.err,
		)
		score, recommendation = e.aggregator.FailSafe()
	} else {
		signals = append(signals, velocity.signals...)
		score, recommendation = e.aggregator.Score(signals)
	}

	attempt.RecordScore(score, signals)

	// Profile update and decision. A failed recalculation leaves the
	// previous profile in place; stale-but-valid beats absent.
	profile := e.refreshProfile(ctx, attempt.UserID)
	blocked := e.policy.ShouldBlock(profile, attempt.Amount.MinorUnits())

	if blocked || recommendation == fraud.RecommendBlock {
		attempt.Block()
	} else {
		attempt.Approve()
	}

	if err := e.attempts.Save(ctx, attempt); err != nil {
		// The caller still gets a usable decision; the record gap is logged
		// for reconciliation.
		e.logger.ErrorContext(ctx, "failed to persist scored attempt",
			"attempt_id", attempt.ID,
			"error", err,
		)
	}

	e.maybeAlert(ctx, attempt, score, blocked)

	if e.metrics != nil {
		e.metrics.RecordScoring(ctx, time.Since(started), string(recommendation), blocked, len(signals))
	}

	return &AnalysisResult{
		AttemptID:      attempt.ID,
		FraudScore:     score,
		Signals:        signals,
		Recommendation: recommendation,
		Blocked:        blocked,
	}, nil
}

// refreshProfile recalculates the user's profile after the attempt. On
// failure it falls back to the stored profile, then to nil (no history,
// nothing to block on).
func (e *Engine) refreshProfile(ctx context.Context, userID uuid.UUID) *fraud.UserRiskProfile {
	profile, err := e.profileCalc.Recalculate(ctx, userID)
	if err == nil {
		return profile
	}
	e.logger.WarnContext(ctx, "profile recalculation failed, using stored profile",
		"user_id", userID,
		"error", err,
	)

	stored, getErr := e.profiles.Get(ctx, userID)
	if getErr != nil {
		if !domainerrors.IsNotFound(getErr) {
			e.logger.WarnContext(ctx, "stored profile unavailable", "user_id", userID, "error", getErr)
		}
		return nil
	}
	return stored
}

func (e *Engine) maybeAlert(ctx context.Context, attempt *fraud.PaymentAttempt, score int, blocked bool) {
	if e.alerts == nil {
		return
	}

	var alert *fraud.FraudAlert
	switch {
	case blocked:
		alert = fraud.NewFraudAlert(fraud.AlertPolicyBlock, fraud.AlertSeverityCritical, attempt.UserID,
			fmt.Sprintf("payment attempt %s blocked by risk policy", attempt.ID),
			map[string]interface{}{"fraud_score": score, "amount": attempt.Amount.String()})
	case score >= e.alertScoreThreshold:
		alert = fraud.NewFraudAlert(fraud.AlertHighRiskScore, fraud.AlertSeverityHigh, attempt.UserID,
			fmt.Sprintf("payment attempt %s scored %d", attempt.ID, score),
			map[string]interface{}{"fraud_score": score})
	default:
		return
	}

	if err := e.alerts.Publish(ctx, alert); err != nil {
		e.logger.WarnContext(ctx, "failed to publish fraud alert",
			"alert_type", alert.AlertType,
			"error", err,
		)
	}
}

// ProcessChargeback assembles the evidence bundle for a dispute. Errors
// here are surfaced: a missing dispute record is a business-critical gap.
func (e *Engine) ProcessChargeback(ctx context.Context, gatewayRef string, userID uuid.UUID) ([]*fraud.ChargebackEvidence, error) {
	bundle, err := e.collector.CollectEvidence(ctx, gatewayRef, userID)
	if err != nil {
		return nil, err
	}

	// A chargeback permanently changes the profile; refresh it now rather
	// than waiting for the next attempt.
	if _, perr := e.profileCalc.Recalculate(ctx, userID); perr != nil {
		e.logger.WarnContext(ctx, "profile recalculation after chargeback failed",
			"user_id", userID,
			"error", perr,
		)
	}

	if e.metrics != nil {
		e.metrics.RecordChargeback(ctx)
	}
	return bundle, nil
}

// RecalculateProfile recomputes and persists one user's profile.
func (e *Engine) RecalculateProfile(ctx context.Context, userID uuid.UUID) (*fraud.UserRiskProfile, error) {
	return e.profileCalc.Recalculate(ctx, userID)
}

// GetProfile returns the stored profile for a user.
func (e *Engine) GetProfile(ctx context.Context, userID uuid.UUID) (*fraud.UserRiskProfile, error) {
	return e.profiles.Get(ctx, userID)
}

// SavePattern stores an operator-curated pattern and reloads the registry
// so the new rule takes effect without waiting for the next scheduled
// refresh.
func (e *Engine) SavePattern(ctx context.Context, p *fraud.FraudPattern) error {
	if err := e.patterns.Upsert(ctx, p); err != nil {
		return domainerrors.Wrap(err, "storing fraud pattern")
	}
	return e.RefreshPatterns(ctx)
}

// RefreshPatterns reloads the pattern registry snapshot. Scheduling is
// the caller's responsibility; the engine runs no background goroutines.
func (e *Engine) RefreshPatterns(ctx context.Context) error {
	err := e.registry.Refresh(ctx)
	if e.metrics != nil {
		e.metrics.SetPatternCount(len(e.registry.ActivePatterns()))
	}
	return err
}
