package fraud

import (
	"context"
	"log/slog"
	"time"

	"github.com/atlaspay/fraud-risk-engine/internal/domain/fraud"
)

// SignalEvaluator matches one payment attempt against the pattern
// registry, producing zero or more weighted signals. Multiple independent
// patterns may match the same attempt; their signals are additive inputs
// to aggregation, not mutually exclusive.
type SignalEvaluator struct {
	attempts    AttemptRepository
	homeCountry string
	logger      *slog.Logger
	now         func() time.Time
}

// NewSignalEvaluator creates an evaluator. homeCountry anchors the
// cross-border checks (attempts billed outside it are international).
func NewSignalEvaluator(attempts AttemptRepository, homeCountry string, logger *slog.Logger) *SignalEvaluator {
	return &SignalEvaluator{
		attempts:    attempts,
		homeCountry: homeCountry,
		logger:      logger,
		now:         time.Now,
	}
}

// Evaluate applies every payment- and account-category pattern to the
// attempt. A pattern that cannot be evaluated (malformed data, failed
// reuse query) is skipped with a log line; one bad rule never aborts the
// whole evaluation.
func (e *SignalEvaluator) Evaluate(ctx context.Context, attempt *fraud.PaymentAttempt, patterns []*fraud.FraudPattern) []fraud.FraudSignal {
	var signals []fraud.FraudSignal

	for _, p := range patterns {
		if !p.Active {
			continue
		}
		if p.Category != fraud.CategoryPayment && p.Category != fraud.CategoryAccount {
			continue
		}

		signal, matched, err := e.applyPattern(ctx, attempt, p)
		if err != nil {
			e.logger.WarnContext(ctx, "skipping pattern during evaluation",
				"pattern_key", p.Key,
				"error", err,
			)
			continue
		}
		if matched {
			signals = append(signals, signal)
		}
	}

	return signals
}

func (e *SignalEvaluator) applyPattern(ctx context.Context, attempt *fraud.PaymentAttempt, p *fraud.FraudPattern) (fraud.FraudSignal, bool, error) {
	if err := p.Rule.Validate(); err != nil {
		return fraud.FraudSignal{}, false, err
	}

	switch p.Rule.Kind {
	case fraud.RuleAmountThreshold:
		return e.applyAmountThreshold(attempt, p)
	case fraud.RuleReuseCount:
		return e.applyReuseCount(ctx, attempt, p)
	case fraud.RuleGeoMismatch:
		return e.applyGeoMismatch(attempt, p)
	case fraud.RuleVelocityWindow:
		return e.applyVelocityWindow(ctx, attempt, p)
	default:
		// Validate catches this; kept for exhaustiveness.
		return fraud.FraudSignal{}, false, nil
	}
}

// applyAmountThreshold fires when the amount meets or exceeds the rule's
// threshold. A breach of twice the threshold is an exact, unambiguous
// match; a bare breach is still strong but slightly less certain.
func (e *SignalEvaluator) applyAmountThreshold(attempt *fraud.PaymentAttempt, p *fraud.FraudPattern) (fraud.FraudSignal, bool, error) {
	if p.Rule.InternationalOnly && !attempt.IsInternational(e.homeCountry) {
		return fraud.FraudSignal{}, false, nil
	}

	amount := attempt.Amount.MinorUnits()
	if amount < p.Rule.AmountMinorUnits {
		return fraud.FraudSignal{}, false, nil
	}

	confidence := 0.75
	if amount >= 2*p.Rule.AmountMinorUnits {
		confidence = 0.9
	}

	return fraud.FraudSignal{
		PatternKey: p.Key,
		Severity:   p.SeverityWeight,
		Confidence: confidence,
		Details: map[string]interface{}{
			"amount_minor_units":    amount,
			"threshold_minor_units": p.Rule.AmountMinorUnits,
			"international":         attempt.IsInternational(e.homeCountry),
		},
	}, true, nil
}

// applyReuseCount fires when the attempt's payment-method digest has been
// presented by enough distinct users inside the rule window. Reuse
// detection only counts distinct user IDs sharing an identical digest;
// the digest itself is never reversed.
func (e *SignalEvaluator) applyReuseCount(ctx context.Context, attempt *fraud.PaymentAttempt, p *fraud.FraudPattern) (fraud.FraudSignal, bool, error) {
	if attempt.PaymentMethodDigest.IsZero() {
		return fraud.FraudSignal{}, false, nil
	}

	since := e.now().Add(-p.Rule.ReuseWindow())
	distinct, err := e.attempts.CountDistinctUsersByMethodDigest(ctx, attempt.PaymentMethodDigest, since)
	if err != nil {
		return fraud.FraudSignal{}, false, err
	}

	// The current attempt's user always counts as one.
	if distinct < 1 {
		distinct = 1
	}
	if distinct < p.Rule.MinDistinctUsers {
		return fraud.FraudSignal{}, false, nil
	}

	return fraud.FraudSignal{
		PatternKey: p.Key,
		Severity:   p.SeverityWeight,
		Confidence: 0.85,
		Details: map[string]interface{}{
			"distinct_users": distinct,
			"window_days":    p.Rule.WindowDays,
		},
	}, true, nil
}

// applyGeoMismatch fires on disagreement between the billing country and
// the presented currency. Heuristic: lower confidence than the exact
// threshold rules.
func (e *SignalEvaluator) applyGeoMismatch(attempt *fraud.PaymentAttempt, p *fraud.FraudPattern) (fraud.FraudSignal, bool, error) {
	country := attempt.BillingDetails.Country
	if country == "" {
		return fraud.FraudSignal{}, false, nil
	}
	if p.Rule.BillingCountry != "" && country != p.Rule.BillingCountry {
		return fraud.FraudSignal{}, false, nil
	}
	if p.Rule.ExpectedCurrency == "" || attempt.Amount.Currency() == p.Rule.ExpectedCurrency {
		return fraud.FraudSignal{}, false, nil
	}

	return fraud.FraudSignal{
		PatternKey: p.Key,
		Severity:   p.SeverityWeight,
		Confidence: 0.7,
		Details: map[string]interface{}{
			"billing_country":   country,
			"currency":          attempt.Amount.Currency(),
			"expected_currency": p.Rule.ExpectedCurrency,
		},
	}, true, nil
}

// applyVelocityWindow evaluates a registry-driven velocity rule. The two
// built-in checks live in the velocity analyzer; operators can add more
// windows as data without a deploy.
func (e *SignalEvaluator) applyVelocityWindow(ctx context.Context, attempt *fraud.PaymentAttempt, p *fraud.FraudPattern) (fraud.FraudSignal, bool, error) {
	since := e.now().Add(-p.Rule.Window())
	count, err := e.attempts.CountRecentByUser(ctx, attempt.UserID, since)
	if err != nil {
		return fraud.FraudSignal{}, false, err
	}
	if count < p.Rule.MaxCount {
		return fraud.FraudSignal{}, false, nil
	}

	return fraud.FraudSignal{
		PatternKey: p.Key,
		Severity:   p.SeverityWeight,
		Confidence: 0.8,
		Details: map[string]interface{}{
			"count":          count,
			"window_minutes": p.Rule.WindowMinutes,
		},
	}, true, nil
}
