package fraud

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/atlaspay/fraud-risk-engine/internal/domain/errors"
)

// PatternCategory partitions fraud patterns by the kind of behaviour they describe.
type PatternCategory string

const (
	CategoryPayment  PatternCategory = "payment"
	CategoryVelocity PatternCategory = "velocity"
	CategoryAccount  PatternCategory = "account"
	CategoryUsage    PatternCategory = "usage"
)

// RuleKind identifies one variant of the closed detection-rule set. Patterns
// are pure data; every rule is one of these kinds with typed parameters,
// evaluated by the signal evaluator's dispatch. There is no executable code
// in a pattern.
type RuleKind string

const (
	RuleAmountThreshold RuleKind = "amount_threshold"
	RuleReuseCount      RuleKind = "reuse_count"
	RuleGeoMismatch     RuleKind = "geo_mismatch"
	RuleVelocityWindow  RuleKind = "velocity_window"
)

// DetectionRule is the tagged union of rule variants. Only the fields for
// the declared Kind are meaningful; Validate rejects rules whose parameters
// don't match their kind.
type DetectionRule struct {
	Kind RuleKind `json:"kind"`

	// amount_threshold: fires when the attempt amount (minor units) meets or
	// exceeds the threshold. InternationalOnly restricts the rule to attempts
	// whose billing country differs from the home country.
	AmountMinorUnits  int64 `json:"amount_minor_units,omitempty"`
	InternationalOnly bool  `json:"international_only,omitempty"`

	// reuse_count: fires when the attempt's payment-method digest has been
	// used by at least MinDistinctUsers distinct users within WindowDays.
	MinDistinctUsers int `json:"min_distinct_users,omitempty"`
	WindowDays       int `json:"window_days,omitempty"`

	// geo_mismatch: fires when the billing country and presented currency
	// disagree with the expected pairing.
	ExpectedCurrency string `json:"expected_currency,omitempty"`
	BillingCountry   string `json:"billing_country,omitempty"`

	// velocity_window: fires when the user has at least MaxCount attempts
	// within WindowMinutes. Registry-driven complement to the built-in
	// velocity analyzer.
	WindowMinutes int `json:"window_minutes,omitempty"`
	MaxCount      int `json:"max_count,omitempty"`
}

// Validate checks that the rule's parameters are coherent for its kind.
func (r DetectionRule) Validate() error {
	switch r.Kind {
	case RuleAmountThreshold:
		if r.AmountMinorUnits <= 0 {
			return errors.NewValidationError("INVALID_RULE",
				"amount_threshold rule requires a positive amount_minor_units")
		}
	case RuleReuseCount:
		if r.MinDistinctUsers < 2 {
			return errors.NewValidationError("INVALID_RULE",
				"reuse_count rule requires min_distinct_users >= 2")
		}
		if r.WindowDays <= 0 {
			return errors.NewValidationError("INVALID_RULE",
				"reuse_count rule requires a positive window_days")
		}
	case RuleGeoMismatch:
		if r.ExpectedCurrency == "" && r.BillingCountry == "" {
			return errors.NewValidationError("INVALID_RULE",
				"geo_mismatch rule requires expected_currency or billing_country")
		}
	case RuleVelocityWindow:
		if r.WindowMinutes <= 0 || r.MaxCount <= 0 {
			return errors.NewValidationError("INVALID_RULE",
				"velocity_window rule requires positive window_minutes and max_count")
		}
	default:
		return errors.NewValidationError("INVALID_RULE",
			fmt.Sprintf("unknown rule kind: %s", r.Kind))
	}
	return nil
}

// Window returns the trailing window a velocity_window rule covers.
func (r DetectionRule) Window() time.Duration {
	return time.Duration(r.WindowMinutes) * time.Minute
}

// ReuseWindow returns the trailing window a reuse_count rule covers.
func (r DetectionRule) ReuseWindow() time.Duration {
	return time.Duration(r.WindowDays) * 24 * time.Hour
}

// FraudPattern is an operator-curated detection rule with a severity weight.
// Patterns are read-mostly: edited by operators, read by the evaluator on
// every attempt through the registry cache.
type FraudPattern struct {
	ID             uuid.UUID
	Key            string
	Category       PatternCategory
	Description    string
	SeverityWeight int // 0-100, the signal severity contributed on match
	Active         bool
	Rule           DetectionRule
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewFraudPattern creates a validated pattern.
func NewFraudPattern(key string, category PatternCategory, description string, severityWeight int, rule DetectionRule) (*FraudPattern, error) {
	if key == "" {
		return nil, errors.NewValidationError("INVALID_PATTERN", "pattern key cannot be empty")
	}
	if severityWeight < 0 || severityWeight > 100 {
		return nil, errors.NewValidationError("INVALID_PATTERN",
			fmt.Sprintf("severity weight must be in [0,100], got %d", severityWeight))
	}
	switch category {
	case CategoryPayment, CategoryVelocity, CategoryAccount, CategoryUsage:
	default:
		return nil, errors.NewValidationError("INVALID_PATTERN",
			fmt.Sprintf("unknown pattern category: %s", category))
	}
	if err := rule.Validate(); err != nil {
		return nil, err
	}

	now := time.Now()
	return &FraudPattern{
		ID:             uuid.New(),
		Key:            key,
		Category:       category,
		Description:    description,
		SeverityWeight: severityWeight,
		Active:         true,
		Rule:           rule,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}
