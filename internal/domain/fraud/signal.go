package fraud

// FraudSignal is a single weighted, pattern-derived piece of evidence
// contributing to a risk score. Signals are value objects: produced
// transiently per evaluation and stored embedded in the originating
// payment attempt for audit, never persisted independently.
type FraudSignal struct {
	PatternKey string                 `json:"pattern"`
	Severity   int                    `json:"severity"`
	Confidence float64                `json:"confidence"` // 0.0 - 1.0
	Details    map[string]interface{} `json:"details,omitempty"`
}

// Recommendation is the per-attempt action the aggregator derives from
// the final score.
type Recommendation string

const (
	RecommendApprove   Recommendation = "approve"
	RecommendChallenge Recommendation = "challenge"
	RecommendReview    Recommendation = "review"
	RecommendBlock     Recommendation = "block"
)

// Score band boundaries for recommendations. Block only fires at very
// high confidence to avoid false-positive revenue loss; challenge is the
// default mitigation for the broad middle band.
const (
	BlockThreshold     = 80
	ReviewThreshold    = 60
	ChallengeThreshold = 40
)

// ClampScore bounds a raw additive score to [0,100]. This is a hard
// invariant of the engine, not a soft guideline.
func ClampScore(raw int) int {
	if raw < 0 {
		return 0
	}
	if raw > 100 {
		return 100
	}
	return raw
}

// RecommendationForScore maps a clamped score to its recommendation.
// Deterministic step function; no hidden randomness.
func RecommendationForScore(score int) Recommendation {
	switch {
	case score >= BlockThreshold:
		return RecommendBlock
	case score >= ReviewThreshold:
		return RecommendReview
	case score >= ChallengeThreshold:
		return RecommendChallenge
	default:
		return RecommendApprove
	}
}

// SumSeverities returns the raw (pre-clamp) additive score of a signal set.
func SumSeverities(signals []FraudSignal) int {
	total := 0
	for _, s := range signals {
		total += s.Severity
	}
	return total
}
