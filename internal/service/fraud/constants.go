package fraud

import "time"

// Velocity analyzer windows and thresholds. Counts at exactly the
// threshold trigger (>=, not >).
const (
	attemptVelocityWindow     = 15 * time.Minute
	attemptVelocityThreshold  = 3
	attemptVelocitySeverity   = 25
	attemptVelocityConfidence = 0.8

	failureVelocityWindow     = 60 * time.Minute
	failureVelocityThreshold  = 2
	failureVelocitySeverity   = 40
	failureVelocityConfidence = 0.9
)

// Signal keys for the built-in velocity checks.
const (
	signalRapidAttempts    = "rapid_attempts"
	signalRepeatedFailures = "repeated_failures"
)

// Fail-safe outcome when an internal dependency fails mid-evaluation:
// conservative middle score, manual review. Never fail open to approve.
const failSafeScore = 50

// Profile recalculation parameters.
const (
	profileWindow         = 30 * 24 * time.Hour
	profileSaveRetries    = 3
	chargebackAccountRisk = 85 // any chargeback pins account risk high

	// usageRisk has no real telemetry behind it yet; it contributes a
	// constant low baseline. Extension point, not a defect.
	defaultUsageRisk = 10
)

// Evaluator defaults.
const (
	reuseWindowDefault = 90 * 24 * time.Hour
)
