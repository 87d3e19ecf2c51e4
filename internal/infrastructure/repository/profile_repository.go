package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	domainerrors "github.com/atlaspay/fraud-risk-engine/internal/domain/errors"
	"github.com/atlaspay/fraud-risk-engine/internal/domain/fraud"
)

// ProfileRepository persists user risk profiles with a version-guarded
// upsert. A write only lands when the stored version still matches the
// version the caller read, so concurrent recalculations for the same
// user serialize instead of interleaving partial results.
type ProfileRepository struct {
	db *pgxpool.Pool
}

// NewProfileRepository creates a repository on the shared pool.
func NewProfileRepository(db *pgxpool.Pool) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// Get returns the stored profile for a user.
func (r *ProfileRepository) Get(ctx context.Context, userID uuid.UUID) (*fraud.UserRiskProfile, error) {
	query := `
		SELECT user_id, payment_risk, account_risk, usage_risk, velocity_risk,
		       overall_risk_score, risk_level, requires_review, suspicious_flag_count,
		       last_calculated_at, version
		FROM user_risk_profiles
		WHERE user_id = $1`

	var (
		p         fraud.UserRiskProfile
		riskLevel string
	)
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&p.UserID, &p.PaymentRisk, &p.AccountRisk, &p.UsageRisk, &p.VelocityRisk,
		&p.OverallRiskScore, &riskLevel, &p.RequiresReview, &p.SuspiciousFlagCount,
		&p.LastCalculatedAt, &p.Version,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, domainerrors.ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to get risk profile: %w", err)
	}
	p.RiskLevel = fraud.RiskLevel(riskLevel)
	return &p, nil
}

// Save upserts the profile. The insert path only succeeds for a new row;
// the update path only succeeds when the stored version matches the
// profile's version. Either miss is reported as a conflict so the caller
// re-reads and recomputes.
func (r *ProfileRepository) Save(ctx context.Context, p *fraud.UserRiskProfile) error {
	query := `
		INSERT INTO user_risk_profiles (
			user_id, payment_risk, account_risk, usage_risk, velocity_risk,
			overall_risk_score, risk_level, requires_review, suspicious_flag_count,
			last_calculated_at, version
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11 + 1)
		ON CONFLICT (user_id) DO UPDATE SET
			payment_risk = EXCLUDED.payment_risk,
			account_risk = EXCLUDED.account_risk,
			usage_risk = EXCLUDED.usage_risk,
			velocity_risk = EXCLUDED.velocity_risk,
			overall_risk_score = EXCLUDED.overall_risk_score,
			risk_level = EXCLUDED.risk_level,
			requires_review = EXCLUDED.requires_review,
			suspicious_flag_count = EXCLUDED.suspicious_flag_count,
			last_calculated_at = EXCLUDED.last_calculated_at,
			version = user_risk_profiles.version + 1
		WHERE user_risk_profiles.version = $11`

	tag, err := r.db.Exec(ctx, query,
		p.UserID, p.PaymentRisk, p.AccountRisk, p.UsageRisk, p.VelocityRisk,
		p.OverallRiskScore, string(p.RiskLevel), p.RequiresReview, p.SuspiciousFlagCount,
		p.LastCalculatedAt, p.Version,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrProfileConflict
		}
		return fmt.Errorf("failed to save risk profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// The row exists at a different version: somebody else won.
		return domainerrors.ErrProfileConflict
	}
	p.Version++
	return nil
}
