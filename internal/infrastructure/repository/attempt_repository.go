package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	domainerrors "github.com/atlaspay/fraud-risk-engine/internal/domain/errors"
	"github.com/atlaspay/fraud-risk-engine/internal/domain/fraud"
	"github.com/atlaspay/fraud-risk-engine/internal/domain/values"
)

// AttemptRepository persists payment attempts in PostgreSQL. Amounts are
// stored as integer minor units; signals and billing details as JSONB;
// payment instruments only ever as digests.
type AttemptRepository struct {
	db *pgxpool.Pool
}

// NewAttemptRepository creates a repository on the shared pool.
func NewAttemptRepository(db *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{db: db}
}

const attemptColumns = `
	id, user_id, subscription_id, gateway_reference,
	amount_minor_units, currency, ip_address, user_agent_digest,
	billing_country, billing_postal_code, payment_method_digest,
	fraud_score, signals, status, chargeback_at, created_at, updated_at`

// Save inserts a scored attempt.
func (r *AttemptRepository) Save(ctx context.Context, a *fraud.PaymentAttempt) error {
	signalsJSON, err := json.Marshal(a.Signals)
	if err != nil {
		return fmt.Errorf("failed to marshal signals: %w", err)
	}

	query := `
		INSERT INTO payment_attempts (` + attemptColumns + `
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17
		)`

	_, err = r.db.Exec(ctx, query,
		a.ID, a.UserID, a.SubscriptionID, nullIfEmpty(a.GatewayReference),
		a.Amount.MinorUnits(), a.Amount.Currency(), a.IPAddress, a.UserAgentDigest,
		a.BillingDetails.Country, a.BillingDetails.PostalCode, a.PaymentMethodDigest,
		a.FraudScore, signalsJSON, string(a.Status), a.ChargebackAt, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domainerrors.NewConflictError(
				fmt.Sprintf("payment attempt %s already exists", a.ID)).WithCause(err)
		}
		return fmt.Errorf("failed to save payment attempt: %w", err)
	}
	return nil
}

// Update persists the mutable outcome fields of an existing attempt.
func (r *AttemptRepository) Update(ctx context.Context, a *fraud.PaymentAttempt) error {
	signalsJSON, err := json.Marshal(a.Signals)
	if err != nil {
		return fmt.Errorf("failed to marshal signals: %w", err)
	}

	query := `
		UPDATE payment_attempts
		SET fraud_score = $2, signals = $3, status = $4, chargeback_at = $5, updated_at = $6
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query,
		a.ID, a.FraudScore, signalsJSON, string(a.Status), a.ChargebackAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update payment attempt: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainerrors.ErrAttemptNotFound
	}
	return nil
}

// FindByGatewayReference looks up the attempt a dispute refers to.
func (r *AttemptRepository) FindByGatewayReference(ctx context.Context, ref string) (*fraud.PaymentAttempt, error) {
	query := `SELECT ` + attemptColumns + ` FROM payment_attempts WHERE gateway_reference = $1`

	a, err := r.scanAttempt(r.db.QueryRow(ctx, query, ref))
	if err != nil {
		if isNoRows(err) {
			return nil, domainerrors.ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to find attempt by gateway reference: %w", err)
	}
	return a, nil
}

// FindRecentByUser returns the user's attempts since the given time,
// newest first.
func (r *AttemptRepository) FindRecentByUser(ctx context.Context, userID uuid.UUID, since time.Time) ([]*fraud.PaymentAttempt, error) {
	query := `SELECT ` + attemptColumns + `
		FROM payment_attempts
		WHERE user_id = $1 AND created_at > $2
		ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, userID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent attempts: %w", err)
	}
	defer rows.Close()

	var attempts []*fraud.PaymentAttempt
	for rows.Next() {
		a, err := r.scanAttempt(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attempt: %w", err)
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// CountRecentByUser counts the user's attempts since the given time.
func (r *AttemptRepository) CountRecentByUser(ctx context.Context, userID uuid.UUID, since time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM payment_attempts WHERE user_id = $1 AND created_at > $2`

	var count int
	if err := r.db.QueryRow(ctx, query, userID, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count recent attempts: %w", err)
	}
	return count, nil
}

// CountRecentFailedByUser counts blocked and charged-back attempts since
// the given time.
func (r *AttemptRepository) CountRecentFailedByUser(ctx context.Context, userID uuid.UUID, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM payment_attempts
		WHERE user_id = $1 AND created_at > $2 AND status IN ('blocked', 'chargeback')`

	var count int
	if err := r.db.QueryRow(ctx, query, userID, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count recent failed attempts: %w", err)
	}
	return count, nil
}

// CountDistinctUsersByMethodDigest counts distinct users that presented
// the same payment-method digest since the given time.
func (r *AttemptRepository) CountDistinctUsersByMethodDigest(ctx context.Context, digest values.Digest, since time.Time) (int, error) {
	query := `
		SELECT COUNT(DISTINCT user_id) FROM payment_attempts
		WHERE payment_method_digest = $1 AND created_at > $2`

	var count int
	if err := r.db.QueryRow(ctx, query, digest, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count distinct users by method digest: %w", err)
	}
	return count, nil
}

// nullIfEmpty maps an absent gateway reference to NULL so ref-less
// attempts never collide on the unique index.
func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *AttemptRepository) scanAttempt(row rowScanner) (*fraud.PaymentAttempt, error) {
	var (
		a                fraud.PaymentAttempt
		gatewayRef       *string
		amountMinorUnits int64
		currency         string
		status           string
		signalsJSON      []byte
	)

	err := row.Scan(
		&a.ID, &a.UserID, &a.SubscriptionID, &gatewayRef,
		&amountMinorUnits, &currency, &a.IPAddress, &a.UserAgentDigest,
		&a.BillingDetails.Country, &a.BillingDetails.PostalCode, &a.PaymentMethodDigest,
		&a.FraudScore, &signalsJSON, &status, &a.ChargebackAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if gatewayRef != nil {
		a.GatewayReference = *gatewayRef
	}

	amount, err := values.NewMoneyFromMinorUnits(amountMinorUnits, currency)
	if err != nil {
		return nil, fmt.Errorf("stored amount is invalid: %w", err)
	}
	a.Amount = amount
	a.Status = fraud.AttemptStatus(status)

	if len(signalsJSON) > 0 {
		if err := json.Unmarshal(signalsJSON, &a.Signals); err != nil {
			return nil, fmt.Errorf("failed to unmarshal signals: %w", err)
		}
	}
	return &a, nil
}
