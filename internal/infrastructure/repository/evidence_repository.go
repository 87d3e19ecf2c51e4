package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	domainerrors "github.com/atlaspay/fraud-risk-engine/internal/domain/errors"
	"github.com/atlaspay/fraud-risk-engine/internal/domain/fraud"
)

// EvidenceRepository persists chargeback evidence bundles. Records are
// written once, inside a single transaction per bundle, and never
// mutated afterwards.
type EvidenceRepository struct {
	db *pgxpool.Pool
}

// NewEvidenceRepository creates a repository on the shared pool.
func NewEvidenceRepository(db *pgxpool.Pool) *EvidenceRepository {
	return &EvidenceRepository{db: db}
}

// SaveBundle writes every record of one bundle atomically. A bundle that
// collides with an already-stored record for the same attempt and
// evidence type is reported as a conflict so the caller can re-read.
func (r *EvidenceRepository) SaveBundle(ctx context.Context, bundle []*fraud.ChargebackEvidence) error {
	if len(bundle) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin evidence transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO chargeback_evidence (id, attempt_id, user_id, evidence_type, evidence_data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	for _, ev := range bundle {
		dataJSON, err := json.Marshal(ev.EvidenceData)
		if err != nil {
			return fmt.Errorf("failed to marshal evidence data: %w", err)
		}
		if _, err := tx.Exec(ctx, query,
			ev.ID, ev.AttemptID, ev.UserID, string(ev.EvidenceType), dataJSON, ev.CreatedAt,
		); err != nil {
			if isUniqueViolation(err) {
				return domainerrors.NewConflictError(
					fmt.Sprintf("evidence bundle for attempt %s already exists", ev.AttemptID)).WithCause(err)
			}
			return fmt.Errorf("failed to save evidence record: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit evidence bundle: %w", err)
	}
	return nil
}

// FindByAttempt returns the stored bundle for an attempt, empty when none
// has been collected.
func (r *EvidenceRepository) FindByAttempt(ctx context.Context, attemptID uuid.UUID) ([]*fraud.ChargebackEvidence, error) {
	query := `
		SELECT id, attempt_id, user_id, evidence_type, evidence_data, created_at
		FROM chargeback_evidence
		WHERE attempt_id = $1
		ORDER BY evidence_type`

	rows, err := r.db.Query(ctx, query, attemptID)
	if err != nil {
		return nil, fmt.Errorf("failed to query evidence: %w", err)
	}
	defer rows.Close()

	var bundle []*fraud.ChargebackEvidence
	for rows.Next() {
		var (
			ev           fraud.ChargebackEvidence
			evidenceType string
			dataJSON     []byte
		)
		if err := rows.Scan(&ev.ID, &ev.AttemptID, &ev.UserID, &evidenceType, &dataJSON, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan evidence record: %w", err)
		}
		ev.EvidenceType = fraud.EvidenceType(evidenceType)
		if err := json.Unmarshal(dataJSON, &ev.EvidenceData); err != nil {
			return nil, fmt.Errorf("failed to unmarshal evidence data: %w", err)
		}
		bundle = append(bundle, &ev)
	}
	return bundle, rows.Err()
}
