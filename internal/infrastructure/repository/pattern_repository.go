package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atlaspay/fraud-risk-engine/internal/domain/fraud"
)

// PatternRepository loads operator-curated fraud patterns. Patterns are
// pure data rows; the rule payload is JSONB decoded into the closed
// rule-variant set.
type PatternRepository struct {
	db *pgxpool.Pool
}

// NewPatternRepository creates a repository on the shared pool.
func NewPatternRepository(db *pgxpool.Pool) *PatternRepository {
	return &PatternRepository{db: db}
}

// ListActive returns all active patterns in key order.
func (r *PatternRepository) ListActive(ctx context.Context) ([]*fraud.FraudPattern, error) {
	query := `
		SELECT id, key, category, description, severity_weight, active, rule, created_at, updated_at
		FROM fraud_patterns
		WHERE active = TRUE
		ORDER BY key`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query active patterns: %w", err)
	}
	defer rows.Close()

	var patterns []*fraud.FraudPattern
	for rows.Next() {
		var (
			p        fraud.FraudPattern
			category string
			ruleJSON []byte
		)
		if err := rows.Scan(
			&p.ID, &p.Key, &category, &p.Description, &p.SeverityWeight,
			&p.Active, &ruleJSON, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan pattern: %w", err)
		}
		p.Category = fraud.PatternCategory(category)
		if err := json.Unmarshal(ruleJSON, &p.Rule); err != nil {
			return nil, fmt.Errorf("failed to unmarshal rule for pattern %s: %w", p.Key, err)
		}
		patterns = append(patterns, &p)
	}
	return patterns, rows.Err()
}

// Upsert inserts or replaces a pattern by key. Operator tooling path, not
// used by the scoring pipeline.
func (r *PatternRepository) Upsert(ctx context.Context, p *fraud.FraudPattern) error {
	ruleJSON, err := json.Marshal(p.Rule)
	if err != nil {
		return fmt.Errorf("failed to marshal rule: %w", err)
	}

	query := `
		INSERT INTO fraud_patterns (id, key, category, description, severity_weight, active, rule, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (key) DO UPDATE SET
			category = EXCLUDED.category,
			description = EXCLUDED.description,
			severity_weight = EXCLUDED.severity_weight,
			active = EXCLUDED.active,
			rule = EXCLUDED.rule,
			updated_at = EXCLUDED.updated_at`

	_, err = r.db.Exec(ctx, query,
		p.ID, p.Key, string(p.Category), p.Description, p.SeverityWeight,
		p.Active, ruleJSON, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert pattern: %w", err)
	}
	return nil
}
