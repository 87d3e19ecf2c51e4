package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atlaspay/fraud-risk-engine/internal/domain/fraud"
)

// AlertRepository persists emitted fraud alerts for audit. The alert
// publisher writes here before handing the event to notifiers.
type AlertRepository struct {
	db *pgxpool.Pool
}

// NewAlertRepository creates a repository on the shared pool.
func NewAlertRepository(db *pgxpool.Pool) *AlertRepository {
	return &AlertRepository{db: db}
}

// Save inserts one alert record.
func (r *AlertRepository) Save(ctx context.Context, alert *fraud.FraudAlert) error {
	dataJSON, err := json.Marshal(alert.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal alert data: %w", err)
	}

	query := `
		INSERT INTO fraud_alerts (id, alert_type, severity, user_id, message, data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err = r.db.Exec(ctx, query,
		alert.ID, string(alert.AlertType), string(alert.Severity),
		alert.UserID, alert.Message, dataJSON, alert.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save fraud alert: %w", err)
	}
	return nil
}
