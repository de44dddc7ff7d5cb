package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	domainAlert "smart-helmet-backend/internal/domain/alert"
	"smart-helmet-backend/internal/infrastructure/database/postgres/models"
)

type AlertRepository struct {
	db *DB
}

func NewAlertRepository(db *DB) *AlertRepository {
	return &AlertRepository{db: db}
}

func (r *AlertRepository) Create(ctx context.Context, a *domainAlert.Alert) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.CreatedAt = time.Now().UTC()

	if err := r.db.DB.WithContext(ctx).Create(toAlertModel(a)).Error; err != nil {
		return fmt.Errorf("failed to create alert: %w", err)
	}
	return nil
}

func (r *AlertRepository) GetByID(ctx context.Context, alertID uuid.UUID) (*domainAlert.Alert, error) {
	var dbModel models.AlertModel
	err := r.db.DB.WithContext(ctx).Where("alert_id = ?", alertID).First(&dbModel).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domainAlert.ErrAlertNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alert: %w", err)
	}
	return toAlertEntity(&dbModel), nil
}

func (r *AlertRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*domainAlert.Alert, error) {
	var dbModels []models.AlertModel
	err := r.db.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("ts DESC").
		Limit(limit).
		Find(&dbModels).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}

	alerts := make([]*domainAlert.Alert, 0, len(dbModels))
	for i := range dbModels {
		alerts = append(alerts, toAlertEntity(&dbModels[i]))
	}
	return alerts, nil
}

// Resolve marks an open alert resolved. Resolving an already resolved alert
// leaves the first resolution in place.
func (r *AlertRepository) Resolve(ctx context.Context, alertID uuid.UUID, resolvedBy string, at time.Time) error {
	result := r.db.DB.WithContext(ctx).
		Model(&models.AlertModel{}).
		Where("alert_id = ? AND resolved = ?", alertID, false).
		Updates(map[string]interface{}{
			"resolved":    true,
			"resolved_at": at.UTC(),
			"resolved_by": resolvedBy,
		})

	if result.Error != nil {
		return fmt.Errorf("failed to resolve alert: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		_, err := r.GetByID(ctx, alertID)
		return err
	}
	return nil
}

func toAlertModel(a *domainAlert.Alert) *models.AlertModel {
	return &models.AlertModel{
		ID:             a.ID,
		DeviceID:       a.DeviceID,
		UserID:         a.UserID,
		TripID:         a.TripID,
		Ts:             a.Time.UTC(),
		AlertType:      string(a.Type),
		Severity:       string(a.Severity),
		TriggerValue:   a.TriggerValue,
		ThresholdValue: a.ThresholdValue,
		Message:        a.Message,
		Resolved:       a.Resolved,
		ResolvedAt:     a.ResolvedAt,
		ResolvedBy:     a.ResolvedBy,
		CreatedAt:      a.CreatedAt,
	}
}

func toAlertEntity(m *models.AlertModel) *domainAlert.Alert {
	return &domainAlert.Alert{
		ID:             m.ID,
		DeviceID:       m.DeviceID,
		UserID:         m.UserID,
		TripID:         m.TripID,
		Time:           m.Ts,
		Type:           domainAlert.Type(m.AlertType),
		Severity:       domainAlert.Severity(m.Severity),
		TriggerValue:   m.TriggerValue,
		ThresholdValue: m.ThresholdValue,
		Message:        m.Message,
		Resolved:       m.Resolved,
		ResolvedAt:     m.ResolvedAt,
		ResolvedBy:     m.ResolvedBy,
		CreatedAt:      m.CreatedAt,
	}
}
