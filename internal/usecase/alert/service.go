package alert

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	domainAlert "smart-helmet-backend/internal/domain/alert"
	"smart-helmet-backend/internal/logger"
	appErrors "smart-helmet-backend/pkg/errors"
	"smart-helmet-backend/pkg/utils"
)

type Service struct {
	alertRepo domainAlert.Repository
	now       func() time.Time
}

func NewService(alertRepo domainAlert.Repository) *Service {
	return &Service{alertRepo: alertRepo, now: time.Now}
}

func (s *Service) ListAlerts(ctx context.Context, userID string, req *ListAlertsRequest) (*AlertListResponse, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, appErrors.NewAppError(appErrors.CodeValidation, "Invalid query parameters", err)
	}
	limit := req.Limit
	if limit == 0 {
		limit = defaultListLimit
	}

	alerts, err := s.alertRepo.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, err
	}

	resp := &AlertListResponse{Alerts: make([]AlertResponse, 0, len(alerts)), Total: len(alerts)}
	for _, a := range alerts {
		resp.Alerts = append(resp.Alerts, *ToAlertResponse(a))
	}
	return resp, nil
}

// AcknowledgeAlert resolves one of the caller's alerts. Acknowledging a
// resolved alert returns it unchanged.
func (s *Service) AcknowledgeAlert(ctx context.Context, userID string, alertID uuid.UUID) (*AlertResponse, error) {
	a, err := s.alertRepo.GetByID(ctx, alertID)
	if errors.Is(err, domainAlert.ErrAlertNotFound) {
		return nil, appErrors.NewAppError(appErrors.CodeNotFound, "Alert not found", err)
	}
	if err != nil {
		return nil, err
	}
	if !a.OwnedBy(userID) {
		return nil, appErrors.NewAppError(appErrors.CodeForbidden, "Not authorized to manage this alert", nil)
	}
	if a.Resolved {
		return ToAlertResponse(a), nil
	}

	now := s.now().UTC()
	if err := s.alertRepo.Resolve(ctx, alertID, userID, now); err != nil {
		return nil, err
	}

	logger.Info("Alert resolved",
		zap.String("alert_id", alertID.String()),
		zap.String("user_id", userID),
		zap.String("event", "alert_resolved"),
	)

	a.Resolved = true
	a.ResolvedAt = &now
	a.ResolvedBy = &userID
	return ToAlertResponse(a), nil
}
