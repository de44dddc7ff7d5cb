package alert

import (
	"time"

	"github.com/google/uuid"

	domainAlert "smart-helmet-backend/internal/domain/alert"
)

const defaultListLimit = 50

type ListAlertsRequest struct {
	Limit int `form:"limit" validate:"omitempty,min=1,max=200"`
}

type AlertResponse struct {
	ID             uuid.UUID  `json:"alert_id"`
	DeviceID       string     `json:"device_id"`
	TripID         *uuid.UUID `json:"trip_id,omitempty"`
	Time           time.Time  `json:"ts"`
	Type           string     `json:"alert_type"`
	Severity       string     `json:"severity"`
	TriggerValue   string     `json:"trigger_value,omitempty"`
	ThresholdValue string     `json:"threshold_value,omitempty"`
	Message        string     `json:"message"`
	Resolved       bool       `json:"resolved"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
	ResolvedBy     *string    `json:"resolved_by,omitempty"`
}

type AlertListResponse struct {
	Alerts []AlertResponse `json:"alerts"`
	Total  int             `json:"total"`
}

func ToAlertResponse(a *domainAlert.Alert) *AlertResponse {
	return &AlertResponse{
		ID:             a.ID,
		DeviceID:       a.DeviceID,
		TripID:         a.TripID,
		Time:           a.Time,
		Type:           string(a.Type),
		Severity:       string(a.Severity),
		TriggerValue:   a.TriggerValue,
		ThresholdValue: a.ThresholdValue,
		Message:        a.Message,
		Resolved:       a.Resolved,
		ResolvedAt:     a.ResolvedAt,
		ResolvedBy:     a.ResolvedBy,
	}
}
