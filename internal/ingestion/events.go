package ingestion

import (
	"context"
	"time"

	"smart-helmet-backend/internal/domain/alert"
	"smart-helmet-backend/internal/domain/trip"
)

type EventType string

const (
	EventTripStarted   EventType = "trip.started"
	EventTripCompleted EventType = "trip.completed"
	EventTripCancelled EventType = "trip.cancelled"
	EventAlertRaised   EventType = "alert.raised"
)

// TripEvent is announced after a trip transition or an alert is durably recorded.
type TripEvent struct {
	Type       EventType      `json:"type"`
	TripID     string         `json:"trip_id,omitempty"`
	DeviceID   string         `json:"device_id"`
	UserID     *string        `json:"user_id,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
	Position   *trip.Position `json:"position,omitempty"`
	Crash      *bool          `json:"crash_detected,omitempty"`
	Alert      *AlertNotice   `json:"alert,omitempty"`
}

type AlertNotice struct {
	ID       string         `json:"alert_id"`
	Type     alert.Type     `json:"alert_type"`
	Severity alert.Severity `json:"severity"`
	Message  string         `json:"message"`
}

// EventPublisher delivers trip events to downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, event TripEvent) error
}
