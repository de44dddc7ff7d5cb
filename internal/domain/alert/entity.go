package alert

import (
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeCrash     Type = "crash"
	TypeHeartRate Type = "heart_rate"
	TypeSpO2      Type = "spo2"
)

type Severity string

const (
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Alert is a safety condition detected in a helmet's telemetry. It stays open
// until the owning user acknowledges it.
type Alert struct {
	ID             uuid.UUID
	DeviceID       string
	UserID         *string
	TripID         *uuid.UUID
	Time           time.Time
	Type           Type
	Severity       Severity
	TriggerValue   string
	ThresholdValue string
	Message        string

	Resolved   bool
	ResolvedAt *time.Time
	ResolvedBy *string
	CreatedAt  time.Time
}

func (a *Alert) OwnedBy(userID string) bool {
	return a.UserID != nil && *a.UserID == userID
}
