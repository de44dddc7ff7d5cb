package models

import (
	"time"

	"github.com/google/uuid"
)

type AlertModel struct {
	ID             uuid.UUID  `gorm:"column:alert_id;type:uuid;primaryKey"`
	DeviceID       string     `gorm:"type:varchar(128);not null;index"`
	UserID         *string    `gorm:"type:varchar(128)"`
	TripID         *uuid.UUID `gorm:"type:uuid"`
	Ts             time.Time  `gorm:"column:ts;not null"`
	AlertType      string     `gorm:"type:varchar(32);not null"`
	Severity       string     `gorm:"type:varchar(16);not null"`
	TriggerValue   string     `gorm:"type:varchar(64)"`
	ThresholdValue string     `gorm:"type:varchar(64)"`
	Message        string     `gorm:"type:text;not null"`
	Resolved       bool       `gorm:"not null;default:false"`
	ResolvedAt     *time.Time
	ResolvedBy     *string   `gorm:"type:varchar(128)"`
	CreatedAt      time.Time `gorm:"not null"`
}

func (AlertModel) TableName() string {
	return "alerts"
}
