package models

import (
	"time"
)

// DeviceModel represents the database model for Devices.
type DeviceModel struct {
	ID        string    `gorm:"column:device_id;type:varchar(128);primaryKey"`
	UserID    *string   `gorm:"type:varchar(128);index"`
	ModelName *string   `gorm:"type:varchar(255)"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (DeviceModel) TableName() string {
	return "devices"
}
