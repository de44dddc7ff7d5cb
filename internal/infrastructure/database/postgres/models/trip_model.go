package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// TripModel represents the database model for Trips.
type TripModel struct {
	ID               uuid.UUID  `gorm:"column:trip_id;type:uuid;primaryKey"`
	DeviceID         string     `gorm:"type:varchar(128);not null;index"`
	UserID           *string    `gorm:"type:varchar(128);index"`
	Status           string     `gorm:"type:varchar(20);not null;default:'recording';index"`
	StartTime        time.Time  `gorm:"type:timestamptz;not null"`
	EndTime          *time.Time `gorm:"type:timestamptz"`
	StartLat         *float64
	StartLng         *float64
	EndLat           *float64
	EndLng           *float64
	CrashDetected    *bool
	TotalDistanceKm  *float64
	AverageSpeedKmh  *float64
	MaxSpeedKmh      *float64
	AverageHeartRate *float64
	CreatedAt        time.Time `gorm:"not null"`
	UpdatedAt        time.Time `gorm:"not null"`
}

func (TripModel) TableName() string {
	return "trips"
}

// TripDataModel is one telemetry sample. TripID is null for samples recorded
// while no trip was open.
type TripDataModel struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey"`
	TripID     *uuid.UUID `gorm:"type:uuid;index"`
	DeviceID   string     `gorm:"type:varchar(128);not null;index"`
	Ts         time.Time  `gorm:"column:ts;type:timestamptz;not null"`
	ReceivedAt time.Time  `gorm:"type:timestamptz;not null"`
	HelmetOn   *bool
	CrashFlag  *bool
	HeartRate  *int
	SpO2       *int `gorm:"column:spo2"`
	AccelX     *float64
	AccelY     *float64
	AccelZ     *float64
	GyroX      *float64
	GyroY      *float64
	GyroZ      *float64
	Lat        *float64
	Lng        *float64
	Altitude   *float64
	Satellites *int
	Speed      *float64
	Raw        datatypes.JSON `gorm:"type:jsonb"`
}

func (TripDataModel) TableName() string {
	return "trip_data"
}
