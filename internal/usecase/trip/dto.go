package trip

import (
	"time"

	"github.com/google/uuid"

	domainTelemetry "smart-helmet-backend/internal/domain/telemetry"
	domainTrip "smart-helmet-backend/internal/domain/trip"
)

const (
	defaultPageSize = 20
	maxPageSize     = 500
)

type PageRequest struct {
	Limit  int `form:"limit" validate:"omitempty,min=1,max=500"`
	Offset int `form:"offset" validate:"omitempty,min=0"`
}

func (p *PageRequest) normalize() {
	if p.Limit <= 0 {
		p.Limit = defaultPageSize
	}
	if p.Limit > maxPageSize {
		p.Limit = maxPageSize
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
}

type SummaryResponse struct {
	TotalDistanceKm  float64  `json:"total_distance_km"`
	AverageSpeedKmh  *float64 `json:"average_speed_kmh"`
	MaxSpeedKmh      *float64 `json:"max_speed_kmh"`
	AverageHeartRate *float64 `json:"average_heart_rate"`
}

type TripResponse struct {
	TripID        uuid.UUID            `json:"trip_id"`
	DeviceID      string               `json:"device_id"`
	UserID        *string              `json:"user_id"`
	Status        domainTrip.Status    `json:"status"`
	StartTime     time.Time            `json:"start_time"`
	EndTime       *time.Time           `json:"end_time"`
	StartPosition *domainTrip.Position `json:"start_position"`
	EndPosition   *domainTrip.Position `json:"end_position"`
	CrashDetected *bool                `json:"crash_detected"`
	Summary       *SummaryResponse     `json:"summary"`
}

type TripListResponse struct {
	Trips  []TripResponse `json:"trips"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

type RoutePointResponse struct {
	Lat  float64   `json:"lat"`
	Lng  float64   `json:"lng"`
	Time time.Time `json:"ts"`
}

type SampleResponse struct {
	Timestamp  time.Time `json:"ts"`
	HelmetOn   *bool     `json:"helmet_on"`
	CrashFlag  *bool     `json:"crash_flag"`
	HeartRate  *int      `json:"heart_rate"`
	SpO2       *int      `json:"spo2"`
	AccelX     *float64  `json:"accel_x"`
	AccelY     *float64  `json:"accel_y"`
	AccelZ     *float64  `json:"accel_z"`
	GyroX      *float64  `json:"gyro_x"`
	GyroY      *float64  `json:"gyro_y"`
	GyroZ      *float64  `json:"gyro_z"`
	Lat        *float64  `json:"lat"`
	Lng        *float64  `json:"lng"`
	Altitude   *float64  `json:"altitude"`
	Satellites *int      `json:"satellites"`
	Speed      *float64  `json:"speed"`
}

type MetricsResponse struct {
	TripID  uuid.UUID        `json:"trip_id"`
	Samples []SampleResponse `json:"samples"`
	Limit   int              `json:"limit"`
	Offset  int              `json:"offset"`
}

func ToTripResponse(t *domainTrip.Trip) *TripResponse {
	if t == nil {
		return nil
	}
	resp := &TripResponse{
		TripID:        t.ID,
		DeviceID:      t.DeviceID,
		UserID:        t.UserID,
		Status:        t.Status,
		StartTime:     t.StartTime,
		EndTime:       t.EndTime,
		StartPosition: t.StartPosition,
		EndPosition:   t.EndPosition,
		CrashDetected: t.CrashDetected,
	}
	if t.Summary != nil {
		resp.Summary = &SummaryResponse{
			TotalDistanceKm:  t.Summary.TotalDistanceKm,
			AverageSpeedKmh:  t.Summary.AverageSpeedKmh,
			MaxSpeedKmh:      t.Summary.MaxSpeedKmh,
			AverageHeartRate: t.Summary.AverageHeartRate,
		}
	}
	return resp
}

func toSampleResponse(s *domainTelemetry.Sample) SampleResponse {
	return SampleResponse{
		Timestamp:  s.Timestamp,
		HelmetOn:   s.HelmetOn,
		CrashFlag:  s.CrashFlag,
		HeartRate:  s.HeartRate,
		SpO2:       s.SpO2,
		AccelX:     s.AccelX,
		AccelY:     s.AccelY,
		AccelZ:     s.AccelZ,
		GyroX:      s.GyroX,
		GyroY:      s.GyroY,
		GyroZ:      s.GyroZ,
		Lat:        s.Lat,
		Lng:        s.Lng,
		Altitude:   s.Altitude,
		Satellites: s.Satellites,
		Speed:      s.Speed,
	}
}
