package telemetry

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Sample is one persisted telemetry reading. TripID is nil when the helmet
// had no recording trip at arrival time.
type Sample struct {
	ID         uuid.UUID
	DeviceID   string
	TripID     *uuid.UUID
	Timestamp  time.Time
	ReceivedAt time.Time

	HelmetOn  *bool
	CrashFlag *bool

	HeartRate *int
	SpO2      *int

	AccelX, AccelY, AccelZ *float64
	GyroX, GyroY, GyroZ    *float64

	Lat        *float64
	Lng        *float64
	Altitude   *float64
	Satellites *int
	Speed      *float64

	// Raw is the frame exactly as the helmet sent it.
	Raw json.RawMessage
}

// HasFix reports whether the sample carries a usable GPS position.
func (s *Sample) HasFix() bool {
	return s.Lat != nil && s.Lng != nil
}
