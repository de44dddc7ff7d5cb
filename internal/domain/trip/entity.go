package trip

import (
	"time"

	"github.com/google/uuid"
)

// Trip represents a recording session of one helmet
type Trip struct {
	ID            uuid.UUID
	DeviceID      string
	UserID        *string
	Status        Status
	StartTime     time.Time
	EndTime       *time.Time
	StartPosition *Position
	EndPosition   *Position
	CrashDetected *bool
	Summary       *Summary
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Status represents the lifecycle state of a trip
type Status string

const (
	StatusRecording Status = "recording"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Position is a WGS84 coordinate pair.
type Position struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// CloseParams carries the values stamped on a trip when it completes.
type CloseParams struct {
	EndTime       time.Time
	EndPosition   *Position
	CrashDetected *bool
}

// IsTerminal reports whether no further transitions are allowed.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}
