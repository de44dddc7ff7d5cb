package ingestion

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"smart-helmet-backend/internal/domain/trip"
)

// Kind tags what an Envelope asks the worker to persist.
type Kind string

const (
	KindTelemetry  Kind = "telemetry"
	KindTripStart  Kind = "trip_start"
	KindTripEnd    Kind = "trip_end"
	KindTripCancel Kind = "trip_cancel"
)

// Envelope is one unit of work on the persistence queue.
type Envelope struct {
	Kind       Kind
	DeviceID   string
	UserID     *string
	TripID     *uuid.UUID
	ReceivedAt time.Time
	// EventTime is the device timestamp, or ReceivedAt when the device sent none.
	EventTime time.Time

	Telemetry *TelemetryMessage
	TripStart *TripStartMessage
	TripEnd   *TripEndMessage
	Raw       json.RawMessage

	// ReplacesTripID is the recording trip a trip_start cancelled.
	ReplacesTripID *uuid.UUID
	// LastPosition is the latest fix seen for the trip being closed.
	LastPosition *trip.Position
	// Unapplied is set when the lifecycle rejected the message; the worker records nothing.
	Unapplied error
}

func (e *Envelope) tripIDString() string {
	if e.TripID == nil {
		return ""
	}
	return e.TripID.String()
}
