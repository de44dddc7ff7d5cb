package ingestion

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"smart-helmet-backend/internal/domain/trip"
)

type MessageType string

const (
	TypeTelemetry MessageType = "telemetry"
	TypeTripStart MessageType = "trip_start"
	TypeTripEnd   MessageType = "trip_end"
)

var ErrUnknownType = errors.New("unknown type")

var nulEscape = []byte(`\u0000`)

// frameHeader carries the routing fields every device frame has.
type frameHeader struct {
	Type     MessageType `json:"type"`
	DeviceID string      `json:"device_id"`
}

type HeartRateReading struct {
	OK     bool  `json:"ok"`
	IR     *int  `json:"ir,omitempty" validate:"omitempty,min=0"`
	Red    *int  `json:"red,omitempty" validate:"omitempty,min=0"`
	Finger *bool `json:"finger,omitempty"`
	HR     *int  `json:"hr,omitempty" validate:"omitempty,min=0,max=250"`
	SpO2   *int  `json:"spo2,omitempty" validate:"omitempty,min=0,max=100"`
}

type IMUReading struct {
	OK    bool     `json:"ok"`
	Sleep *bool    `json:"sleep,omitempty"`
	AX    *float64 `json:"ax,omitempty"`
	AY    *float64 `json:"ay,omitempty"`
	AZ    *float64 `json:"az,omitempty"`
	GX    *float64 `json:"gx,omitempty"`
	GY    *float64 `json:"gy,omitempty"`
	GZ    *float64 `json:"gz,omitempty"`
}

type GPSReading struct {
	OK    bool     `json:"ok"`
	Lat   *float64 `json:"lat,omitempty" validate:"omitempty,min=-90,max=90"`
	Lng   *float64 `json:"lng,omitempty" validate:"omitempty,min=-180,max=180"`
	Alt   *float64 `json:"alt,omitempty"`
	Sats  *int     `json:"sats,omitempty" validate:"omitempty,min=0"`
	Lock  *bool    `json:"lock,omitempty"`
	Speed *float64 `json:"speed,omitempty" validate:"omitempty,min=0"`
}

// Position returns the fix carried by the reading, if both coordinates are present.
func (g *GPSReading) Position() *trip.Position {
	if g == nil || g.Lat == nil || g.Lng == nil {
		return nil
	}
	return &trip.Position{Lat: *g.Lat, Lng: *g.Lng}
}

// TelemetryMessage is one sensor sample from a helmet.
type TelemetryMessage struct {
	Type      MessageType       `json:"type"`
	DeviceID  string            `json:"device_id" validate:"required,max=128,printascii"`
	Timestamp Timestamp         `json:"ts"`
	HelmetOn  *bool             `json:"helmet_on,omitempty"`
	CrashFlag *bool             `json:"crash_flag,omitempty"`
	HeartRate *HeartRateReading `json:"heart_rate,omitempty"`
	IMU       *IMUReading       `json:"imu,omitempty"`
	GPS       *GPSReading       `json:"gps,omitempty"`
}

// TripStartMessage asks the server to open a trip for the device.
type TripStartMessage struct {
	Type      MessageType `json:"type"`
	DeviceID  string      `json:"device_id" validate:"required,max=128,printascii"`
	Timestamp Timestamp   `json:"ts"`
	StartLat  *float64    `json:"start_lat,omitempty" validate:"omitempty,min=-90,max=90"`
	StartLng  *float64    `json:"start_lng,omitempty" validate:"omitempty,min=-180,max=180"`
}

func (m *TripStartMessage) StartPosition() *trip.Position {
	if m.StartLat == nil || m.StartLng == nil {
		return nil
	}
	return &trip.Position{Lat: *m.StartLat, Lng: *m.StartLng}
}

// TripEndMessage asks the server to close the device's recording trip.
type TripEndMessage struct {
	Type          MessageType `json:"type"`
	DeviceID      string      `json:"device_id" validate:"required,max=128,printascii"`
	Timestamp     Timestamp   `json:"ts"`
	EndLat        *float64    `json:"end_lat,omitempty" validate:"omitempty,min=-90,max=90"`
	EndLng        *float64    `json:"end_lng,omitempty" validate:"omitempty,min=-180,max=180"`
	CrashDetected *bool       `json:"crash_detected,omitempty"`
}

func (m *TripEndMessage) EndPosition() *trip.Position {
	if m.EndLat == nil || m.EndLng == nil {
		return nil
	}
	return &trip.Position{Lat: *m.EndLat, Lng: *m.EndLng}
}

// Frame is a decoded and validated device frame. Exactly one payload is set.
type Frame struct {
	Type      MessageType
	DeviceID  string
	Telemetry *TelemetryMessage
	TripStart *TripStartMessage
	TripEnd   *TripEndMessage
}

// Time returns the device timestamp, or fallback when the frame carried none.
func (f *Frame) Time(fallback time.Time) time.Time {
	var ts Timestamp
	switch {
	case f.Telemetry != nil:
		ts = f.Telemetry.Timestamp
	case f.TripStart != nil:
		ts = f.TripStart.Timestamp
	case f.TripEnd != nil:
		ts = f.TripEnd.Timestamp
	}
	if ts.IsZero() {
		return fallback
	}
	return ts.Time
}

// ParseFrame decodes raw into the message type named by its "type" field and validates it.
func ParseFrame(raw []byte) (*Frame, error) {
	// Frames are stored verbatim as jsonb, which refuses both of these.
	if !utf8.Valid(raw) {
		return nil, &ValidationError{Field: "frame", Message: "frame is not valid UTF-8"}
	}
	if bytes.Contains(raw, nulEscape) {
		return nil, &ValidationError{Field: "frame", Message: "NUL characters are not allowed"}
	}

	var header frameHeader
	if err := json.Unmarshal(raw, &header); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	frame := &Frame{Type: header.Type, DeviceID: header.DeviceID}
	var target any
	switch header.Type {
	case TypeTelemetry:
		frame.Telemetry = &TelemetryMessage{}
		target = frame.Telemetry
	case TypeTripStart:
		frame.TripStart = &TripStartMessage{}
		target = frame.TripStart
	case TypeTripEnd:
		frame.TripEnd = &TripEndMessage{}
		target = frame.TripEnd
	default:
		return nil, ErrUnknownType
	}

	if err := json.Unmarshal(raw, target); err != nil {
		return nil, fmt.Errorf("invalid %s payload: %w", header.Type, err)
	}

	var err error
	switch {
	case frame.Telemetry != nil:
		err = ValidateTelemetry(frame.Telemetry)
	case frame.TripStart != nil:
		err = ValidateTripStart(frame.TripStart)
	case frame.TripEnd != nil:
		err = ValidateTripEnd(frame.TripEnd)
	}
	if err != nil {
		return nil, err
	}
	return frame, nil
}
