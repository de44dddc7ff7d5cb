package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"smart-helmet-backend/internal/domain/telemetry"
	"smart-helmet-backend/internal/domain/trip"
)

// OwnerLookup finds the user a device is registered to.
type OwnerLookup interface {
	LookupOwner(ctx context.Context, deviceID string) (userID string, found bool, err error)
}

// Store is the durable side of the pipeline. Only the worker calls it.
type Store interface {
	CreateTrip(ctx context.Context, t *trip.Trip) error
	CloseTrip(ctx context.Context, tripID uuid.UUID, params trip.CloseParams) error
	CancelTrip(ctx context.Context, tripID uuid.UUID, at time.Time) error
	AppendTelemetry(ctx context.Context, sample *telemetry.Sample) error
	LastKnownPosition(ctx context.Context, tripID uuid.UUID) (*trip.Position, error)
	// SummarizeTrip computes and stores aggregates for a closed trip.
	SummarizeTrip(ctx context.Context, tripID uuid.UUID) error
}

type repositoryStore struct {
	trips   trip.Repository
	samples telemetry.Repository
}

// NewRepositoryStore adapts the trip and telemetry repositories to Store.
func NewRepositoryStore(trips trip.Repository, samples telemetry.Repository) Store {
	return &repositoryStore{trips: trips, samples: samples}
}

func (s *repositoryStore) CreateTrip(ctx context.Context, t *trip.Trip) error {
	return s.trips.Create(ctx, t)
}

func (s *repositoryStore) CloseTrip(ctx context.Context, tripID uuid.UUID, params trip.CloseParams) error {
	return s.trips.Close(ctx, tripID, params)
}

func (s *repositoryStore) CancelTrip(ctx context.Context, tripID uuid.UUID, at time.Time) error {
	return s.trips.Cancel(ctx, tripID, at)
}

func (s *repositoryStore) AppendTelemetry(ctx context.Context, sample *telemetry.Sample) error {
	return s.samples.Append(ctx, sample)
}

func (s *repositoryStore) LastKnownPosition(ctx context.Context, tripID uuid.UUID) (*trip.Position, error) {
	return s.samples.LastKnownPosition(ctx, tripID)
}

func (s *repositoryStore) SummarizeTrip(ctx context.Context, tripID uuid.UUID) error {
	route, err := s.samples.Route(ctx, tripID)
	if err != nil {
		return fmt.Errorf("load route: %w", err)
	}
	rates, err := s.samples.HeartRates(ctx, tripID)
	if err != nil {
		return fmt.Errorf("load heart rates: %w", err)
	}
	return s.trips.UpdateSummary(ctx, tripID, trip.Summarize(route, rates))
}

// sampleFromMessage flattens a telemetry message into its stored form.
func sampleFromMessage(env *Envelope) *telemetry.Sample {
	msg := env.Telemetry
	s := &telemetry.Sample{
		ID:         uuid.New(),
		DeviceID:   env.DeviceID,
		TripID:     env.TripID,
		Timestamp:  env.EventTime,
		ReceivedAt: env.ReceivedAt,
		HelmetOn:   msg.HelmetOn,
		CrashFlag:  msg.CrashFlag,
		Raw:        env.Raw,
	}
	if hr := msg.HeartRate; hr != nil && hr.OK {
		s.HeartRate = hr.HR
		s.SpO2 = hr.SpO2
	}
	if imu := msg.IMU; imu != nil && imu.OK {
		s.AccelX, s.AccelY, s.AccelZ = imu.AX, imu.AY, imu.AZ
		s.GyroX, s.GyroY, s.GyroZ = imu.GX, imu.GY, imu.GZ
	}
	if gps := msg.GPS; gps != nil {
		s.Lat, s.Lng = gps.Lat, gps.Lng
		s.Altitude = gps.Alt
		s.Satellites = gps.Sats
		s.Speed = gps.Speed
	}
	return s
}
