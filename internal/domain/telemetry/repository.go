package telemetry

import (
	"context"

	"github.com/google/uuid"

	"smart-helmet-backend/internal/domain/trip"
)

// Repository defines the interface for telemetry storage
type Repository interface {
	Append(ctx context.Context, sample *Sample) error
	ListByTrip(ctx context.Context, tripID uuid.UUID, limit, offset int) ([]*Sample, error)

	// Route returns the trip's GPS fixes in time order.
	Route(ctx context.Context, tripID uuid.UUID) ([]trip.RoutePoint, error)
	HeartRates(ctx context.Context, tripID uuid.UUID) ([]int, error)
	// LastKnownPosition returns nil when the trip has no GPS fix.
	LastKnownPosition(ctx context.Context, tripID uuid.UUID) (*trip.Position, error)
}
