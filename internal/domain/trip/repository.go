package trip

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for trip repository operations
type Repository interface {
	Create(ctx context.Context, trip *Trip) error
	GetByID(ctx context.Context, tripID uuid.UUID) (*Trip, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*Trip, error)
	ListRecording(ctx context.Context) ([]*Trip, error)

	// Close moves a recording trip to completed. Returns ErrTripNotRecording
	// when the trip is already terminal.
	Close(ctx context.Context, tripID uuid.UUID, params CloseParams) error
	Cancel(ctx context.Context, tripID uuid.UUID, at time.Time) error
	UpdateSummary(ctx context.Context, tripID uuid.UUID, summary *Summary) error
}
