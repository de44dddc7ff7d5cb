package alert

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for alert repository operations
type Repository interface {
	Create(ctx context.Context, alert *Alert) error
	GetByID(ctx context.Context, alertID uuid.UUID) (*Alert, error)
	// ListByUser returns the user's alerts, newest first.
	ListByUser(ctx context.Context, userID string, limit int) ([]*Alert, error)
	Resolve(ctx context.Context, alertID uuid.UUID, resolvedBy string, at time.Time) error
}
