package device

import (
	"context"
)

// Repository defines the interface for device repository operations
type Repository interface {
	Create(ctx context.Context, device *Device) error
	GetByID(ctx context.Context, deviceID string) (*Device, error)
	ListByUser(ctx context.Context, userID string) ([]*Device, error)
	AssignOwner(ctx context.Context, deviceID, userID string) error

	// LookupOwner returns the owning user of a device. found is false when
	// the device is unknown or not yet claimed.
	LookupOwner(ctx context.Context, deviceID string) (userID string, found bool, err error)
}
