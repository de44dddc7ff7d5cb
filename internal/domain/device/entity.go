package device

import (
	"time"
)

// Device is a helmet known to the platform. ID is the hardware identifier the
// helmet sends as device_id.
type Device struct {
	ID        string
	UserID    *string
	ModelName *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasOwner reports whether the device has been claimed by a user.
func (d *Device) HasOwner() bool {
	return d.UserID != nil && *d.UserID != ""
}
