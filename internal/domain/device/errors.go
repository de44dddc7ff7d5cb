package device

import "errors"

var (
	ErrDeviceNotFound     = errors.New("device not found")
	ErrDeviceAlreadyOwned = errors.New("device is owned by another user")
)
