package trip

import "errors"

var (
	ErrTripNotFound            = errors.New("trip not found")
	ErrTripNotRecording        = errors.New("trip is not recording")
	ErrInvalidStatusTransition = errors.New("invalid trip status transition")
)
