package telemetry

import "errors"

// ErrUnknownTrip is returned by Append when the sample's trip has no stored row.
var ErrUnknownTrip = errors.New("telemetry references unknown trip")
