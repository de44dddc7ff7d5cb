package trip

import (
	"fmt"
)

// State machine for trip status transitions
var validTransitions = map[Status][]Status{
	StatusRecording: {
		StatusCompleted,
		StatusCancelled,
	},
	StatusCompleted: {
		// Terminal state - no transitions
	},
	StatusCancelled: {
		// Terminal state - no transitions
	},
}

// ValidateStatusTransition checks if status transition is allowed
func ValidateStatusTransition(current, next Status) error {
	allowed, exists := validTransitions[current]
	if !exists {
		return fmt.Errorf("%w: unknown current status %q", ErrInvalidStatusTransition, current)
	}

	for _, s := range allowed {
		if s == next {
			return nil
		}
	}

	return fmt.Errorf("%w: cannot transition from %s to %s", ErrInvalidStatusTransition, current, next)
}
