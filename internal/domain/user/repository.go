package user

import (
	"context"
)

// Repository defines the interface for user repository operations
type Repository interface {
	GetByID(ctx context.Context, userID string) (*User, error)
	// Upsert creates the user or updates the non-nil profile fields.
	Upsert(ctx context.Context, user *User) (*User, error)
}
