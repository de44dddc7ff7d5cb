package user

import "time"

// User mirrors an identity from the external identity provider. ID is the
// verified principal identifier.
type User struct {
	ID          string
	DisplayName *string
	Email       *string
	PhoneNumber *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
