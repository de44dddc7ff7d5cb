package user

import (
	"time"

	domainUser "smart-helmet-backend/internal/domain/user"
)

// Identity is what the credential verifier knows about the caller.
type Identity struct {
	UserID string
	Email  string
	Name   string
}

type UpdateProfileRequest struct {
	DisplayName *string `json:"display_name" validate:"omitempty,min=1,max=255"`
	Email       *string `json:"email" validate:"omitempty,email,max=255"`
	PhoneNumber *string `json:"phone_number" validate:"omitempty,min=5,max=32"`
}

type UserResponse struct {
	ID          string    `json:"user_id"`
	DisplayName *string   `json:"display_name"`
	Email       *string   `json:"email"`
	PhoneNumber *string   `json:"phone_number"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func ToUserResponse(u *domainUser.User) *UserResponse {
	if u == nil {
		return nil
	}
	return &UserResponse{
		ID:          u.ID,
		DisplayName: u.DisplayName,
		Email:       u.Email,
		PhoneNumber: u.PhoneNumber,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
