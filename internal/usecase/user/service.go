package user

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	domainUser "smart-helmet-backend/internal/domain/user"
	"smart-helmet-backend/internal/logger"
	appErrors "smart-helmet-backend/pkg/errors"
	"smart-helmet-backend/pkg/utils"
)

// Service implements user use cases
type Service struct {
	userRepo domainUser.Repository
}

func NewService(userRepo domainUser.Repository) *Service {
	return &Service{userRepo: userRepo}
}

// GetProfile returns the caller's profile, creating it from the token claims
// on first login.
func (s *Service) GetProfile(ctx context.Context, id Identity) (*UserResponse, error) {
	u, err := s.userRepo.GetByID(ctx, id.UserID)
	if err == nil {
		return ToUserResponse(u), nil
	}
	if !errors.Is(err, domainUser.ErrUserNotFound) {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	created, err := s.EnsureUser(ctx, id)
	if err != nil {
		return nil, err
	}
	return ToUserResponse(created), nil
}

// EnsureUser makes sure a row exists for the identity without overwriting
// profile fields the user edited.
func (s *Service) EnsureUser(ctx context.Context, id Identity) (*domainUser.User, error) {
	if id.UserID == "" {
		return nil, appErrors.ErrUnauthorized
	}

	existing, err := s.userRepo.GetByID(ctx, id.UserID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, domainUser.ErrUserNotFound) {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	created, err := s.userRepo.Upsert(ctx, &domainUser.User{
		ID:          id.UserID,
		DisplayName: optional(id.Name),
		Email:       optional(id.Email),
	})
	if err != nil {
		return nil, err
	}

	logger.Info("User created on first login",
		zap.String("user_id", created.ID),
		zap.String("event", "user_created"),
	)
	return created, nil
}

func (s *Service) UpdateProfile(ctx context.Context, id Identity, req *UpdateProfileRequest) (*UserResponse, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, appErrors.NewAppError(appErrors.CodeValidation, "Invalid input", err)
	}

	updated, err := s.userRepo.Upsert(ctx, &domainUser.User{
		ID:          id.UserID,
		DisplayName: req.DisplayName,
		Email:       req.Email,
		PhoneNumber: req.PhoneNumber,
	})
	if err != nil {
		return nil, err
	}

	logger.Info("User profile updated",
		zap.String("user_id", updated.ID),
		zap.String("event", "profile_updated"),
	)
	return ToUserResponse(updated), nil
}
