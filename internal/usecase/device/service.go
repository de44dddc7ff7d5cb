package device

import (
	"context"
	"errors"

	"go.uber.org/zap"

	domainDevice "smart-helmet-backend/internal/domain/device"
	"smart-helmet-backend/internal/logger"
	userUsecase "smart-helmet-backend/internal/usecase/user"
	appErrors "smart-helmet-backend/pkg/errors"
	"smart-helmet-backend/pkg/utils"
)

// OwnerCache is the ingestion path's device-to-user cache. It must learn about
// every ownership change made here.
type OwnerCache interface {
	Set(deviceID, userID string)
	Invalidate(deviceID string)
}

// Service implements device use cases
type Service struct {
	deviceRepo domainDevice.Repository
	users      *userUsecase.Service
	owners     OwnerCache
}

func NewService(deviceRepo domainDevice.Repository, users *userUsecase.Service, owners OwnerCache) *Service {
	return &Service{
		deviceRepo: deviceRepo,
		users:      users,
		owners:     owners,
	}
}

// RegisterDevice claims a helmet for the caller, creating the device record
// if the helmet has never been seen.
func (s *Service) RegisterDevice(ctx context.Context, id userUsecase.Identity, req *RegisterDeviceRequest) (*DeviceResponse, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, appErrors.NewAppError(appErrors.CodeValidation, "Invalid input", err)
	}

	if _, err := s.users.EnsureUser(ctx, id); err != nil {
		return nil, err
	}

	existing, err := s.deviceRepo.GetByID(ctx, req.DeviceID)
	switch {
	case errors.Is(err, domainDevice.ErrDeviceNotFound):
		if err := s.deviceRepo.Create(ctx, &domainDevice.Device{ID: req.DeviceID, ModelName: req.ModelName}); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	case existing.HasOwner() && *existing.UserID != id.UserID:
		return nil, appErrors.NewAppError(appErrors.CodeConflict, "Device is registered to another user", domainDevice.ErrDeviceAlreadyOwned)
	}

	if err := s.deviceRepo.AssignOwner(ctx, req.DeviceID, id.UserID); err != nil {
		// the cached owner may be stale either way
		s.owners.Invalidate(req.DeviceID)
		if errors.Is(err, domainDevice.ErrDeviceAlreadyOwned) {
			return nil, appErrors.NewAppError(appErrors.CodeConflict, "Device is registered to another user", err)
		}
		return nil, err
	}
	s.owners.Set(req.DeviceID, id.UserID)

	registered, err := s.deviceRepo.GetByID(ctx, req.DeviceID)
	if err != nil {
		return nil, err
	}

	logger.Info("Device registered",
		zap.String("device_id", registered.ID),
		zap.String("user_id", id.UserID),
		zap.String("event", "device_registered"),
	)

	return ToDeviceResponse(registered), nil
}

func (s *Service) ListDevices(ctx context.Context, userID string) (*DeviceListResponse, error) {
	devices, err := s.deviceRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	resp := &DeviceListResponse{Devices: make([]DeviceResponse, 0, len(devices)), Total: len(devices)}
	for _, d := range devices {
		resp.Devices = append(resp.Devices, *ToDeviceResponse(d))
	}
	return resp, nil
}
