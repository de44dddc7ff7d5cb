package device

import (
	"time"

	domainDevice "smart-helmet-backend/internal/domain/device"
)

type RegisterDeviceRequest struct {
	DeviceID  string  `json:"device_id" validate:"required,max=128,printascii"`
	ModelName *string `json:"model_name" validate:"omitempty,max=255"`
}

type DeviceResponse struct {
	DeviceID  string    `json:"device_id"`
	UserID    *string   `json:"user_id"`
	ModelName *string   `json:"model_name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type DeviceListResponse struct {
	Devices []DeviceResponse `json:"devices"`
	Total   int              `json:"total"`
}

func ToDeviceResponse(d *domainDevice.Device) *DeviceResponse {
	if d == nil {
		return nil
	}
	return &DeviceResponse{
		DeviceID:  d.ID,
		UserID:    d.UserID,
		ModelName: d.ModelName,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}
