package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domainDevice "smart-helmet-backend/internal/domain/device"
	"smart-helmet-backend/internal/infrastructure/database/postgres/models"
)

// DeviceRepository implements domain.Device.Repository interface
type DeviceRepository struct {
	db *DB
}

// NewDeviceRepository creates a new device repository
func NewDeviceRepository(db *DB) *DeviceRepository {
	return &DeviceRepository{db: db}
}

// Create inserts the device, or updates its model name if it already exists.
func (r *DeviceRepository) Create(ctx context.Context, d *domainDevice.Device) error {
	now := time.Now().UTC()
	d.CreatedAt = now
	d.UpdatedAt = now

	dbModel := toDeviceModel(d)
	err := r.db.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "device_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"model_name", "updated_at"}),
		}).
		Create(dbModel).Error
	if err != nil {
		return fmt.Errorf("failed to create device: %w", err)
	}
	return nil
}

func (r *DeviceRepository) GetByID(ctx context.Context, deviceID string) (*domainDevice.Device, error) {
	var dbModel models.DeviceModel
	err := r.db.DB.WithContext(ctx).
		Where("device_id = ?", deviceID).
		First(&dbModel).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domainDevice.ErrDeviceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get device: %w", err)
	}

	return toDeviceEntity(&dbModel), nil
}

func (r *DeviceRepository) ListByUser(ctx context.Context, userID string) ([]*domainDevice.Device, error) {
	var dbModels []models.DeviceModel
	err := r.db.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&dbModels).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	devices := make([]*domainDevice.Device, 0, len(dbModels))
	for i := range dbModels {
		devices = append(devices, toDeviceEntity(&dbModels[i]))
	}
	return devices, nil
}

// AssignOwner claims an unowned device for userID. Claiming a device the user
// already owns succeeds; one owned by someone else returns ErrDeviceAlreadyOwned.
func (r *DeviceRepository) AssignOwner(ctx context.Context, deviceID, userID string) error {
	result := r.db.DB.WithContext(ctx).
		Model(&models.DeviceModel{}).
		Where("device_id = ? AND (user_id IS NULL OR user_id = ?)", deviceID, userID).
		Updates(map[string]interface{}{
			"user_id":    userID,
			"updated_at": time.Now().UTC(),
		})

	if result.Error != nil {
		return fmt.Errorf("failed to assign owner: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		if _, err := r.GetByID(ctx, deviceID); err != nil {
			return err
		}
		return domainDevice.ErrDeviceAlreadyOwned
	}

	return nil
}

func (r *DeviceRepository) LookupOwner(ctx context.Context, deviceID string) (string, bool, error) {
	var owner struct {
		UserID *string
	}
	err := r.db.DB.WithContext(ctx).
		Model(&models.DeviceModel{}).
		Select("user_id").
		Where("device_id = ?", deviceID).
		Take(&owner).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to look up device owner: %w", err)
	}
	if owner.UserID == nil || *owner.UserID == "" {
		return "", false, nil
	}
	return *owner.UserID, true, nil
}

func toDeviceModel(d *domainDevice.Device) *models.DeviceModel {
	return &models.DeviceModel{
		ID:        d.ID,
		UserID:    d.UserID,
		ModelName: d.ModelName,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

func toDeviceEntity(m *models.DeviceModel) *domainDevice.Device {
	return &domainDevice.Device{
		ID:        m.ID,
		UserID:    m.UserID,
		ModelName: m.ModelName,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}
