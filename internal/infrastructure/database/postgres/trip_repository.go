package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	domainTrip "smart-helmet-backend/internal/domain/trip"
	"smart-helmet-backend/internal/infrastructure/database/postgres/models"
)

// TripRepository implements domain.Trip.Repository interface
type TripRepository struct {
	db *DB
}

func NewTripRepository(db *DB) *TripRepository {
	return &TripRepository{db: db}
}

func (r *TripRepository) Create(ctx context.Context, t *domainTrip.Trip) error {
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	if t.Status == "" {
		t.Status = domainTrip.StatusRecording
	}

	if err := r.db.DB.WithContext(ctx).Create(toTripModel(t)).Error; err != nil {
		return fmt.Errorf("failed to create trip: %w", err)
	}
	return nil
}

func (r *TripRepository) GetByID(ctx context.Context, tripID uuid.UUID) (*domainTrip.Trip, error) {
	var dbModel models.TripModel
	err := r.db.DB.WithContext(ctx).Where("trip_id = ?", tripID).First(&dbModel).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domainTrip.ErrTripNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trip: %w", err)
	}

	return toTripEntity(&dbModel), nil
}

func (r *TripRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*domainTrip.Trip, error) {
	var dbModels []models.TripModel
	err := r.db.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("start_time DESC").
		Limit(limit).
		Offset(offset).
		Find(&dbModels).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list trips: %w", err)
	}
	return toTripEntities(dbModels), nil
}

// ListRecording returns every trip still marked recording, oldest first.
func (r *TripRepository) ListRecording(ctx context.Context) ([]*domainTrip.Trip, error) {
	var dbModels []models.TripModel
	err := r.db.DB.WithContext(ctx).
		Where("status = ?", string(domainTrip.StatusRecording)).
		Order("start_time ASC").
		Find(&dbModels).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list recording trips: %w", err)
	}
	return toTripEntities(dbModels), nil
}

func (r *TripRepository) Close(ctx context.Context, tripID uuid.UUID, params domainTrip.CloseParams) error {
	updates := map[string]interface{}{
		"status":     string(domainTrip.StatusCompleted),
		"end_time":   params.EndTime.UTC(),
		"updated_at": time.Now().UTC(),
	}
	if params.EndPosition != nil {
		updates["end_lat"] = params.EndPosition.Lat
		updates["end_lng"] = params.EndPosition.Lng
	}
	if params.CrashDetected != nil {
		updates["crash_detected"] = *params.CrashDetected
	}

	return r.transition(ctx, tripID, domainTrip.StatusCompleted, updates)
}

func (r *TripRepository) Cancel(ctx context.Context, tripID uuid.UUID, at time.Time) error {
	return r.transition(ctx, tripID, domainTrip.StatusCancelled, map[string]interface{}{
		"status":     string(domainTrip.StatusCancelled),
		"end_time":   at.UTC(),
		"updated_at": time.Now().UTC(),
	})
}

// transition applies updates only while the trip is still recording, so a
// terminal trip is never reopened or overwritten.
func (r *TripRepository) transition(ctx context.Context, tripID uuid.UUID, next domainTrip.Status, updates map[string]interface{}) error {
	result := r.db.DB.WithContext(ctx).
		Model(&models.TripModel{}).
		Where("trip_id = ? AND status = ?", tripID, string(domainTrip.StatusRecording)).
		Updates(updates)

	if result.Error != nil {
		return fmt.Errorf("failed to update trip status: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		return nil
	}

	current, err := r.GetByID(ctx, tripID)
	if err != nil {
		return err
	}
	if err := domainTrip.ValidateStatusTransition(current.Status, next); err != nil {
		return fmt.Errorf("%w: %v", domainTrip.ErrTripNotRecording, err)
	}
	return domainTrip.ErrTripNotRecording
}

func (r *TripRepository) UpdateSummary(ctx context.Context, tripID uuid.UUID, summary *domainTrip.Summary) error {
	if summary == nil {
		return nil
	}

	result := r.db.DB.WithContext(ctx).
		Model(&models.TripModel{}).
		Where("trip_id = ?", tripID).
		Updates(map[string]interface{}{
			"total_distance_km":  summary.TotalDistanceKm,
			"average_speed_kmh":  summary.AverageSpeedKmh,
			"max_speed_kmh":      summary.MaxSpeedKmh,
			"average_heart_rate": summary.AverageHeartRate,
			"updated_at":         time.Now().UTC(),
		})

	if result.Error != nil {
		return fmt.Errorf("failed to update trip summary: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domainTrip.ErrTripNotFound
	}
	return nil
}

func toTripModel(t *domainTrip.Trip) *models.TripModel {
	m := &models.TripModel{
		ID:            t.ID,
		DeviceID:      t.DeviceID,
		UserID:        t.UserID,
		Status:        string(t.Status),
		StartTime:     t.StartTime.UTC(),
		EndTime:       t.EndTime,
		CrashDetected: t.CrashDetected,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
	if t.StartPosition != nil {
		m.StartLat = &t.StartPosition.Lat
		m.StartLng = &t.StartPosition.Lng
	}
	if t.EndPosition != nil {
		m.EndLat = &t.EndPosition.Lat
		m.EndLng = &t.EndPosition.Lng
	}
	if t.Summary != nil {
		m.TotalDistanceKm = &t.Summary.TotalDistanceKm
		m.AverageSpeedKmh = t.Summary.AverageSpeedKmh
		m.MaxSpeedKmh = t.Summary.MaxSpeedKmh
		m.AverageHeartRate = t.Summary.AverageHeartRate
	}
	return m
}

func toTripEntity(m *models.TripModel) *domainTrip.Trip {
	t := &domainTrip.Trip{
		ID:            m.ID,
		DeviceID:      m.DeviceID,
		UserID:        m.UserID,
		Status:        domainTrip.Status(m.Status),
		StartTime:     m.StartTime,
		EndTime:       m.EndTime,
		StartPosition: toPosition(m.StartLat, m.StartLng),
		EndPosition:   toPosition(m.EndLat, m.EndLng),
		CrashDetected: m.CrashDetected,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
	if m.TotalDistanceKm != nil {
		t.Summary = &domainTrip.Summary{
			TotalDistanceKm:  *m.TotalDistanceKm,
			AverageSpeedKmh:  m.AverageSpeedKmh,
			MaxSpeedKmh:      m.MaxSpeedKmh,
			AverageHeartRate: m.AverageHeartRate,
		}
	}
	return t
}

func toTripEntities(dbModels []models.TripModel) []*domainTrip.Trip {
	trips := make([]*domainTrip.Trip, 0, len(dbModels))
	for i := range dbModels {
		trips = append(trips, toTripEntity(&dbModels[i]))
	}
	return trips
}

func toPosition(lat, lng *float64) *domainTrip.Position {
	if lat == nil || lng == nil {
		return nil
	}
	return &domainTrip.Position{Lat: *lat, Lng: *lng}
}
