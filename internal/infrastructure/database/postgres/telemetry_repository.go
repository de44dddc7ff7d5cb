package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	domainTelemetry "smart-helmet-backend/internal/domain/telemetry"
	domainTrip "smart-helmet-backend/internal/domain/trip"
	"smart-helmet-backend/internal/infrastructure/database/postgres/models"
)

type TelemetryRepository struct {
	db *DB
}

func NewTelemetryRepository(db *DB) *TelemetryRepository {
	return &TelemetryRepository{db: db}
}

func (r *TelemetryRepository) Append(ctx context.Context, s *domainTelemetry.Sample) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if err := r.db.DB.WithContext(ctx).Create(toTripDataModel(s)).Error; err != nil {
		if isForeignKeyViolation(err) {
			return domainTelemetry.ErrUnknownTrip
		}
		return fmt.Errorf("failed to append telemetry: %w", err)
	}
	return nil
}

const foreignKeyViolation = "23503"

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation
}

func (r *TelemetryRepository) ListByTrip(ctx context.Context, tripID uuid.UUID, limit, offset int) ([]*domainTelemetry.Sample, error) {
	var dbModels []models.TripDataModel
	err := r.db.DB.WithContext(ctx).
		Where("trip_id = ?", tripID).
		Order("ts ASC").
		Limit(limit).
		Offset(offset).
		Find(&dbModels).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list telemetry: %w", err)
	}

	samples := make([]*domainTelemetry.Sample, 0, len(dbModels))
	for i := range dbModels {
		samples = append(samples, toSampleEntity(&dbModels[i]))
	}
	return samples, nil
}

type routeRow struct {
	Lat float64
	Lng float64
	Ts  time.Time
}

func (r *TelemetryRepository) Route(ctx context.Context, tripID uuid.UUID) ([]domainTrip.RoutePoint, error) {
	var rows []routeRow
	err := r.db.DB.WithContext(ctx).
		Model(&models.TripDataModel{}).
		Select("lat, lng, ts").
		Where("trip_id = ? AND lat IS NOT NULL AND lng IS NOT NULL", tripID).
		Order("ts ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load trip route: %w", err)
	}

	points := make([]domainTrip.RoutePoint, 0, len(rows))
	for _, row := range rows {
		points = append(points, domainTrip.RoutePoint{
			Position: domainTrip.Position{Lat: row.Lat, Lng: row.Lng},
			Time:     row.Ts,
		})
	}
	return points, nil
}

func (r *TelemetryRepository) HeartRates(ctx context.Context, tripID uuid.UUID) ([]int, error) {
	var rates []int
	err := r.db.DB.WithContext(ctx).
		Model(&models.TripDataModel{}).
		Where("trip_id = ? AND heart_rate IS NOT NULL AND heart_rate > 0", tripID).
		Order("ts ASC").
		Pluck("heart_rate", &rates).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load heart rates: %w", err)
	}
	return rates, nil
}

func (r *TelemetryRepository) LastKnownPosition(ctx context.Context, tripID uuid.UUID) (*domainTrip.Position, error) {
	var row routeRow
	err := r.db.DB.WithContext(ctx).
		Model(&models.TripDataModel{}).
		Select("lat, lng, ts").
		Where("trip_id = ? AND lat IS NOT NULL AND lng IS NOT NULL", tripID).
		Order("ts DESC").
		Take(&row).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load last position: %w", err)
	}
	return &domainTrip.Position{Lat: row.Lat, Lng: row.Lng}, nil
}

func toTripDataModel(s *domainTelemetry.Sample) *models.TripDataModel {
	return &models.TripDataModel{
		ID:         s.ID,
		TripID:     s.TripID,
		DeviceID:   s.DeviceID,
		Ts:         s.Timestamp.UTC(),
		ReceivedAt: s.ReceivedAt.UTC(),
		HelmetOn:   s.HelmetOn,
		CrashFlag:  s.CrashFlag,
		HeartRate:  s.HeartRate,
		SpO2:       s.SpO2,
		AccelX:     s.AccelX,
		AccelY:     s.AccelY,
		AccelZ:     s.AccelZ,
		GyroX:      s.GyroX,
		GyroY:      s.GyroY,
		GyroZ:      s.GyroZ,
		Lat:        s.Lat,
		Lng:        s.Lng,
		Altitude:   s.Altitude,
		Satellites: s.Satellites,
		Speed:      s.Speed,
		Raw:        datatypes.JSON(s.Raw),
	}
}

func toSampleEntity(m *models.TripDataModel) *domainTelemetry.Sample {
	return &domainTelemetry.Sample{
		ID:         m.ID,
		DeviceID:   m.DeviceID,
		TripID:     m.TripID,
		Timestamp:  m.Ts,
		ReceivedAt: m.ReceivedAt,
		HelmetOn:   m.HelmetOn,
		CrashFlag:  m.CrashFlag,
		HeartRate:  m.HeartRate,
		SpO2:       m.SpO2,
		AccelX:     m.AccelX,
		AccelY:     m.AccelY,
		AccelZ:     m.AccelZ,
		GyroX:      m.GyroX,
		GyroY:      m.GyroY,
		GyroZ:      m.GyroZ,
		Lat:        m.Lat,
		Lng:        m.Lng,
		Altitude:   m.Altitude,
		Satellites: m.Satellites,
		Speed:      m.Speed,
		Raw:        []byte(m.Raw),
	}
}
