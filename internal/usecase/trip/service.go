package trip

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	domainTelemetry "smart-helmet-backend/internal/domain/telemetry"
	domainTrip "smart-helmet-backend/internal/domain/trip"
	"smart-helmet-backend/internal/logger"
	appErrors "smart-helmet-backend/pkg/errors"
	"smart-helmet-backend/pkg/utils"
)

// Canceller hands an administrative cancel to the ingestion pipeline, which
// frees the device's recording slot and persists the cancel in order.
type Canceller interface {
	CancelTrip(tripID uuid.UUID, deviceID string, userID *string) error
}

// Service implements trip read models and administrative actions
type Service struct {
	tripRepo      domainTrip.Repository
	telemetryRepo domainTelemetry.Repository
	canceller     Canceller
}

func NewService(tripRepo domainTrip.Repository, telemetryRepo domainTelemetry.Repository, canceller Canceller) *Service {
	return &Service{
		tripRepo:      tripRepo,
		telemetryRepo: telemetryRepo,
		canceller:     canceller,
	}
}

func (s *Service) ListTrips(ctx context.Context, userID string, page *PageRequest) (*TripListResponse, error) {
	if err := utils.ValidateStruct(page); err != nil {
		return nil, appErrors.NewAppError(appErrors.CodeValidation, "Invalid pagination", err)
	}
	page.normalize()

	trips, err := s.tripRepo.ListByUser(ctx, userID, page.Limit, page.Offset)
	if err != nil {
		return nil, err
	}

	resp := &TripListResponse{Trips: make([]TripResponse, 0, len(trips)), Limit: page.Limit, Offset: page.Offset}
	for _, t := range trips {
		resp.Trips = append(resp.Trips, *ToTripResponse(t))
	}
	return resp, nil
}

func (s *Service) GetTrip(ctx context.Context, userID string, tripID uuid.UUID) (*TripResponse, error) {
	t, err := s.ownedTrip(ctx, userID, tripID)
	if err != nil {
		return nil, err
	}
	return ToTripResponse(t), nil
}

func (s *Service) GetRoute(ctx context.Context, userID string, tripID uuid.UUID) ([]RoutePointResponse, error) {
	if _, err := s.ownedTrip(ctx, userID, tripID); err != nil {
		return nil, err
	}

	points, err := s.telemetryRepo.Route(ctx, tripID)
	if err != nil {
		return nil, err
	}

	route := make([]RoutePointResponse, 0, len(points))
	for _, p := range points {
		route = append(route, RoutePointResponse{Lat: p.Lat, Lng: p.Lng, Time: p.Time})
	}
	return route, nil
}

func (s *Service) GetMetrics(ctx context.Context, userID string, tripID uuid.UUID, page *PageRequest) (*MetricsResponse, error) {
	if err := utils.ValidateStruct(page); err != nil {
		return nil, appErrors.NewAppError(appErrors.CodeValidation, "Invalid pagination", err)
	}
	page.normalize()

	if _, err := s.ownedTrip(ctx, userID, tripID); err != nil {
		return nil, err
	}

	samples, err := s.telemetryRepo.ListByTrip(ctx, tripID, page.Limit, page.Offset)
	if err != nil {
		return nil, err
	}

	resp := &MetricsResponse{TripID: tripID, Samples: make([]SampleResponse, 0, len(samples)), Limit: page.Limit, Offset: page.Offset}
	for _, sample := range samples {
		resp.Samples = append(resp.Samples, toSampleResponse(sample))
	}
	return resp, nil
}

// CancelTrip cancels one of the caller's recording trips. The durable write
// happens asynchronously; the response reflects the accepted request.
func (s *Service) CancelTrip(ctx context.Context, userID string, tripID uuid.UUID) (*TripResponse, error) {
	t, err := s.ownedTrip(ctx, userID, tripID)
	if err != nil {
		return nil, err
	}
	if t.Status.IsTerminal() {
		return nil, appErrors.NewAppError(appErrors.CodeConflict, "Trip is not recording", domainTrip.ErrTripNotRecording)
	}

	if err := s.canceller.CancelTrip(t.ID, t.DeviceID, t.UserID); err != nil {
		return nil, appErrors.NewAppError(appErrors.CodeUnavailable, "Cancel could not be queued", err)
	}

	logger.Info("Trip cancel requested",
		zap.String("trip_id", t.ID.String()),
		zap.String("device_id", t.DeviceID),
		zap.String("user_id", userID),
		zap.String("event", "trip_cancel_requested"),
	)

	t.Status = domainTrip.StatusCancelled
	return ToTripResponse(t), nil
}

// ownedTrip loads a trip and refuses trips that belong to another user.
func (s *Service) ownedTrip(ctx context.Context, userID string, tripID uuid.UUID) (*domainTrip.Trip, error) {
	t, err := s.tripRepo.GetByID(ctx, tripID)
	if errors.Is(err, domainTrip.ErrTripNotFound) {
		return nil, appErrors.NewAppError(appErrors.CodeNotFound, "Trip not found", err)
	}
	if err != nil {
		return nil, err
	}
	if t.UserID == nil || *t.UserID != userID {
		return nil, appErrors.NewAppError(appErrors.CodeForbidden, "Not authorized to view this trip", nil)
	}
	return t, nil
}
