package ingestion

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"smart-helmet-backend/internal/domain/trip"
	"smart-helmet-backend/internal/logger"
)

const (
	ackSaved      = "✅ saved"
	errorPrefix   = "❌ error: "
	warningPrefix = "; warning: "
)

var ErrRateLimited = errors.New("rate limit exceeded")

// Reply is the single frame sent back for each inbound device frame.
type Reply struct {
	OK      bool
	Warning string
	Reason  string
}

func (r Reply) String() string {
	if !r.OK {
		return errorPrefix + r.Reason
	}
	if r.Warning != "" {
		return ackSaved + warningPrefix + r.Warning
	}
	return ackSaved
}

func (r Reply) Bytes() []byte { return []byte(r.String()) }

// Broadcaster fans a payload out to a user's viewers.
type Broadcaster interface {
	Broadcast(userID string, payload []byte) int
}

// Stats is a point-in-time view of the pipeline.
type Stats struct {
	IngestMetrics
	QueueDepth    int `json:"queue_depth"`
	QueueCapacity int `json:"queue_capacity"`
	ActiveTrips   int `json:"active_trips"`
}

// Service turns device frames into lifecycle decisions, queued writes and
// live broadcasts. It is shared by every transport.
type Service struct {
	queue   *Queue
	trips   *Manager
	owners  *Resolver
	viewers Broadcaster
	metrics *MetricsTracker
	now     func() time.Time
}

func NewService(queue *Queue, trips *Manager, owners *Resolver, viewers Broadcaster, metrics *MetricsTracker) *Service {
	return &Service{
		queue:   queue,
		trips:   trips,
		owners:  owners,
		viewers: viewers,
		metrics: metrics,
		now:     time.Now,
	}
}

// HandleFrame processes one raw device frame. It never panics on bad input;
// every problem is reported through the returned Reply.
func (s *Service) HandleFrame(ctx context.Context, raw []byte) Reply {
	receivedAt := s.now().UTC()
	s.metrics.Update(func(m *IngestMetrics) { m.FramesReceived++ })

	frame, err := ParseFrame(raw)
	if err != nil {
		return s.Reject(err)
	}

	owner, hasOwner, err := s.owners.Resolve(ctx, frame.DeviceID)
	if err != nil {
		logger.Warn("owner lookup failed, continuing without owner",
			zap.String("device_id", frame.DeviceID), zap.Error(err))
	}
	var userID *string
	if hasOwner {
		userID = &owner
	}

	env := &Envelope{
		Kind:       Kind(frame.Type),
		DeviceID:   frame.DeviceID,
		UserID:     userID,
		ReceivedAt: receivedAt,
		EventTime:  frame.Time(receivedAt),
		Telemetry:  frame.Telemetry,
		TripStart:  frame.TripStart,
		TripEnd:    frame.TripEnd,
		Raw:        append([]byte(nil), raw...),
	}

	decision, err := s.admit(frame, env)
	if err != nil {
		s.metrics.Update(func(m *IngestMetrics) { m.EnvelopesDropped++ })
		logger.Warn("frame not queued", zap.String("device_id", frame.DeviceID),
			zap.String("type", string(frame.Type)), zap.Error(err))
		return s.Reject(err)
	}
	s.metrics.Update(func(m *IngestMetrics) { m.EnvelopesEnqueued++ })

	reply := Reply{OK: true}
	if decision.Anomaly != nil {
		s.reportAnomaly(env, decision)
		reply.Warning = decision.Anomaly.Error()
	}

	if hasOwner {
		s.viewers.Broadcast(owner, raw)
	}
	return reply
}

func (s *Service) admit(frame *Frame, env *Envelope) (Decision, error) {
	commit := func(d Decision) error {
		env.TripID = d.TripID
		env.LastPosition = d.LastPosition
		if d.Replaced != nil {
			replaced := d.Replaced.ID
			env.ReplacesTripID = &replaced
		}
		if errors.Is(d.Anomaly, ErrNoActiveTrip) {
			env.Unapplied = d.Anomaly
		}
		return s.queue.Enqueue(env)
	}

	switch frame.Type {
	case TypeTripStart:
		return s.trips.StartTrip(frame.DeviceID, env.UserID, env.EventTime, frame.TripStart.StartPosition(), commit)
	case TypeTripEnd:
		return s.trips.EndTrip(frame.DeviceID, commit)
	default:
		return s.trips.AttributeTelemetry(frame.DeviceID, frame.Telemetry.GPS.Position(), commit)
	}
}

func (s *Service) reportAnomaly(env *Envelope, d Decision) {
	fields := append(envelopeFields(env), zap.Error(d.Anomaly))
	if d.Replaced != nil {
		fields = append(fields, zap.String("replaced_trip_id", d.Replaced.ID.String()))
	}
	logger.Warn("trip lifecycle anomaly", fields...)

	s.metrics.Update(func(m *IngestMetrics) {
		m.LifecycleAnomalies++
		if d.Replaced != nil {
			m.TripsReplaced++
		}
	})
}

// Reject builds the error reply for err and counts the rejected frame.
func (s *Service) Reject(err error) Reply {
	s.metrics.Update(func(m *IngestMetrics) { m.FramesRejected++ })
	return Reply{Reason: reason(err)}
}

func reason(err error) string {
	switch {
	case errors.Is(err, ErrQueueFull):
		return "server busy: " + err.Error()
	case errors.Is(err, ErrQueueClosed):
		return "server shutting down"
	default:
		return err.Error()
	}
}

// CancelTrip frees the device's recording slot if tripID holds it and queues
// a durable cancel.
func (s *Service) CancelTrip(tripID uuid.UUID, deviceID string, userID *string) error {
	now := s.now().UTC()
	env := &Envelope{
		Kind:       KindTripCancel,
		DeviceID:   deviceID,
		UserID:     userID,
		ReceivedAt: now,
		EventTime:  now,
	}

	_, err := s.trips.CancelTrip(tripID, func(d Decision) error {
		env.TripID = d.TripID
		return s.queue.Enqueue(env)
	})
	if err != nil {
		s.metrics.Update(func(m *IngestMetrics) { m.EnvelopesDropped++ })
		return err
	}
	s.metrics.Update(func(m *IngestMetrics) { m.EnvelopesEnqueued++ })
	logger.Info("trip cancel queued", envelopeFields(env)...)
	return nil
}

// Restore seeds the lifecycle table from trips still recording in storage and
// queues cancels for duplicates left by an earlier crash.
func (s *Service) Restore(recording []*trip.Trip) int {
	stale := s.trips.Restore(recording)
	for _, t := range stale {
		if err := s.CancelTrip(t.ID, t.DeviceID, t.UserID); err != nil {
			logger.Error("failed to queue cancel for stale trip",
				zap.String("trip_id", t.ID.String()), zap.String("device_id", t.DeviceID), zap.Error(err))
		}
	}
	logger.Info("restored recording trips", zap.Int("active", s.trips.Count()), zap.Int("stale", len(stale)))
	return len(stale)
}

func (s *Service) Stats() Stats {
	return Stats{
		IngestMetrics: s.metrics.Snapshot(),
		QueueDepth:    s.queue.Len(),
		QueueCapacity: s.queue.Cap(),
		ActiveTrips:   s.trips.Count(),
	}
}
