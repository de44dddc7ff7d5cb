package ingestion

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"smart-helmet-backend/internal/domain/alert"
	"smart-helmet-backend/internal/domain/telemetry"
	"smart-helmet-backend/internal/domain/trip"
	"smart-helmet-backend/internal/logger"
)

const (
	defaultWriteTimeout   = 10 * time.Second
	defaultPublishTimeout = 5 * time.Second
)

// Worker is the single consumer of the persistence queue. It applies
// envelopes to the Store strictly in queue order.
type Worker struct {
	queue        *Queue
	store        Store
	publisher    EventPublisher
	alerts       *AlertEngine
	alertSink    AlertSink
	releaser     TripReleaser
	metrics      *MetricsTracker
	writeTimeout time.Duration

	ctx     context.Context
	cancel  context.CancelFunc
	started atomic.Bool
	done    chan struct{}
}

type WorkerOption func(*Worker)

// WithPublisher announces trip transitions after they are persisted.
func WithPublisher(p EventPublisher) WorkerOption {
	return func(w *Worker) { w.publisher = p }
}

// TripReleaser frees the lifecycle slot of a trip that could not be stored.
type TripReleaser interface {
	Abandon(tripID uuid.UUID) bool
}

// WithTripReleaser lets the worker roll back lifecycle state for trips whose
// row could not be written.
func WithTripReleaser(r TripReleaser) WorkerOption {
	return func(w *Worker) { w.releaser = r }
}

// AlertSink stores raised alerts.
type AlertSink interface {
	Create(ctx context.Context, a *alert.Alert) error
}

// WithAlerts checks every persisted sample against engine and saves what it raises to sink.
func WithAlerts(engine *AlertEngine, sink AlertSink) WorkerOption {
	return func(w *Worker) {
		if engine != nil && sink != nil {
			w.alerts = engine
			w.alertSink = sink
		}
	}
}

func WithWriteTimeout(d time.Duration) WorkerOption {
	return func(w *Worker) {
		if d > 0 {
			w.writeTimeout = d
		}
	}
}

func NewWorker(queue *Queue, store Store, metrics *MetricsTracker, opts ...WorkerOption) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		queue:        queue,
		store:        store,
		metrics:      metrics,
		writeTimeout: defaultWriteTimeout,
		ctx:          ctx,
		cancel:       cancel,
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run consumes envelopes until the queue is closed and empty. It returns
// immediately if the worker is already running.
func (w *Worker) Run() {
	if !w.started.CompareAndSwap(false, true) {
		return
	}
	w.run()
}

func (w *Worker) run() {
	defer close(w.done)

	logger.Info("persistence worker started", zap.Int("queue_capacity", w.queue.Cap()))
	for env := range w.queue.items() {
		w.handle(env)
	}
	logger.Info("persistence worker stopped")
}

// Stop closes the queue to new envelopes and waits for the backlog to drain.
// If ctx expires first, in-flight and remaining writes are abandoned and
// ctx.Err() is returned once the worker has exited.
func (w *Worker) Stop(ctx context.Context) error {
	w.queue.Close()
	if w.started.CompareAndSwap(false, true) {
		go w.run()
	}

	select {
	case <-w.done:
		w.cancel()
		return nil
	case <-ctx.Done():
		logger.Warn("persistence worker drain timed out, abandoning backlog",
			zap.Int("remaining", w.queue.Len()))
		w.cancel()
		<-w.done
		return ctx.Err()
	}
}

// Done is closed once the worker has exited.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

func (w *Worker) handle(env *Envelope) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic while persisting envelope", append(envelopeFields(env), zap.Any("panic", r))...)
			w.metrics.Update(func(m *IngestMetrics) { m.EnvelopesFailed++ })
		}
	}()

	if env.Unapplied != nil {
		logger.Warn("skipping envelope rejected by trip lifecycle",
			append(envelopeFields(env), zap.Error(env.Unapplied))...)
		w.metrics.Update(func(m *IngestMetrics) { m.EnvelopesSkipped++ })
		return
	}

	if w.ctx.Err() != nil {
		logger.Warn("dropping envelope after shutdown deadline", envelopeFields(env)...)
		w.metrics.Update(func(m *IngestMetrics) { m.EnvelopesDropped++ })
		return
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(w.ctx, w.writeTimeout)
	defer cancel()

	events, err := w.apply(ctx, env)
	if err != nil {
		logger.Error("failed to persist envelope", append(envelopeFields(env), zap.Error(err))...)
		w.metrics.Update(func(m *IngestMetrics) { m.EnvelopesFailed++ })
		return
	}
	w.metrics.recordWrite(time.Since(start))

	for _, event := range events {
		w.publish(event)
	}
}

func (w *Worker) apply(ctx context.Context, env *Envelope) ([]TripEvent, error) {
	switch env.Kind {
	case KindTelemetry:
		if env.Telemetry == nil {
			return nil, errors.New("telemetry envelope without payload")
		}
		sample := sampleFromMessage(env)
		err := w.store.AppendTelemetry(ctx, sample)
		if errors.Is(err, telemetry.ErrUnknownTrip) && sample.TripID != nil {
			logger.Warn("trip missing from storage, keeping sample without trip",
				append(envelopeFields(env), zap.Error(err))...)
			w.abandon(*sample.TripID)
			sample.TripID = nil
			err = w.store.AppendTelemetry(ctx, sample)
		}
		if err != nil {
			return nil, err
		}
		return w.raiseAlerts(ctx, env, sample), nil
	case KindTripStart:
		return w.startTrip(ctx, env)
	case KindTripEnd:
		return w.endTrip(ctx, env)
	case KindTripCancel:
		return w.cancelTrip(ctx, env)
	default:
		return nil, fmt.Errorf("unknown envelope kind %q", env.Kind)
	}
}

func (w *Worker) startTrip(ctx context.Context, env *Envelope) ([]TripEvent, error) {
	if env.TripID == nil {
		return nil, errors.New("trip_start envelope without trip id")
	}

	var events []TripEvent
	if env.ReplacesTripID != nil {
		if err := w.store.CancelTrip(ctx, *env.ReplacesTripID, env.EventTime); err != nil {
			logger.Error("failed to cancel replaced trip",
				append(envelopeFields(env), zap.Stringer("replaced_trip_id", env.ReplacesTripID), zap.Error(err))...)
			w.metrics.Update(func(m *IngestMetrics) { m.EnvelopesFailed++ })
		} else {
			events = append(events, TripEvent{
				Type:       EventTripCancelled,
				TripID:     env.ReplacesTripID.String(),
				DeviceID:   env.DeviceID,
				UserID:     env.UserID,
				OccurredAt: env.EventTime,
			})
		}
	}

	t := &trip.Trip{
		ID:        *env.TripID,
		DeviceID:  env.DeviceID,
		UserID:    env.UserID,
		Status:    trip.StatusRecording,
		StartTime: env.EventTime,
	}
	if env.TripStart != nil {
		t.StartPosition = env.TripStart.StartPosition()
	}
	if err := w.store.CreateTrip(ctx, t); err != nil {
		w.abandon(t.ID)
		return nil, fmt.Errorf("create trip: %w", err)
	}

	return append(events, TripEvent{
		Type:       EventTripStarted,
		TripID:     t.ID.String(),
		DeviceID:   t.DeviceID,
		UserID:     t.UserID,
		OccurredAt: t.StartTime,
		Position:   t.StartPosition,
	}), nil
}

func (w *Worker) endTrip(ctx context.Context, env *Envelope) ([]TripEvent, error) {
	if env.TripID == nil {
		return nil, errors.New("trip_end envelope without trip id")
	}
	tripID := *env.TripID

	params := trip.CloseParams{EndTime: env.EventTime}
	if env.TripEnd != nil {
		params.EndPosition = env.TripEnd.EndPosition()
		params.CrashDetected = env.TripEnd.CrashDetected
	}
	if params.EndPosition == nil {
		params.EndPosition = env.LastPosition
	}
	if params.EndPosition == nil {
		pos, err := w.store.LastKnownPosition(ctx, tripID)
		if err != nil {
			logger.Warn("could not load last known position", append(envelopeFields(env), zap.Error(err))...)
		}
		params.EndPosition = pos
	}

	if err := w.store.CloseTrip(ctx, tripID, params); err != nil {
		return nil, fmt.Errorf("close trip: %w", err)
	}

	if err := w.store.SummarizeTrip(ctx, tripID); err != nil {
		logger.Warn("failed to summarize trip", append(envelopeFields(env), zap.Error(err))...)
	}

	return []TripEvent{{
		Type:       EventTripCompleted,
		TripID:     tripID.String(),
		DeviceID:   env.DeviceID,
		UserID:     env.UserID,
		OccurredAt: params.EndTime,
		Position:   params.EndPosition,
		Crash:      params.CrashDetected,
	}}, nil
}

func (w *Worker) cancelTrip(ctx context.Context, env *Envelope) ([]TripEvent, error) {
	if env.TripID == nil {
		return nil, errors.New("trip_cancel envelope without trip id")
	}
	err := w.store.CancelTrip(ctx, *env.TripID, env.EventTime)
	if errors.Is(err, trip.ErrTripNotRecording) {
		// closed by its own trip_end before the cancel reached storage
		logger.Warn("cancel ignored, trip already terminal", envelopeFields(env)...)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cancel trip: %w", err)
	}
	return []TripEvent{{
		Type:       EventTripCancelled,
		TripID:     env.TripID.String(),
		DeviceID:   env.DeviceID,
		UserID:     env.UserID,
		OccurredAt: env.EventTime,
	}}, nil
}

// raiseAlerts stores the alerts a persisted sample triggers. A failed alert
// write never fails the sample itself.
func (w *Worker) raiseAlerts(ctx context.Context, env *Envelope, sample *telemetry.Sample) []TripEvent {
	if w.alerts == nil {
		return nil
	}

	var events []TripEvent
	for _, a := range w.alerts.Check(sample, env.UserID) {
		if err := w.alertSink.Create(ctx, a); err != nil {
			logger.Error("failed to save alert",
				append(envelopeFields(env), zap.String("alert_type", string(a.Type)), zap.Error(err))...)
			w.metrics.Update(func(m *IngestMetrics) { m.AlertsFailed++ })
			continue
		}
		logger.Warn("alert raised", append(envelopeFields(env),
			zap.String("alert_id", a.ID.String()),
			zap.String("alert_type", string(a.Type)),
			zap.String("severity", string(a.Severity)),
			zap.String("message", a.Message))...)
		w.metrics.Update(func(m *IngestMetrics) { m.AlertsRaised++ })

		event := TripEvent{
			Type:       EventAlertRaised,
			DeviceID:   a.DeviceID,
			UserID:     a.UserID,
			OccurredAt: a.Time,
			Alert: &AlertNotice{
				ID:       a.ID.String(),
				Type:     a.Type,
				Severity: a.Severity,
				Message:  a.Message,
			},
		}
		if a.TripID != nil {
			event.TripID = a.TripID.String()
		}
		events = append(events, event)
	}
	return events
}

// abandon releases tripID's lifecycle slot so the device's next samples are
// stored without a trip instead of failing against a missing row.
func (w *Worker) abandon(tripID uuid.UUID) {
	if w.releaser == nil {
		return
	}
	if w.releaser.Abandon(tripID) {
		logger.Warn("released recording slot of unstored trip", zap.String("trip_id", tripID.String()))
		w.metrics.Update(func(m *IngestMetrics) { m.TripsAbandoned++ })
	}
}

func (w *Worker) publish(event TripEvent) {
	if w.publisher == nil {
		return
	}

	ctx, cancel := context.WithTimeout(w.ctx, defaultPublishTimeout)
	defer cancel()

	if err := w.publisher.Publish(ctx, event); err != nil {
		logger.Warn("failed to publish trip event",
			zap.String("event", string(event.Type)),
			zap.String("trip_id", event.TripID),
			zap.Error(err))
		w.metrics.Update(func(m *IngestMetrics) { m.EventsFailed++ })
		return
	}
	w.metrics.Update(func(m *IngestMetrics) { m.EventsPublished++ })
}

func envelopeFields(env *Envelope) []zap.Field {
	fields := []zap.Field{
		zap.String("envelope", string(env.Kind)),
		zap.String("device_id", env.DeviceID),
	}
	if id := env.tripIDString(); id != "" {
		fields = append(fields, zap.String("trip_id", id))
	}
	if env.UserID != nil {
		fields = append(fields, zap.String("user_id", *env.UserID))
	}
	return fields
}
