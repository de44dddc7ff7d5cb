package ingestion

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"smart-helmet-backend/internal/domain/telemetry"
	"smart-helmet-backend/internal/domain/trip"
)

type fakeStore struct {
	mu sync.Mutex

	created    []*trip.Trip
	closed     map[uuid.UUID]trip.CloseParams
	cancelled  []uuid.UUID
	samples    []*telemetry.Sample
	summarized []uuid.UUID
	order      []string

	lastKnown   map[uuid.UUID]*trip.Position
	failAppend  func(*telemetry.Sample) error
	failClose   error
	writeDelay  time.Duration
	lastKnownFn int

	// failCreate fails the next CreateTrip only.
	failCreate error
	// enforceTripFK rejects samples whose trip was never created.
	enforceTripFK bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		closed:    make(map[uuid.UUID]trip.CloseParams),
		lastKnown: make(map[uuid.UUID]*trip.Position),
	}
}

func (s *fakeStore) CreateTrip(_ context.Context, t *trip.Trip) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failCreate; err != nil {
		s.failCreate = nil
		return err
	}
	copied := *t
	s.created = append(s.created, &copied)
	s.order = append(s.order, "create:"+t.ID.String())
	return nil
}

func (s *fakeStore) CloseTrip(_ context.Context, id uuid.UUID, params trip.CloseParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failClose != nil {
		return s.failClose
	}
	if _, ok := s.closed[id]; ok {
		return trip.ErrTripNotRecording
	}
	s.closed[id] = params
	s.order = append(s.order, "close:"+id.String())
	return nil
}

func (s *fakeStore) CancelTrip(_ context.Context, id uuid.UUID, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.closed[id]; ok {
		return trip.ErrTripNotRecording
	}
	s.cancelled = append(s.cancelled, id)
	s.order = append(s.order, "cancel:"+id.String())
	return nil
}

func (s *fakeStore) AppendTelemetry(ctx context.Context, sample *telemetry.Sample) error {
	if s.writeDelay > 0 {
		select {
		case <-time.After(s.writeDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAppend != nil {
		if err := s.failAppend(sample); err != nil {
			return err
		}
	}
	if s.enforceTripFK && sample.TripID != nil && !s.hasTrip(*sample.TripID) {
		return telemetry.ErrUnknownTrip
	}
	s.samples = append(s.samples, sample)
	s.order = append(s.order, "telemetry")
	return nil
}

func (s *fakeStore) hasTrip(id uuid.UUID) bool {
	for _, t := range s.created {
		if t.ID == id {
			return true
		}
	}
	return false
}

func (s *fakeStore) LastKnownPosition(_ context.Context, id uuid.UUID) (*trip.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastKnownFn++
	return s.lastKnown[id], nil
}

func (s *fakeStore) SummarizeTrip(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summarized = append(s.summarized, id)
	return nil
}

func (s *fakeStore) snapshotSamples() []*telemetry.Sample {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*telemetry.Sample(nil), s.samples...)
}

type fakeLookup struct {
	mu      sync.Mutex
	owners  map[string]string
	err     error
	calls   int
	release chan struct{}
	entered chan struct{}
}

func newFakeLookup(owners map[string]string) *fakeLookup {
	if owners == nil {
		owners = map[string]string{}
	}
	return &fakeLookup{owners: owners}
}

func (l *fakeLookup) LookupOwner(ctx context.Context, deviceID string) (string, bool, error) {
	l.mu.Lock()
	l.calls++
	entered, release := l.entered, l.release
	l.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return "", false, ctx.Err()
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return "", false, l.err
	}
	userID, ok := l.owners[deviceID]
	return userID, ok, nil
}

func (l *fakeLookup) callCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

func (l *fakeLookup) setOwner(deviceID, userID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.owners[deviceID] = userID
}

var errSendFailed = errors.New("send failed")

type fakeConn struct {
	mu     sync.Mutex
	sent   [][]byte
	fail   bool
	panics bool
	closed bool
}

func (c *fakeConn) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.panics {
		panic("boom")
	}
	if c.fail {
		return errSendFailed
	}
	c.sent = append(c.sent, append([]byte(nil), payload...))
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) received() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.sent...)
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type fakePublisher struct {
	mu     sync.Mutex
	events []TripEvent
}

func (p *fakePublisher) Publish(_ context.Context, event TripEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *fakePublisher) types() []EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

func ptr[T any](v T) *T { return &v }
