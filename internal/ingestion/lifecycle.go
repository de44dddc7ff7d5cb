package ingestion

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"smart-helmet-backend/internal/domain/trip"
)

var (
	ErrNoActiveTrip = errors.New("no recording trip for device")
	ErrTripReplaced = errors.New("previous recording trip cancelled by new trip_start")
)

// ActiveTrip is the in-memory view of a device's recording trip.
type ActiveTrip struct {
	ID           uuid.UUID
	DeviceID     string
	UserID       *string
	StartedAt    time.Time
	LastPosition *trip.Position
}

// Decision is what the lifecycle concluded for one message.
type Decision struct {
	TripID       *uuid.UUID
	Replaced     *ActiveTrip
	LastPosition *trip.Position
	// Anomaly is non-nil for inconsistencies that are reported but not fatal.
	Anomaly error
}

// CommitFunc hands a decision to the next stage. State changes only when it returns nil.
type CommitFunc func(Decision) error

// Manager owns the per-device table of recording trips.
//
// Every operation runs its commit callback while holding the table lock, so
// the order in which decisions are committed is the order in which they were
// made. Callers pass a non-blocking enqueue as the commit.
type Manager struct {
	mu     sync.Mutex
	active map[string]*ActiveTrip
	byTrip map[uuid.UUID]string
	newID  func() uuid.UUID
}

func NewManager() *Manager {
	return &Manager{
		active: make(map[string]*ActiveTrip),
		byTrip: make(map[uuid.UUID]string),
		newID:  uuid.New,
	}
}

// StartTrip opens a trip for the device. A trip already recording for the
// device is cancelled and reported through Decision.Replaced.
func (m *Manager) StartTrip(deviceID string, userID *string, at time.Time, start *trip.Position, commit CommitFunc) (Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.newID()
	d := Decision{TripID: &id}
	if prev, ok := m.active[deviceID]; ok {
		replaced := *prev
		d.Replaced = &replaced
		d.Anomaly = ErrTripReplaced
	}

	if err := commit(d); err != nil {
		return d, err
	}

	if d.Replaced != nil {
		delete(m.byTrip, d.Replaced.ID)
	}
	m.active[deviceID] = &ActiveTrip{
		ID:           id,
		DeviceID:     deviceID,
		UserID:       userID,
		StartedAt:    at,
		LastPosition: start,
	}
	m.byTrip[id] = deviceID
	return d, nil
}

// EndTrip closes the device's recording trip. Without one the decision
// carries ErrNoActiveTrip and nothing changes.
func (m *Manager) EndTrip(deviceID string, commit CommitFunc) (Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var d Decision
	cur, ok := m.active[deviceID]
	if ok {
		id := cur.ID
		d.TripID = &id
		d.LastPosition = cur.LastPosition
	} else {
		d.Anomaly = ErrNoActiveTrip
	}

	if err := commit(d); err != nil {
		return d, err
	}

	if ok {
		delete(m.active, deviceID)
		delete(m.byTrip, cur.ID)
	}
	return d, nil
}

// AttributeTelemetry resolves the trip a sample belongs to, if any, and
// remembers its position as the trip's latest fix.
func (m *Manager) AttributeTelemetry(deviceID string, pos *trip.Position, commit CommitFunc) (Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var d Decision
	cur, ok := m.active[deviceID]
	if ok {
		id := cur.ID
		d.TripID = &id
	}

	if err := commit(d); err != nil {
		return d, err
	}

	if ok && pos != nil {
		cur.LastPosition = pos
	}
	return d, nil
}

// CancelTrip frees the device slot held by tripID. The commit runs even when
// the trip is not in the table so a durable cancel can still be issued.
func (m *Manager) CancelTrip(tripID uuid.UUID, commit CommitFunc) (Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d := Decision{TripID: &tripID}
	deviceID, ok := m.byTrip[tripID]
	if !ok {
		d.Anomaly = ErrNoActiveTrip
	}

	if err := commit(d); err != nil {
		return d, err
	}

	if ok {
		delete(m.active, deviceID)
		delete(m.byTrip, tripID)
	}
	return d, nil
}

// Abandon frees the device slot held by tripID without queuing anything. The
// worker calls it when the trip never made it to storage, so later samples
// stop pointing at a missing row. It reports whether the slot was freed.
func (m *Manager) Abandon(tripID uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	deviceID, ok := m.byTrip[tripID]
	if !ok {
		return false
	}
	delete(m.byTrip, tripID)
	if cur, held := m.active[deviceID]; held && cur.ID == tripID {
		delete(m.active, deviceID)
	}
	return true
}

// Active returns a copy of the device's recording trip.
func (m *Manager) Active(deviceID string) (ActiveTrip, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.active[deviceID]
	if !ok {
		return ActiveTrip{}, false
	}
	return *cur, true
}

func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

// Restore loads recording trips from storage into an empty table. When a
// device has more than one, the newest wins and the others are returned as stale.
func (m *Manager) Restore(recording []*trip.Trip) (stale []*trip.Trip) {
	sorted := make([]*trip.Trip, 0, len(recording))
	for _, t := range recording {
		if t != nil && t.Status == trip.StatusRecording {
			sorted = append(sorted, t)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].StartTime.After(sorted[j].StartTime)
	})

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, t := range sorted {
		if _, taken := m.active[t.DeviceID]; taken {
			stale = append(stale, t)
			continue
		}
		m.active[t.DeviceID] = &ActiveTrip{
			ID:           t.ID,
			DeviceID:     t.DeviceID,
			UserID:       t.UserID,
			StartedAt:    t.StartTime,
			LastPosition: t.StartPosition,
		}
		m.byTrip[t.ID] = t.DeviceID
	}
	return stale
}
