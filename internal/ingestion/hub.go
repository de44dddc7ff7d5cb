package ingestion

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"smart-helmet-backend/internal/logger"
)

// Conn is a live viewer connection.
type Conn interface {
	// Send queues payload for delivery. An error means the connection is unusable.
	Send(payload []byte) error
	Close() error
}

// Hub tracks viewer connections per user and fans payloads out to them.
type Hub struct {
	mu      sync.RWMutex
	conns   map[string]map[Conn]struct{}
	metrics *MetricsTracker
}

func NewHub(metrics *MetricsTracker) *Hub {
	return &Hub{
		conns:   make(map[string]map[Conn]struct{}),
		metrics: metrics,
	}
}

// Connect registers conn for userID. The caller has already authenticated the user.
func (h *Hub) Connect(conn Conn, userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.conns[userID]
	if !ok {
		set = make(map[Conn]struct{})
		h.conns[userID] = set
	}
	set[conn] = struct{}{}
	logger.Debug("viewer connected", zap.String("user_id", userID), zap.Int("user_connections", len(set)))
}

// Disconnect removes conn. Removing an unknown connection is a no-op.
func (h *Hub) Disconnect(conn Conn, userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(conn, userID)
}

func (h *Hub) removeLocked(conn Conn, userID string) bool {
	set, ok := h.conns[userID]
	if !ok {
		return false
	}
	if _, ok := set[conn]; !ok {
		return false
	}
	delete(set, conn)
	if len(set) == 0 {
		delete(h.conns, userID)
	}
	logger.Debug("viewer disconnected", zap.String("user_id", userID))
	return true
}

// Broadcast sends payload to every connection of userID and returns how many
// accepted it. A failing connection is closed and removed without affecting the others.
func (h *Hub) Broadcast(userID string, payload []byte) int {
	h.mu.RLock()
	set := h.conns[userID]
	targets := make([]Conn, 0, len(set))
	for conn := range set {
		targets = append(targets, conn)
	}
	h.mu.RUnlock()

	if len(targets) == 0 {
		return 0
	}

	var delivered int
	var failed []Conn
	for _, conn := range targets {
		if err := send(conn, payload); err != nil {
			logger.Warn("dropping viewer after failed send", zap.String("user_id", userID), zap.Error(err))
			failed = append(failed, conn)
			continue
		}
		delivered++
	}

	if len(failed) > 0 {
		h.mu.Lock()
		for _, conn := range failed {
			h.removeLocked(conn, userID)
		}
		h.mu.Unlock()
		for _, conn := range failed {
			_ = conn.Close()
		}
	}

	h.metrics.Update(func(m *IngestMetrics) {
		m.Broadcasts++
		m.BroadcastFailures += int64(len(failed))
	})
	return delivered
}

// send converts a panicking connection into an ordinary failure.
func send(conn Conn, payload []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("connection panicked during send: %v", r)
		}
	}()
	return conn.Send(payload)
}

// Count returns the number of connections registered for userID.
func (h *Hub) Count(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[userID])
}

// Total returns the number of registered connections across all users.
func (h *Hub) Total() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var n int
	for _, set := range h.conns {
		n += len(set)
	}
	return n
}
