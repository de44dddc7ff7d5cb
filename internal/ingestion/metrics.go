package ingestion

import (
	"sync"
	"time"
)

// IngestMetrics tracks ingestion performance
type IngestMetrics struct {
	FramesReceived     int64         `json:"frames_received"`
	FramesRejected     int64         `json:"frames_rejected"`
	EnvelopesEnqueued  int64         `json:"envelopes_enqueued"`
	EnvelopesDropped   int64         `json:"envelopes_dropped"`
	EnvelopesPersisted int64         `json:"envelopes_persisted"`
	EnvelopesFailed    int64         `json:"envelopes_failed"`
	EnvelopesSkipped   int64         `json:"envelopes_skipped"`
	LifecycleAnomalies int64         `json:"lifecycle_anomalies"`
	TripsReplaced      int64         `json:"trips_replaced"`
	TripsAbandoned     int64         `json:"trips_abandoned"`
	Broadcasts         int64         `json:"broadcasts"`
	BroadcastFailures  int64         `json:"broadcast_failures"`
	OwnerCacheHits     int64         `json:"owner_cache_hits"`
	OwnerCacheMisses   int64         `json:"owner_cache_misses"`
	EventsPublished    int64         `json:"events_published"`
	EventsFailed       int64         `json:"events_failed"`
	AlertsRaised       int64         `json:"alerts_raised"`
	AlertsFailed       int64         `json:"alerts_failed"`
	LastPersistedAt    time.Time     `json:"last_persisted_at"`
	AverageWriteTime   time.Duration `json:"average_write_time_ns"`
}

// MetricsTracker provides a goroutine-safe wrapper around IngestMetrics.
type MetricsTracker struct {
	mu      sync.RWMutex
	metrics IngestMetrics
}

// NewMetricsTracker builds a new tracker with zeroed metrics.
func NewMetricsTracker() *MetricsTracker {
	return &MetricsTracker{}
}

// Update applies a mutation in a thread-safe way. A nil tracker ignores updates.
func (t *MetricsTracker) Update(fn func(*IngestMetrics)) {
	if t == nil || fn == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	fn(&t.metrics)
}

// Snapshot returns a copy of the current metrics.
func (t *MetricsTracker) Snapshot() IngestMetrics {
	if t == nil {
		return IngestMetrics{}
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.metrics
}

func (t *MetricsTracker) recordWrite(elapsed time.Duration) {
	t.Update(func(m *IngestMetrics) {
		m.EnvelopesPersisted++
		m.LastPersistedAt = time.Now()
		if m.AverageWriteTime == 0 {
			m.AverageWriteTime = elapsed
		} else {
			m.AverageWriteTime = (m.AverageWriteTime + elapsed) / 2
		}
	})
}
