package metrics

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"smart-helmet-backend/internal/ingestion"
)

// Metrics exposes the ingestion pipeline and HTTP traffic to Prometheus.
type Metrics struct {
	registry      *prometheus.Registry
	requestsTotal prometheus.Counter
	errorsTotal   prometheus.Counter
}

// New registers collectors that read stats and viewers on every scrape.
func New(stats func() ingestion.Stats, viewers func() int) *Metrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "helmet_http_requests_total",
		Help: "Total number of HTTP requests received",
	})
	errorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "helmet_http_errors_total",
		Help: "Total number of HTTP responses with error status (4xx or 5xx)",
	})

	counter := func(name, help string, read func(ingestion.Stats) int64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{Name: name, Help: help}, func() float64 {
			return float64(read(stats()))
		})
	}
	gauge := func(name, help string, read func() float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{Name: name, Help: help}, read)
	}

	registry.MustRegister(
		requestsTotal,
		errorsTotal,
		counter("helmet_frames_received_total", "Device frames received",
			func(s ingestion.Stats) int64 { return s.FramesReceived }),
		counter("helmet_frames_rejected_total", "Device frames answered with an error",
			func(s ingestion.Stats) int64 { return s.FramesRejected }),
		counter("helmet_envelopes_enqueued_total", "Envelopes accepted by the persistence queue",
			func(s ingestion.Stats) int64 { return s.EnvelopesEnqueued }),
		counter("helmet_envelopes_dropped_total", "Envelopes refused by a full or closed queue",
			func(s ingestion.Stats) int64 { return s.EnvelopesDropped }),
		counter("helmet_envelopes_persisted_total", "Envelopes durably written",
			func(s ingestion.Stats) int64 { return s.EnvelopesPersisted }),
		counter("helmet_envelopes_failed_total", "Envelopes whose write failed",
			func(s ingestion.Stats) int64 { return s.EnvelopesFailed }),
		counter("helmet_envelopes_skipped_total", "Envelopes rejected by the trip lifecycle",
			func(s ingestion.Stats) int64 { return s.EnvelopesSkipped }),
		counter("helmet_lifecycle_anomalies_total", "Trip lifecycle inconsistencies",
			func(s ingestion.Stats) int64 { return s.LifecycleAnomalies }),
		counter("helmet_trips_replaced_total", "Recording trips cancelled by a new trip_start",
			func(s ingestion.Stats) int64 { return s.TripsReplaced }),
		counter("helmet_trips_abandoned_total", "Trips released because their row could not be stored",
			func(s ingestion.Stats) int64 { return s.TripsAbandoned }),
		counter("helmet_broadcasts_total", "Broadcasts to viewers",
			func(s ingestion.Stats) int64 { return s.Broadcasts }),
		counter("helmet_broadcast_failures_total", "Viewer sends that failed",
			func(s ingestion.Stats) int64 { return s.BroadcastFailures }),
		counter("helmet_trip_events_published_total", "Trip events delivered to the event bus",
			func(s ingestion.Stats) int64 { return s.EventsPublished }),
		counter("helmet_alerts_raised_total", "Safety alerts stored",
			func(s ingestion.Stats) int64 { return s.AlertsRaised }),
		gauge("helmet_queue_depth", "Envelopes waiting for the worker",
			func() float64 { return float64(stats().QueueDepth) }),
		gauge("helmet_active_trips", "Trips currently recording",
			func() float64 { return float64(stats().ActiveTrips) }),
		gauge("helmet_viewer_connections", "Connected dashboard viewers",
			func() float64 { return float64(viewers()) }),
		gauge("helmet_write_seconds_avg", "Running average of envelope write time",
			func() float64 { return stats().AverageWriteTime.Seconds() }),
	)

	return &Metrics{
		registry:      registry,
		requestsTotal: requestsTotal,
		errorsTotal:   errorsTotal,
	}
}

// Middleware counts requests and error responses.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		m.requestsTotal.Inc()
		if c.Writer.Status() >= http.StatusBadRequest {
			m.errorsTotal.Inc()
		}
	}
}

// Handler returns an http.Handler that serves Prometheus metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
