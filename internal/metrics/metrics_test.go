package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"smart-helmet-backend/internal/ingestion"
)

func TestHandlerExposesPipelineStats(t *testing.T) {
	stats := ingestion.Stats{QueueDepth: 7, ActiveTrips: 2}
	stats.FramesReceived = 42
	stats.EnvelopesFailed = 3

	m := New(func() ingestion.Stats { return stats }, func() int { return 5 })

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)

	for _, want := range []string{
		"helmet_frames_received_total 42",
		"helmet_envelopes_failed_total 3",
		"helmet_queue_depth 7",
		"helmet_active_trips 2",
		"helmet_viewer_connections 5",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestMiddlewareCountsErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New(func() ingestion.Stats { return ingestion.Stats{} }, func() int { return 0 })

	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/bad", func(c *gin.Context) { c.Status(http.StatusBadRequest) })

	for _, path := range []string{"/ok", "/bad", "/bad"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	if !strings.Contains(body, "helmet_http_requests_total 3") || !strings.Contains(body, "helmet_http_errors_total 2") {
		t.Fatalf("unexpected metrics:\n%s", body)
	}
}
