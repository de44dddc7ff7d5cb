package ingestion

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"smart-helmet-backend/internal/domain/alert"
	"smart-helmet-backend/internal/domain/telemetry"
)

func TestAlertEngineThresholds(t *testing.T) {
	at := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	tests := []struct {
		name     string
		sample   telemetry.Sample
		want     []alert.Type
		severity alert.Severity
	}{
		{"normal", telemetry.Sample{HeartRate: ptr(80), SpO2: ptr(97)}, nil, ""},
		{"crash", telemetry.Sample{CrashFlag: ptr(true)}, []alert.Type{alert.TypeCrash}, alert.SeverityCritical},
		{"no crash", telemetry.Sample{CrashFlag: ptr(false)}, nil, ""},
		{"low heart rate", telemetry.Sample{HeartRate: ptr(35)}, []alert.Type{alert.TypeHeartRate}, alert.SeverityHigh},
		{"high heart rate", telemetry.Sample{HeartRate: ptr(190)}, []alert.Type{alert.TypeHeartRate}, alert.SeverityHigh},
		{"sensor not reading", telemetry.Sample{HeartRate: ptr(0), SpO2: ptr(0)}, nil, ""},
		{"low spo2", telemetry.Sample{SpO2: ptr(88)}, []alert.Type{alert.TypeSpO2}, alert.SeverityHigh},
		{"critical spo2", telemetry.Sample{SpO2: ptr(80)}, []alert.Type{alert.TypeSpO2}, alert.SeverityCritical},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := NewAlertEngine(DefaultAlertRules())
			s := tt.sample
			s.DeviceID = "helmet-1"
			s.Timestamp = at

			got := engine.Check(&s, nil)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d alerts, want %d", len(got), len(tt.want))
			}
			for i, a := range got {
				if a.Type != tt.want[i] || a.Severity != tt.severity {
					t.Errorf("alert %d = %s/%s, want %s/%s", i, a.Type, a.Severity, tt.want[i], tt.severity)
				}
				if a.DeviceID != "helmet-1" || !a.Time.Equal(at) {
					t.Errorf("alert %d not bound to sample: %+v", i, a)
				}
			}
		})
	}
}

func TestAlertEngineCooldown(t *testing.T) {
	engine := NewAlertEngine(AlertRules{HeartRateMin: 40, HeartRateMax: 185, SpO2Min: 90, SpO2Critical: 85, RepeatCooldown: time.Minute})
	start := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	crash := func(deviceID string, at time.Time) int {
		return len(engine.Check(&telemetry.Sample{DeviceID: deviceID, Timestamp: at, CrashFlag: ptr(true)}, nil))
	}

	if n := crash("helmet-1", start); n != 1 {
		t.Fatalf("first crash raised %d alerts", n)
	}
	if n := crash("helmet-1", start.Add(30*time.Second)); n != 0 {
		t.Fatalf("repeat within cooldown raised %d alerts", n)
	}
	if n := crash("helmet-2", start.Add(30*time.Second)); n != 1 {
		t.Fatalf("other device raised %d alerts", n)
	}
	if n := crash("helmet-1", start.Add(2*time.Minute)); n != 1 {
		t.Fatalf("crash after cooldown raised %d alerts", n)
	}
}

type fakeAlertSink struct {
	mu     sync.Mutex
	alerts []*alert.Alert
}

func (f *fakeAlertSink) Create(_ context.Context, a *alert.Alert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, a)
	return nil
}

func TestWorkerRaisesAlertsAfterSampleIsStored(t *testing.T) {
	store := newFakeStore()
	sink := &fakeAlertSink{}
	publisher := &fakePublisher{}
	metrics := NewMetricsTracker()
	q := NewQueue(10)
	w := NewWorker(q, store, metrics,
		WithAlerts(NewAlertEngine(DefaultAlertRules()), sink),
		WithPublisher(publisher))

	tripID := uuid.New()
	owner := "user-1"
	env := telemetryEnvelope("helmet-1", &tripID)
	env.UserID = &owner
	env.Telemetry.CrashFlag = ptr(true)
	if err := q.Enqueue(env); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	go w.Run()
	stopWorker(t, w)

	if len(store.snapshotSamples()) != 1 {
		t.Fatal("sample was not stored")
	}
	if len(sink.alerts) != 1 {
		t.Fatalf("alerts = %d, want 1", len(sink.alerts))
	}
	a := sink.alerts[0]
	if a.Type != alert.TypeCrash || !a.OwnedBy(owner) || a.TripID == nil || *a.TripID != tripID {
		t.Fatalf("alert = %+v", a)
	}
	if got := metrics.Snapshot().AlertsRaised; got != 1 {
		t.Fatalf("AlertsRaised = %d", got)
	}

	publisher.mu.Lock()
	events := publisher.events
	publisher.mu.Unlock()
	if len(events) != 1 || events[0].Type != EventAlertRaised || events[0].Alert == nil {
		t.Fatalf("events = %+v", events)
	}
}
