package ingestion

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"smart-helmet-backend/internal/domain/alert"
	"smart-helmet-backend/internal/domain/telemetry"
)

// AlertRules are the safety thresholds a telemetry sample is checked against.
type AlertRules struct {
	HeartRateMin   int
	HeartRateMax   int
	SpO2Min        int
	SpO2Critical   int
	RepeatCooldown time.Duration // per device and alert type; 0 raises on every sample
}

func DefaultAlertRules() AlertRules {
	return AlertRules{
		HeartRateMin:   40,
		HeartRateMax:   185,
		SpO2Min:        90,
		SpO2Critical:   85,
		RepeatCooldown: time.Minute,
	}
}

type alertKey struct {
	deviceID string
	kind     alert.Type
}

// AlertEngine checks persisted telemetry against AlertRules. It is owned by
// the worker goroutine and is not safe for concurrent use.
type AlertEngine struct {
	rules  AlertRules
	raised map[alertKey]time.Time
}

func NewAlertEngine(rules AlertRules) *AlertEngine {
	return &AlertEngine{rules: rules, raised: make(map[alertKey]time.Time)}
}

// Check returns the alerts a sample triggers, skipping any raised for the
// same device and type within the cooldown.
func (e *AlertEngine) Check(s *telemetry.Sample, userID *string) []*alert.Alert {
	var alerts []*alert.Alert
	add := func(kind alert.Type, severity alert.Severity, trigger, threshold, message string) {
		key := alertKey{deviceID: s.DeviceID, kind: kind}
		if last, ok := e.raised[key]; ok && s.Timestamp.Sub(last) < e.rules.RepeatCooldown {
			return
		}
		e.raised[key] = s.Timestamp
		alerts = append(alerts, &alert.Alert{
			ID:             uuid.New(),
			DeviceID:       s.DeviceID,
			UserID:         userID,
			TripID:         s.TripID,
			Time:           s.Timestamp,
			Type:           kind,
			Severity:       severity,
			TriggerValue:   trigger,
			ThresholdValue: threshold,
			Message:        message,
		})
	}

	if s.CrashFlag != nil && *s.CrashFlag {
		add(alert.TypeCrash, alert.SeverityCritical, "crash_flag", "-", "Crash detected by helmet")
	}

	if hr := s.HeartRate; hr != nil && *hr > 0 {
		switch {
		case *hr < e.rules.HeartRateMin:
			add(alert.TypeHeartRate, alert.SeverityHigh,
				fmt.Sprintf("%d bpm", *hr), fmt.Sprintf("min: %d bpm", e.rules.HeartRateMin),
				fmt.Sprintf("Heart rate %d bpm is below %d bpm", *hr, e.rules.HeartRateMin))
		case *hr > e.rules.HeartRateMax:
			add(alert.TypeHeartRate, alert.SeverityHigh,
				fmt.Sprintf("%d bpm", *hr), fmt.Sprintf("max: %d bpm", e.rules.HeartRateMax),
				fmt.Sprintf("Heart rate %d bpm exceeds %d bpm", *hr, e.rules.HeartRateMax))
		}
	}

	if spo2 := s.SpO2; spo2 != nil && *spo2 > 0 && *spo2 < e.rules.SpO2Min {
		severity := alert.SeverityHigh
		if *spo2 < e.rules.SpO2Critical {
			severity = alert.SeverityCritical
		}
		add(alert.TypeSpO2, severity,
			fmt.Sprintf("%d%%", *spo2), fmt.Sprintf("min: %d%%", e.rules.SpO2Min),
			fmt.Sprintf("Blood oxygen %d%% is below %d%%", *spo2, e.rules.SpO2Min))
	}

	return alerts
}
