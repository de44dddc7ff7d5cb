package trip

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestValidateStatusTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		ok       bool
	}{
		{StatusRecording, StatusCompleted, true},
		{StatusRecording, StatusCancelled, true},
		{StatusCompleted, StatusCancelled, false},
		{StatusCompleted, StatusCompleted, false},
		{StatusCancelled, StatusRecording, false},
		{Status("paused"), StatusCompleted, false},
	}

	for _, tt := range tests {
		err := ValidateStatusTransition(tt.from, tt.to)
		if tt.ok && err != nil {
			t.Errorf("%s -> %s: unexpected error %v", tt.from, tt.to, err)
		}
		if !tt.ok && !errors.Is(err, ErrInvalidStatusTransition) {
			t.Errorf("%s -> %s: expected ErrInvalidStatusTransition, got %v", tt.from, tt.to, err)
		}
	}
}

func TestHaversine_OneDegreeLatitude(t *testing.T) {
	d := Haversine(Position{Lat: 0, Lng: 0}, Position{Lat: 1, Lng: 0})
	if math.Abs(d-111.19) > 0.05 {
		t.Errorf("one degree of latitude = %.3f km, want ~111.19", d)
	}
}

func TestSummarize(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	points := []RoutePoint{
		{Position: Position{Lat: 0, Lng: 0}, Time: t0},
		{Position: Position{Lat: 0.01, Lng: 0}, Time: t0.Add(time.Minute)},
		{Position: Position{Lat: 0.02, Lng: 0}, Time: t0.Add(3 * time.Minute)},
	}

	s := Summarize(points, []int{80, 100})

	if math.Abs(s.TotalDistanceKm-2.2239) > 0.01 {
		t.Errorf("TotalDistanceKm = %.4f, want ~2.224", s.TotalDistanceKm)
	}
	if s.MaxSpeedKmh == nil || math.Abs(*s.MaxSpeedKmh-66.72) > 0.5 {
		t.Errorf("MaxSpeedKmh = %v, want ~66.7", s.MaxSpeedKmh)
	}
	if s.AverageSpeedKmh == nil || math.Abs(*s.AverageSpeedKmh-44.48) > 0.5 {
		t.Errorf("AverageSpeedKmh = %v, want ~44.5", s.AverageSpeedKmh)
	}
	if s.AverageHeartRate == nil || *s.AverageHeartRate != 90 {
		t.Errorf("AverageHeartRate = %v, want 90", s.AverageHeartRate)
	}
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil, nil)
	if s.TotalDistanceKm != 0 || s.AverageSpeedKmh != nil || s.MaxSpeedKmh != nil || s.AverageHeartRate != nil {
		t.Errorf("empty summary should be zero-valued, got %+v", s)
	}
}
