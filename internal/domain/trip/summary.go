package trip

import (
	"math"
	"time"
)

const earthRadiusKm = 6371.0

// Summary holds aggregates computed over a trip's telemetry once it closes.
type Summary struct {
	TotalDistanceKm  float64
	AverageSpeedKmh  *float64
	MaxSpeedKmh      *float64
	AverageHeartRate *float64
}

// RoutePoint is a timestamped GPS fix used for trip aggregates.
type RoutePoint struct {
	Position
	Time time.Time
}

// Summarize computes distance, speeds and mean heart rate. points must be in
// time order; heartRates holds every valid reading of the trip.
func Summarize(points []RoutePoint, heartRates []int) *Summary {
	s := &Summary{}

	var moving time.Duration
	var maxSpeed float64
	for i := 1; i < len(points); i++ {
		d := Haversine(points[i-1].Position, points[i].Position)
		dt := points[i].Time.Sub(points[i-1].Time)
		s.TotalDistanceKm += d
		if dt <= 0 {
			continue
		}
		moving += dt
		if v := d / dt.Hours(); v > maxSpeed {
			maxSpeed = v
		}
	}
	if moving > 0 {
		avg := s.TotalDistanceKm / moving.Hours()
		s.AverageSpeedKmh = &avg
		s.MaxSpeedKmh = &maxSpeed
	}

	if len(heartRates) > 0 {
		var sum int
		for _, hr := range heartRates {
			sum += hr
		}
		avg := float64(sum) / float64(len(heartRates))
		s.AverageHeartRate = &avg
	}

	return s
}

// Haversine returns the great-circle distance between a and b in kilometres.
func Haversine(a, b Position) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}
