// Command helmetsim drives one simulated helmet through a trip over the
// device ingestion socket.
package main

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"smart-helmet-backend/internal/ingestion"
	"smart-helmet-backend/internal/logger"
)

type options struct {
	url      string
	deviceID string
	frames   int
	interval time.Duration
	lat, lng float64
	crash    bool
	skipTrip bool
}

func parseFlags() *options {
	o := &options{}
	pflag.StringVarP(&o.url, "url", "u", "ws://localhost:8000/ws/ingest", "ingestion endpoint")
	pflag.StringVarP(&o.deviceID, "device", "d", "helmet-sim-1", "device_id to send")
	pflag.IntVarP(&o.frames, "frames", "n", 30, "telemetry frames per trip")
	pflag.DurationVarP(&o.interval, "interval", "i", time.Second, "delay between telemetry frames")
	pflag.Float64Var(&o.lat, "lat", 21.0285, "starting latitude")
	pflag.Float64Var(&o.lng, "lng", 105.8542, "starting longitude")
	pflag.BoolVar(&o.crash, "crash", false, "flag the last frame and the trip end as a crash")
	pflag.BoolVar(&o.skipTrip, "telemetry-only", false, "send telemetry without trip_start/trip_end")
	pflag.Parse()
	return o
}

func main() {
	opts := parseFlags()
	if err := logger.Init("development"); err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	conn, _, err := websocket.DefaultDialer.Dial(opts.url, nil)
	if err != nil {
		logger.Fatal("dial failed", zap.String("url", opts.url), zap.Error(err))
	}
	defer conn.Close()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	sim := &simulator{conn: conn, opts: opts, lat: opts.lat, lng: opts.lng, rnd: rand.New(rand.NewSource(time.Now().UnixNano()))}
	if err := sim.run(stop); err != nil {
		logger.Fatal("simulation aborted", zap.Error(err))
	}
}

type simulator struct {
	conn     *websocket.Conn
	opts     *options
	lat, lng float64
	heading  float64
	rnd      *rand.Rand
}

func (s *simulator) run(stop <-chan os.Signal) error {
	if !s.opts.skipTrip {
		if err := s.send(&ingestion.TripStartMessage{
			Type:      ingestion.TypeTripStart,
			DeviceID:  s.opts.deviceID,
			Timestamp: ingestion.Timestamp{Time: time.Now().UTC()},
			StartLat:  ptr(s.lat),
			StartLng:  ptr(s.lng),
		}); err != nil {
			return err
		}
	}

	ticker := time.NewTicker(s.opts.interval)
	defer ticker.Stop()

	crashed := false
frames:
	for i := 0; i < s.opts.frames; i++ {
		select {
		case <-stop:
			logger.Info("interrupted, ending trip early", zap.Int("sent", i))
			break frames
		case <-ticker.C:
		}

		last := i == s.opts.frames-1
		crashed = s.opts.crash && last
		if err := s.send(s.telemetry(crashed)); err != nil {
			return err
		}
	}

	if s.opts.skipTrip {
		return nil
	}
	return s.send(&ingestion.TripEndMessage{
		Type:          ingestion.TypeTripEnd,
		DeviceID:      s.opts.deviceID,
		Timestamp:     ingestion.Timestamp{Time: time.Now().UTC()},
		EndLat:        ptr(s.lat),
		EndLng:        ptr(s.lng),
		CrashDetected: ptr(crashed),
	})
}

// telemetry advances the helmet roughly 10 m along a wandering heading.
func (s *simulator) telemetry(crash bool) *ingestion.TelemetryMessage {
	s.heading += (s.rnd.Float64() - 0.5) * 0.4
	const stepDeg = 0.00009
	s.lat += stepDeg * math.Cos(s.heading)
	s.lng += stepDeg * math.Sin(s.heading)

	hr := 70 + s.rnd.Intn(40)
	spo2 := 95 + s.rnd.Intn(5)
	speed := 25 + s.rnd.Float64()*15
	accelZ := 9.8 + (s.rnd.Float64()-0.5)*0.3
	if crash {
		accelZ = 42.0
	}

	return &ingestion.TelemetryMessage{
		Type:      ingestion.TypeTelemetry,
		DeviceID:  s.opts.deviceID,
		Timestamp: ingestion.Timestamp{Time: time.Now().UTC()},
		HelmetOn:  ptr(true),
		CrashFlag: ptr(crash),
		HeartRate: &ingestion.HeartRateReading{OK: true, Finger: ptr(true), HR: &hr, SpO2: &spo2},
		IMU:       &ingestion.IMUReading{OK: true, AX: ptr(0.1), AY: ptr(0.0), AZ: &accelZ, GX: ptr(0.0), GY: ptr(0.0), GZ: ptr(0.0)},
		GPS:       &ingestion.GPSReading{OK: true, Lat: ptr(s.lat), Lng: ptr(s.lng), Sats: ptr(9), Lock: ptr(true), Speed: &speed},
	}
}

func (s *simulator) send(msg any) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("write: %w", err)
	}

	_, reply, err := s.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("read reply: %w", err)
	}
	text := string(reply)
	if strings.HasPrefix(text, "❌") {
		logger.Warn("frame rejected", zap.String("reply", text), zap.ByteString("frame", payload))
		return nil
	}
	logger.Debug("frame acknowledged", zap.String("reply", text))
	return nil
}

func ptr[T any](v T) *T { return &v }
