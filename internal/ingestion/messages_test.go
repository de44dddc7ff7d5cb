package ingestion

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestTimestampFormats(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
	}{
		{`"2025-03-04T05:06:07Z"`, time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)},
		{`"2025-03-04T07:06:07+02:00"`, time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)},
		{`"2025-03-04T05:06:07.250"`, time.Date(2025, 3, 4, 5, 6, 7, 250e6, time.UTC)},
		{`"04/03/2025 05:06:07"`, time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)},
		{`1741064767`, time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)},
	}
	for _, tc := range cases {
		var ts Timestamp
		if err := json.Unmarshal([]byte(tc.in), &ts); err != nil {
			t.Errorf("%s: %v", tc.in, err)
			continue
		}
		if !ts.Equal(tc.want) {
			t.Errorf("%s: got %v, want %v", tc.in, ts.Time, tc.want)
		}
	}

	var ts Timestamp
	if err := json.Unmarshal([]byte(`"tomorrow"`), &ts); err == nil {
		t.Error("expected error for unparseable timestamp")
	}
}

func TestParseFrameReportsFieldPath(t *testing.T) {
	_, err := ParseFrame([]byte(`{"type":"telemetry","device_id":"d1","ts":"2025-01-01T00:00:00Z","heart_rate":{"ok":true,"spo2":140}}`))

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.Field != "heart_rate.spo2" {
		t.Fatalf("field = %q", verr.Field)
	}
}

func TestParseFrameDecodesHelmetPayload(t *testing.T) {
	raw := `{"ts":"01/01/2025 12:30:55","type":"telemetry","device_id":"helmet-pi-01","helmet_on":true,
		"heart_rate":{"ok":true,"ir":55321,"red":24123,"finger":true,"hr":88,"spo2":97},
		"imu":{"ok":true,"sleep":false,"ax":0.1,"ay":-0.2,"az":9.7,"gx":2,"gy":3,"gz":4},
		"gps":{"ok":true,"lat":33.8547,"lng":35.8623,"alt":12.3,"sats":8,"lock":true},
		"crash_flag":false}`

	frame, err := ParseFrame([]byte(raw))
	if err != nil {
		t.Fatalf("ParseFrame: %v", err)
	}
	msg := frame.Telemetry
	if msg == nil || frame.DeviceID != "helmet-pi-01" {
		t.Fatalf("unexpected frame: %+v", frame)
	}
	if pos := msg.GPS.Position(); pos == nil || pos.Lat != 33.8547 {
		t.Fatalf("gps position = %+v", pos)
	}
	if msg.IMU == nil || *msg.IMU.AZ != 9.7 {
		t.Fatal("imu block not decoded")
	}

	env := &Envelope{DeviceID: frame.DeviceID, EventTime: frame.Time(time.Now()), Telemetry: msg}
	sample := sampleFromMessage(env)
	if sample.Satellites == nil || *sample.Satellites != 8 || sample.GyroZ == nil || *sample.GyroZ != 4 {
		t.Fatalf("sample not flattened: %+v", sample)
	}
}

func TestParseFrameRejectsUnstorableText(t *testing.T) {
	cases := []struct {
		name  string
		raw   []byte
		field string
	}{
		{"invalid utf8", []byte("{\"type\":\"telemetry\",\"device_id\":\"d1\",\"ts\":\"2025-01-01T00:00:00Z\",\"note\":\"\xff\xfe\"}"), "frame"},
		{"nul escape in extra field", []byte(`{"type":"telemetry","device_id":"d1","ts":"2025-01-01T00:00:00Z","note":"a\u0000b"}`), "frame"},
		{"nul escape in device id", []byte(`{"type":"trip_start","device_id":"d\u00001","ts":"2025-01-01T00:00:00Z"}`), "frame"},
		{"control character in device id", []byte(`{"type":"trip_start","device_id":"d\u00071","ts":"2025-01-01T00:00:00Z"}`), "device_id"},
		{"non ascii device id", []byte(`{"type":"telemetry","device_id":"h\u00e9lmet","ts":"2025-01-01T00:00:00Z"}`), "device_id"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseFrame(tc.raw)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Field != tc.field {
				t.Fatalf("field = %q, want %q", verr.Field, tc.field)
			}
		})
	}

	if _, err := ParseFrame([]byte(`{"type":"telemetry","device_id":"helmet 01","ts":"2025-01-01T00:00:00Z"}`)); err != nil {
		t.Fatalf("printable device id rejected: %v", err)
	}
}
