package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoad_DefaultsAndOverrides(t *testing.T) {
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_NAME", "helmet")
	t.Setenv("DB_USER", "app")
	t.Setenv("DB_PASSWORD", "p@ss word")
	t.Setenv("INGEST_QUEUE_SIZE", "250")
	t.Setenv("OWNER_CACHE_TTL_SEC", "90")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092 ,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != "8000" {
		t.Errorf("port = %q, want default 8000", cfg.Server.Port)
	}
	if cfg.Ingest.QueueSize != 250 {
		t.Errorf("queue size = %d, want 250", cfg.Ingest.QueueSize)
	}
	if cfg.Ingest.OwnerCacheTTL != 90*time.Second {
		t.Errorf("owner cache ttl = %v", cfg.Ingest.OwnerCacheTTL)
	}
	if cfg.Ingest.WriteTimeout != 10*time.Second {
		t.Errorf("write timeout = %v, want 10s", cfg.Ingest.WriteTimeout)
	}
	if got := cfg.Kafka.Brokers; len(got) != 2 || got[0] != "k1:9092" || got[1] != "k2:9092" {
		t.Errorf("brokers = %v", got)
	}
	if !cfg.Kafka.Enabled() {
		t.Error("kafka should be enabled with brokers and default topic")
	}
	if cfg.MQTT.Enabled() {
		t.Error("mqtt should be disabled without a broker")
	}
	if !cfg.Alerts.Enabled || cfg.Alerts.SpO2Min != 90 || cfg.Alerts.RepeatCooldown != time.Minute {
		t.Errorf("alert defaults = %+v", cfg.Alerts)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Database: DatabaseConfig{Host: "localhost", DBName: "helmet"},
			JWT:      JWTConfig{Secret: "s3cret"},
			Ingest:   IngestConfig{QueueSize: 10},
		}
	}

	if err := base().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	noDB := base()
	noDB.Database.Host = ""
	if err := noDB.Validate(); err == nil {
		t.Error("missing DB_HOST accepted")
	}

	noSecret := base()
	noSecret.JWT.Secret = ""
	if err := noSecret.Validate(); err == nil {
		t.Error("missing secret accepted without mock mode")
	}
	noSecret.JWT.MockMode = true
	if err := noSecret.Validate(); err != nil {
		t.Errorf("mock mode without secret rejected: %v", err)
	}

	noQueue := base()
	noQueue.Ingest.QueueSize = 0
	if err := noQueue.Validate(); err == nil {
		t.Error("zero queue size accepted")
	}

	badAlerts := base()
	badAlerts.Alerts = AlertConfig{Enabled: true, HeartRateMin: 200, HeartRateMax: 180}
	if err := badAlerts.Validate(); err == nil {
		t.Error("inverted heart rate bounds accepted")
	}
}

func TestDatabaseURL_EscapesCredentials(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: "5432", User: "app", Password: "p@ss word", DBName: "helmet", SSLMode: "disable"}

	url := c.URL()
	if !strings.HasPrefix(url, "postgres://app:p%40ss%20word@db:5432/helmet") {
		t.Errorf("url = %q", url)
	}
	if !strings.HasSuffix(url, "sslmode=disable") {
		t.Errorf("url = %q, want sslmode", url)
	}
}
