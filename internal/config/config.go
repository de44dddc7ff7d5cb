package config

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	Ingest    IngestConfig
	Stream    StreamConfig
	Alerts    AlertConfig
	MQTT      MQTTConfig
	Kafka     KafkaConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
}

type ServerConfig struct {
	Port        string
	Host        string
	Environment string
}

type DatabaseConfig struct {
	Host        string
	Port        string
	User        string
	Password    string
	DBName      string
	SSLMode     string
	AutoMigrate bool
}

type JWTConfig struct {
	Secret   string
	Issuer   string
	MockMode bool
}

// IngestConfig tunes the device ingestion pipeline.
type IngestConfig struct {
	QueueSize     int
	WriteTimeout  time.Duration
	DeviceRPS     float64 // 0 disables per-connection rate limiting
	DeviceBurst   int
	MaxFrameBytes int64
	OwnerCacheTTL time.Duration // 0 keeps cached owners forever
}

type StreamConfig struct {
	SendBuffer   int
	PingInterval time.Duration
}

// AlertConfig holds the telemetry safety thresholds.
type AlertConfig struct {
	Enabled        bool
	HeartRateMin   int
	HeartRateMax   int
	SpO2Min        int
	SpO2Critical   int
	RepeatCooldown time.Duration
}

type MQTTConfig struct {
	Broker          string
	ClientID        string
	Username        string
	Password        string
	IngestTopic     string
	AckTopicPrefix  string
	StatusTopic     string
	QoS             byte
	KeepAliveSec    int
	ConnectTimeout  int
	ReconnectMaxSec int
}

func (c *MQTTConfig) Enabled() bool {
	return c.Broker != ""
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

func (c *KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0 && c.Topic != ""
}

type RateLimitConfig struct {
	GeneralRPS   float64 // Requests per second for general endpoints
	GeneralBurst int     // Burst size for general endpoints
}

type CORSConfig struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           int
}

func setDefaults() {
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("SERVER_PORT", "8000")
	viper.SetDefault("ENVIRONMENT", "development")

	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("DB_AUTO_MIGRATE", true)

	viper.SetDefault("JWT_ISSUER", "smart-helmet")

	viper.SetDefault("INGEST_QUEUE_SIZE", 10000)
	viper.SetDefault("INGEST_WRITE_TIMEOUT_SEC", 10)
	viper.SetDefault("INGEST_DEVICE_RPS", 0)
	viper.SetDefault("INGEST_DEVICE_BURST", 20)
	viper.SetDefault("INGEST_MAX_FRAME_BYTES", 64*1024)
	viper.SetDefault("OWNER_CACHE_TTL_SEC", 0)

	viper.SetDefault("STREAM_SEND_BUFFER", 64)
	viper.SetDefault("STREAM_PING_INTERVAL_SEC", 30)

	viper.SetDefault("ALERTS_ENABLED", true)
	viper.SetDefault("ALERT_HR_MIN", 40)
	viper.SetDefault("ALERT_HR_MAX", 185)
	viper.SetDefault("ALERT_SPO2_MIN", 90)
	viper.SetDefault("ALERT_SPO2_CRITICAL", 85)
	viper.SetDefault("ALERT_COOLDOWN_SEC", 60)

	viper.SetDefault("MQTT_CLIENT_ID", "smart-helmet-backend")
	viper.SetDefault("MQTT_INGEST_TOPIC", "helmets/+/events")
	viper.SetDefault("MQTT_ACK_TOPIC_PREFIX", "helmets")
	viper.SetDefault("MQTT_STATUS_TOPIC", "helmets/backend/status")
	viper.SetDefault("MQTT_QOS", 1)
	viper.SetDefault("MQTT_KEEPALIVE_SEC", 30)
	viper.SetDefault("MQTT_CONNECT_TIMEOUT_SEC", 10)
	viper.SetDefault("MQTT_RECONNECT_MAX_SEC", 60)

	viper.SetDefault("KAFKA_TOPIC", "helmet.trip-events")

	viper.SetDefault("RATE_LIMIT_GENERAL_RPS", 20)
	viper.SetDefault("RATE_LIMIT_GENERAL_BURST", 40)

	viper.SetDefault("CORS_ALLOWED_ORIGINS", []string{"*"})
	viper.SetDefault("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PATCH", "OPTIONS"})
	viper.SetDefault("CORS_ALLOWED_HEADERS", []string{"Authorization", "Content-Type", "X-Request-ID"})
	viper.SetDefault("CORS_EXPOSED_HEADERS", []string{"X-Request-ID"})
}

func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.AddConfigPath(".")
	if homeDir, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(homeDir)
	}
	viper.AutomaticEnv()
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		log.Printf("Warning: config file not found: %v. Falling back to environment variables only.", err)
	}

	config := &Config{
		Server: ServerConfig{
			Port:        viper.GetString("SERVER_PORT"),
			Host:        viper.GetString("SERVER_HOST"),
			Environment: viper.GetString("ENVIRONMENT"),
		},
		Database: DatabaseConfig{
			Host:        viper.GetString("DB_HOST"),
			Port:        viper.GetString("DB_PORT"),
			User:        viper.GetString("DB_USER"),
			Password:    viper.GetString("DB_PASSWORD"),
			DBName:      viper.GetString("DB_NAME"),
			SSLMode:     viper.GetString("DB_SSLMODE"),
			AutoMigrate: viper.GetBool("DB_AUTO_MIGRATE"),
		},
		JWT: JWTConfig{
			Secret:   viper.GetString("JWT_SECRET"),
			Issuer:   viper.GetString("JWT_ISSUER"),
			MockMode: viper.GetBool("AUTH_MOCK_MODE"),
		},
		Ingest: IngestConfig{
			QueueSize:     viper.GetInt("INGEST_QUEUE_SIZE"),
			WriteTimeout:  time.Duration(viper.GetInt("INGEST_WRITE_TIMEOUT_SEC")) * time.Second,
			DeviceRPS:     viper.GetFloat64("INGEST_DEVICE_RPS"),
			DeviceBurst:   viper.GetInt("INGEST_DEVICE_BURST"),
			MaxFrameBytes: viper.GetInt64("INGEST_MAX_FRAME_BYTES"),
			OwnerCacheTTL: time.Duration(viper.GetInt("OWNER_CACHE_TTL_SEC")) * time.Second,
		},
		Stream: StreamConfig{
			SendBuffer:   viper.GetInt("STREAM_SEND_BUFFER"),
			PingInterval: time.Duration(viper.GetInt("STREAM_PING_INTERVAL_SEC")) * time.Second,
		},
		Alerts: AlertConfig{
			Enabled:        viper.GetBool("ALERTS_ENABLED"),
			HeartRateMin:   viper.GetInt("ALERT_HR_MIN"),
			HeartRateMax:   viper.GetInt("ALERT_HR_MAX"),
			SpO2Min:        viper.GetInt("ALERT_SPO2_MIN"),
			SpO2Critical:   viper.GetInt("ALERT_SPO2_CRITICAL"),
			RepeatCooldown: time.Duration(viper.GetInt("ALERT_COOLDOWN_SEC")) * time.Second,
		},
		MQTT: MQTTConfig{
			Broker:          viper.GetString("MQTT_BROKER"),
			ClientID:        viper.GetString("MQTT_CLIENT_ID"),
			Username:        viper.GetString("MQTT_USERNAME"),
			Password:        viper.GetString("MQTT_PASSWORD"),
			IngestTopic:     viper.GetString("MQTT_INGEST_TOPIC"),
			AckTopicPrefix:  viper.GetString("MQTT_ACK_TOPIC_PREFIX"),
			StatusTopic:     viper.GetString("MQTT_STATUS_TOPIC"),
			QoS:             byte(viper.GetUint("MQTT_QOS")),
			KeepAliveSec:    viper.GetInt("MQTT_KEEPALIVE_SEC"),
			ConnectTimeout:  viper.GetInt("MQTT_CONNECT_TIMEOUT_SEC"),
			ReconnectMaxSec: viper.GetInt("MQTT_RECONNECT_MAX_SEC"),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(viper.GetString("KAFKA_BROKERS")),
			Topic:   viper.GetString("KAFKA_TOPIC"),
		},
		RateLimit: RateLimitConfig{
			GeneralRPS:   viper.GetFloat64("RATE_LIMIT_GENERAL_RPS"),
			GeneralBurst: viper.GetInt("RATE_LIMIT_GENERAL_BURST"),
		},
		CORS: CORSConfig{
			AllowedOrigins:   viper.GetStringSlice("CORS_ALLOWED_ORIGINS"),
			AllowedMethods:   viper.GetStringSlice("CORS_ALLOWED_METHODS"),
			AllowedHeaders:   viper.GetStringSlice("CORS_ALLOWED_HEADERS"),
			ExposedHeaders:   viper.GetStringSlice("CORS_EXPOSED_HEADERS"),
			AllowCredentials: viper.GetBool("CORS_ALLOW_CREDENTIALS"),
			MaxAge:           viper.GetInt("CORS_MAX_AGE"),
		},
	}

	return config, nil
}

// Validate reports settings the server cannot start without.
func (c *Config) Validate() error {
	if c.Database.Host == "" || c.Database.DBName == "" {
		return errors.New("database configuration is missing: set DB_HOST and DB_NAME")
	}
	if c.JWT.Secret == "" && !c.JWT.MockMode {
		return errors.New("JWT_SECRET is missing and AUTH_MOCK_MODE is off")
	}
	if c.Ingest.QueueSize <= 0 {
		return fmt.Errorf("INGEST_QUEUE_SIZE must be positive, got %d", c.Ingest.QueueSize)
	}
	if c.Alerts.Enabled && c.Alerts.HeartRateMin >= c.Alerts.HeartRateMax {
		return fmt.Errorf("ALERT_HR_MIN (%d) must be below ALERT_HR_MAX (%d)", c.Alerts.HeartRateMin, c.Alerts.HeartRateMax)
	}
	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// URL returns the connection string in postgres:// form, as golang-migrate expects.
func (c *DatabaseConfig) URL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.Host + ":" + c.Port,
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(c.SSLMode),
	}
	return u.String()
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
