package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sourcegraph/conc"
	"go.uber.org/zap"

	"smart-helmet-backend/internal/auth"
	"smart-helmet-backend/internal/config"
	"smart-helmet-backend/internal/delivery/http/handler"
	"smart-helmet-backend/internal/infrastructure/database/migrate"
	"smart-helmet-backend/internal/infrastructure/database/postgres"
	"smart-helmet-backend/internal/infrastructure/kafka"
	"smart-helmet-backend/internal/ingestion"
	"smart-helmet-backend/internal/logger"
	"smart-helmet-backend/internal/metrics"
	"smart-helmet-backend/internal/routes"
	alertUsecase "smart-helmet-backend/internal/usecase/alert"
	deviceUsecase "smart-helmet-backend/internal/usecase/device"
	tripUsecase "smart-helmet-backend/internal/usecase/trip"
	userUsecase "smart-helmet-backend/internal/usecase/user"
	pkgmqtt "smart-helmet-backend/pkg/mqtt"
)

const (
	httpShutdownTimeout = 15 * time.Second
	drainTimeout        = 30 * time.Second
	restoreTimeout      = 30 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("Failed to load configuration: " + err.Error() + "\n")
		os.Exit(1)
	}

	env := cfg.Server.Environment
	if env == "" {
		env = "development"
	}
	if err := logger.Init(env); err != nil {
		os.Stderr.WriteString("Failed to initialize logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting application", zap.String("environment", env))

	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}
	if cfg.JWT.Secret == "" {
		logger.Warn("JWT_SECRET not set, accepting mock_ tokens only")
	}

	if cfg.Database.AutoMigrate {
		if err := migrate.Run(cfg.Database.URL(), migrate.DirectionUp); err != nil {
			logger.Fatal("Failed to apply migrations", zap.Error(err))
		}
		logger.Info("Database migrations applied")
	}

	db, err := postgres.NewDB(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("Failed to close database connection", zap.Error(err))
		}
	}()

	userRepo := postgres.NewUserRepository(db)
	deviceRepo := postgres.NewDeviceRepository(db)
	tripRepo := postgres.NewTripRepository(db)
	telemetryRepo := postgres.NewTelemetryRepository(db)
	alertRepo := postgres.NewAlertRepository(db)

	tracker := ingestion.NewMetricsTracker()
	queue := ingestion.NewQueue(cfg.Ingest.QueueSize)
	hub := ingestion.NewHub(tracker)
	owners := ingestion.NewResolver(deviceRepo, cfg.Ingest.OwnerCacheTTL, tracker)
	trips := ingestion.NewManager()
	service := ingestion.NewService(queue, trips, owners, hub, tracker)

	workerOpts := []ingestion.WorkerOption{
		ingestion.WithWriteTimeout(cfg.Ingest.WriteTimeout),
		ingestion.WithTripReleaser(trips),
	}
	publisher := kafka.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	if publisher != nil {
		workerOpts = append(workerOpts, ingestion.WithPublisher(publisher))
		logger.Info("Publishing trip events to Kafka",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.Topic),
		)
	}
	if cfg.Alerts.Enabled {
		engine := ingestion.NewAlertEngine(ingestion.AlertRules{
			HeartRateMin:   cfg.Alerts.HeartRateMin,
			HeartRateMax:   cfg.Alerts.HeartRateMax,
			SpO2Min:        cfg.Alerts.SpO2Min,
			SpO2Critical:   cfg.Alerts.SpO2Critical,
			RepeatCooldown: cfg.Alerts.RepeatCooldown,
		})
		workerOpts = append(workerOpts, ingestion.WithAlerts(engine, alertRepo))
	}
	worker := ingestion.NewWorker(queue, ingestion.NewRepositoryStore(tripRepo, telemetryRepo), tracker, workerOpts...)

	restoreCtx, cancelRestore := context.WithTimeout(context.Background(), restoreTimeout)
	recording, err := tripRepo.ListRecording(restoreCtx)
	cancelRestore()
	if err != nil {
		logger.Fatal("Failed to load recording trips", zap.Error(err))
	}
	service.Restore(recording)

	verifier := auth.NewVerifier(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.MockMode)
	userService := userUsecase.NewService(userRepo)
	deviceService := deviceUsecase.NewService(deviceRepo, userService, owners)
	tripService := tripUsecase.NewService(tripRepo, telemetryRepo, service)
	alertService := alertUsecase.NewService(alertRepo)

	router := routes.SetupRoutes(cfg, &routes.Dependencies{
		DB:            db,
		Verifier:      verifier,
		Ingest:        service,
		Hub:           hub,
		Metrics:       metrics.New(service.Stats, hub.Total),
		UserHandler:   handler.NewUserHandler(userService),
		DeviceHandler: handler.NewDeviceHandler(deviceService),
		TripHandler:   handler.NewTripHandler(tripService),
		AlertHandler:  handler.NewAlertHandler(alertService),
	})

	var mqttBridge *ingestion.MQTTIngestionClient
	if cfg.MQTT.Enabled() {
		mqttBridge, err = ingestion.NewMQTTIngestionClient(&ingestion.MQTTIngestionConfig{
			ClientConfig: &pkgmqtt.Config{
				Broker:               cfg.MQTT.Broker,
				ClientID:             cfg.MQTT.ClientID,
				Username:             cfg.MQTT.Username,
				Password:             cfg.MQTT.Password,
				CleanSession:         true,
				KeepAlive:            cfg.MQTT.KeepAliveSec,
				ConnectTimeout:       cfg.MQTT.ConnectTimeout,
				AutoReconnect:        true,
				MaxReconnectInterval: time.Duration(cfg.MQTT.ReconnectMaxSec) * time.Second,
				StatusTopic:          cfg.MQTT.StatusTopic,
				StatusQoS:            cfg.MQTT.QoS,
			},
			IngestTopic:    cfg.MQTT.IngestTopic,
			AckTopicPrefix: cfg.MQTT.AckTopicPrefix,
			QoS:            cfg.MQTT.QoS,
		}, service)
		if err != nil {
			logger.Fatal("Failed to configure MQTT bridge", zap.Error(err))
		}
	}

	addr := net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	var wg conc.WaitGroup
	wg.Go(worker.Run)
	wg.Go(func() {
		logger.Info("Server starting", zap.String("address", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	})
	if mqttBridge != nil {
		if err := mqttBridge.Start(); err != nil {
			// the WebSocket transport keeps working without the bridge
			logger.Error("MQTT bridge unavailable", zap.Error(err))
		}
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Info("Shutting down", zap.String("signal", sig.String()))

	// stop intake first so nothing is enqueued behind the drain
	httpCtx, cancelHTTP := context.WithTimeout(context.Background(), httpShutdownTimeout)
	if err := server.Shutdown(httpCtx); err != nil {
		logger.Error("HTTP shutdown incomplete", zap.Error(err))
	}
	cancelHTTP()
	if mqttBridge != nil {
		mqttBridge.Stop()
	}

	drainCtx, cancelDrain := context.WithTimeout(context.Background(), drainTimeout)
	if err := worker.Stop(drainCtx); err != nil {
		logger.Error("Persistence queue not fully drained", zap.Error(err))
	}
	cancelDrain()

	wg.Wait()

	if err := publisher.Close(); err != nil {
		logger.Warn("Failed to close Kafka publisher", zap.Error(err))
	}

	final := service.Stats()
	logger.Info("Server exited properly",
		zap.Int64("envelopes_persisted", final.EnvelopesPersisted),
		zap.Int64("envelopes_failed", final.EnvelopesFailed),
		zap.Int64("envelopes_dropped", final.EnvelopesDropped),
	)
}
