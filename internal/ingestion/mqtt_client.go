package ingestion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"smart-helmet-backend/internal/logger"
	pkgmqtt "smart-helmet-backend/pkg/mqtt"
)

// MQTTIngestionConfig describes the topics and MQTT connection parameters.
type MQTTIngestionConfig struct {
	ClientConfig   *pkgmqtt.Config
	IngestTopic    string
	AckTopicPrefix string
	QoS            byte
}

// Broker is the part of the MQTT client the bridge needs.
type Broker interface {
	Connect() error
	Subscribe(topic string, qos byte, handler pkgmqtt.MessageHandler) error
	Publish(topic string, qos byte, retained bool, payload []byte) error
	Unsubscribe(topics ...string) error
	Disconnect()
}

// MQTTIngestionClient feeds helmet frames published over MQTT into the
// ingestion service and answers each one on the device's ack topic.
type MQTTIngestionClient struct {
	cfg     *MQTTIngestionConfig
	client  Broker
	service *Service

	mu      sync.Mutex
	started bool
}

// NewMQTTIngestionClient builds a new MQTT client for ingestion.
func NewMQTTIngestionClient(cfg *MQTTIngestionConfig, service *Service) (*MQTTIngestionClient, error) {
	if cfg == nil || cfg.ClientConfig == nil {
		return nil, errors.New("mqtt ingestion config is not configured")
	}
	return newMQTTIngestionClient(cfg, pkgmqtt.NewClient(cfg.ClientConfig), service)
}

func newMQTTIngestionClient(cfg *MQTTIngestionConfig, client Broker, service *Service) (*MQTTIngestionClient, error) {
	if service == nil {
		return nil, errors.New("ingestion service is required")
	}
	if cfg.IngestTopic == "" {
		return nil, errors.New("no MQTT topic configured for ingestion")
	}
	return &MQTTIngestionClient{cfg: cfg, client: client, service: service}, nil
}

// Start establishes the MQTT connection and subscribes to the ingest topic.
func (c *MQTTIngestionClient) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return nil
	}

	if err := c.client.Connect(); err != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}

	if err := c.client.Subscribe(c.cfg.IngestTopic, c.cfg.QoS, c.handleFrame); err != nil {
		c.client.Disconnect()
		return fmt.Errorf("subscribe failed for topic %s: %w", c.cfg.IngestTopic, err)
	}
	logger.Info("listening for MQTT frames", zap.String("topic", c.cfg.IngestTopic))

	c.started = true
	return nil
}

// Stop unsubscribes and disconnects from the broker.
func (c *MQTTIngestionClient) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.started {
		return
	}

	if err := c.client.Unsubscribe(c.cfg.IngestTopic); err != nil {
		logger.Warn("failed to unsubscribe from MQTT topic", zap.String("topic", c.cfg.IngestTopic), zap.Error(err))
	}

	c.client.Disconnect()
	c.started = false
}

func (c *MQTTIngestionClient) handleFrame(topic string, payload []byte) {
	reply := c.service.HandleFrame(context.Background(), payload)

	ack := ackTopic(c.cfg.AckTopicPrefix, topic)
	if ack == "" {
		logger.Debug("no ack topic for MQTT frame", zap.String("topic", topic))
		return
	}
	if err := c.client.Publish(ack, c.cfg.QoS, false, reply.Bytes()); err != nil {
		logger.Warn("failed to publish MQTT ack", zap.String("topic", ack), zap.Error(err))
	}
}

// ackTopic maps "<anything>/<device_id>/<leaf>" to "<prefix>/<device_id>/ack".
func ackTopic(prefix, topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) < 2 || prefix == "" {
		return ""
	}
	deviceID := parts[len(parts)-2]
	if deviceID == "" {
		return ""
	}
	return prefix + "/" + deviceID + "/ack"
}
