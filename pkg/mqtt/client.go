// Package mqtt connects the backend to the helmet broker. Besides plain
// publish and subscribe it keeps a retained presence flag on a status topic
// and restores its subscriptions whenever the connection comes back.
package mqtt

import (
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"smart-helmet-backend/internal/logger"
)

// Presence payloads published on Config.StatusTopic.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

const (
	statusTimeout = 5 * time.Second
	quiesceMillis = 250
)

type Config struct {
	Broker               string
	ClientID             string
	Username             string
	Password             string
	CleanSession         bool
	KeepAlive            int
	ConnectTimeout       int
	AutoReconnect        bool
	MaxReconnectInterval time.Duration

	// StatusTopic receives a retained "online" on every connect. The broker
	// publishes "offline" there as our last will if we drop without saying so.
	StatusTopic string
	StatusQoS   byte
}

type MessageHandler func(topic string, payload []byte)

type subscription struct {
	qos     byte
	handler MessageHandler
}

type Client struct {
	client mqtt.Client
	config *Config

	mu   sync.Mutex
	subs map[string]subscription
}

func NewClient(config *Config) *Client {
	c := &Client{config: config, subs: make(map[string]subscription)}
	c.client = mqtt.NewClient(c.options())
	return c
}

func (c *Client) options() *mqtt.ClientOptions {
	cfg := c.config
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetCleanSession(cfg.CleanSession).
		SetKeepAlive(time.Duration(cfg.KeepAlive) * time.Second).
		SetConnectTimeout(time.Duration(cfg.ConnectTimeout) * time.Second).
		SetAutoReconnect(cfg.AutoReconnect).
		SetMaxReconnectInterval(cfg.MaxReconnectInterval)

	if cfg.StatusTopic != "" {
		opts.SetWill(cfg.StatusTopic, StatusOffline, cfg.StatusQoS, true)
	}

	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("mqtt connection lost", zap.Error(err))
	})
	opts.SetReconnectingHandler(func(_ mqtt.Client, _ *mqtt.ClientOptions) {
		logger.Info("reconnecting to MQTT broker")
	})
	return opts
}

// onConnect runs after the first connect and after every automatic reconnect.
// A clean session forgets our subscriptions, so they are issued again here.
func (c *Client) onConnect(client mqtt.Client) {
	logger.Info("mqtt client connected", zap.String("broker", c.config.Broker))

	c.announce(client, StatusOnline)

	for topic, sub := range c.subscriptions() {
		token := client.Subscribe(topic, sub.qos, deliver(sub.handler))
		if !token.WaitTimeout(statusTimeout) || token.Error() != nil {
			logger.Error("failed to restore MQTT subscription",
				zap.String("topic", topic), zap.Error(token.Error()))
			continue
		}
		logger.Debug("restored MQTT subscription", zap.String("topic", topic))
	}
}

func (c *Client) announce(client mqtt.Client, status string) {
	if c.config.StatusTopic == "" {
		return
	}
	token := client.Publish(c.config.StatusTopic, c.config.StatusQoS, true, status)
	if !token.WaitTimeout(statusTimeout) {
		logger.Warn("timed out publishing MQTT status", zap.String("status", status))
		return
	}
	if err := token.Error(); err != nil {
		logger.Warn("failed to publish MQTT status", zap.String("status", status), zap.Error(err))
	}
}

// Connect establishes a connection to the MQTT broker
func (c *Client) Connect() error {
	logger.Info("connecting to MQTT broker", zap.String("broker", c.config.Broker))

	token := c.client.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}
	return nil
}

// Subscribe subscribes to topic and keeps it subscribed across reconnects.
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	token := c.client.Subscribe(topic, qos, deliver(handler))
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to subscribe to topic %s: %w", topic, err)
	}

	c.mu.Lock()
	c.subs[topic] = subscription{qos: qos, handler: handler}
	c.mu.Unlock()

	logger.Debug("subscribed to MQTT topic", zap.String("topic", topic), zap.Uint8("qos", qos))
	return nil
}

func (c *Client) Publish(topic string, qos byte, retained bool, payload []byte) error {
	token := c.client.Publish(topic, qos, retained, payload)
	token.Wait()
	return token.Error()
}

func (c *Client) Unsubscribe(topics ...string) error {
	c.mu.Lock()
	for _, topic := range topics {
		delete(c.subs, topic)
	}
	c.mu.Unlock()

	token := c.client.Unsubscribe(topics...)
	token.Wait()
	return token.Error()
}

// Disconnect marks the backend offline and closes the connection. A clean
// disconnect suppresses the will, so the status is published explicitly.
func (c *Client) Disconnect() {
	if c.client.IsConnected() {
		c.announce(c.client, StatusOffline)
	}
	c.client.Disconnect(quiesceMillis)
	logger.Info("disconnected from MQTT broker")
}

func (c *Client) IsConnected() bool {
	return c.client.IsConnected()
}

func (c *Client) subscriptions() map[string]subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]subscription, len(c.subs))
	for topic, sub := range c.subs {
		out[topic] = sub
	}
	return out
}

func deliver(handler MessageHandler) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		handler(msg.Topic(), msg.Payload())
	}
}
