package mqtt

import (
	"crypto/tls"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"github.com/miguelangel-nubla/homeassistant-abode/pkg/config"
)

const operationTimeout = 5 * time.Second

// MessageHandler is invoked for every message received on a subscribed topic.
type MessageHandler func(topic string, payload []byte)

// Client represents an MQTT client with auto-reconnection capabilities
type Client struct {
	client       mqtt.Client
	config       *config.MQTTConfig
	logger       *logrus.Logger
	connected    bool
	mutex        sync.RWMutex
	willTopic    string
	onConnect    func()
	onDisconnect func()

	subMutex      sync.RWMutex
	subscriptions map[string]MessageHandler
}

// NewClient creates a new MQTT client
func NewClient(cfg *config.MQTTConfig, willTopic string, logger *logrus.Logger) (*Client, error) {
	c := &Client{
		config:        cfg,
		logger:        logger,
		willTopic:     willTopic,
		subscriptions: make(map[string]MessageHandler),
	}

	opts := c.buildClientOptions()
	c.client = mqtt.NewClient(opts)

	return c, nil
}

// buildClientOptions creates and configures MQTT client options
func (c *Client) buildClientOptions() *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions().
		AddBroker(c.config.BrokerURL).
		SetClientID(c.config.ClientID).
		SetKeepAlive(time.Duration(c.config.KeepAlive) * time.Second).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetMaxReconnectInterval(60 * time.Second).
		SetConnectRetryInterval(2 * time.Second).
		SetConnectRetry(true).
		SetConnectTimeout(10 * time.Second).
		SetPingTimeout(5 * time.Second).
		SetWriteTimeout(5 * time.Second).
		SetOrderMatters(false).
		SetOnConnectHandler(c.handleConnect).
		SetConnectionLostHandler(c.handleDisconnect)

	// Credentials
	if c.config.Username != "" {
		opts.SetUsername(c.config.Username)
		if c.config.Password != "" {
			opts.SetPassword(c.config.Password)
		}
	}

	// TLS for secure connections
	if c.config.IsSecure() {
		opts.SetTLSConfig(&tls.Config{
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: c.config.InsecureSkipVerify, // #nosec G402 - configurable for dev environments
		})
	}

	// Will message (retained for availability)
	if c.willTopic != "" {
		opts.SetWill(c.willTopic, "offline", c.config.QoS, true)
	}

	return opts
}

// SetOnConnectCallback sets the callback function to be called when connected
func (c *Client) SetOnConnectCallback(callback func()) {
	c.mutex.Lock()
	c.onConnect = callback
	c.mutex.Unlock()
}

// SetOnDisconnectCallback sets the callback function to be called when disconnected
func (c *Client) SetOnDisconnectCallback(callback func()) {
	c.mutex.Lock()
	c.onDisconnect = callback
	c.mutex.Unlock()
}

// Start starts the MQTT client (implements Service interface)
func (c *Client) Start() error {
	return c.Connect()
}

// Connect connects to the MQTT broker
func (c *Client) Connect() error {
	c.logger.Infof("Connecting to MQTT broker: %s", c.config.BrokerURL)

	token := c.client.Connect()
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	return nil
}

// Stop stops the MQTT client (implements Service interface)
func (c *Client) Stop() error {
	c.Disconnect()
	return nil
}

// Disconnect disconnects from the MQTT broker
func (c *Client) Disconnect() {
	c.logger.Info("Disconnecting from MQTT broker")

	// Publish offline status before disconnecting
	if c.willTopic != "" && c.IsConnected() {
		_ = c.Publish(c.willTopic, "offline", true)
	}

	c.client.Disconnect(250)
	c.setConnected(false)
}

// Publish publishes a message to the specified topic with retain flag
func (c *Client) Publish(topic, payload string, retain bool) error {
	if !c.IsConnected() {
		c.logger.Debugf("MQTT not connected, cannot publish to %s", topic)
		return ErrNotConnected
	}

	c.logger.Debugf("Publishing to topic %s (%d bytes)", topic, len(payload))

	token := c.client.Publish(topic, c.config.QoS, retain, payload)
	token.Wait()
	if err := token.Error(); err != nil {
		c.logger.Errorf("Failed to publish to %s: %v", topic, err)
		return err
	}
	c.logger.Debugf("Successfully published to %s", topic)

	return nil
}

// PublishWithRetry publishes a message with retry logic for critical messages
func (c *Client) PublishWithRetry(topic, payload string, maxRetries int, retryDelay time.Duration) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := c.attemptPublish(topic, payload, attempt, maxRetries); err == nil {
			return nil
		}

		if attempt < maxRetries {
			c.logger.Debugf("Waiting %v before retry %d for topic %s", retryDelay, attempt+2, topic)
			time.Sleep(retryDelay)
		}
	}

	return fmt.Errorf("failed to publish to %s after %d attempts", topic, maxRetries+1)
}

func (c *Client) attemptPublish(topic, payload string, attempt, maxRetries int) error {
	if !c.IsConnected() {
		c.logger.Debugf("MQTT not connected during publish attempt %d/%d for topic %s", attempt+1, maxRetries+1, topic)
		return ErrNotConnected
	}

	if err := c.Publish(topic, payload, false); err != nil {
		c.logger.Warnf("Publish attempt %d/%d failed for topic %s: %v", attempt+1, maxRetries+1, topic, err)
		return err
	}

	return nil
}

// Subscribe registers handler for topic. The subscription is remembered and
// restored whenever the connection comes back.
func (c *Client) Subscribe(topic string, handler MessageHandler) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if handler == nil {
		return fmt.Errorf("%w: handler cannot be nil", ErrSubscribeFailed)
	}

	c.subMutex.Lock()
	c.subscriptions[topic] = handler
	c.subMutex.Unlock()

	// Not connected yet: handleConnect subscribes once the session is up.
	if !c.IsConnected() {
		c.logger.Debugf("MQTT not connected, deferring subscription to %s", topic)
		return nil
	}

	return c.subscribe(topic, handler)
}

func (c *Client) subscribe(topic string, handler MessageHandler) error {
	token := c.client.Subscribe(topic, c.config.QoS, c.wrapHandler(handler))
	if !token.WaitTimeout(operationTimeout) {
		return fmt.Errorf("%w: %s: timeout after %v", ErrSubscribeFailed, topic, operationTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSubscribeFailed, topic, err)
	}

	c.logger.Debugf("Subscribed to %s", topic)
	return nil
}

// Unsubscribe forgets the subscription for topic.
func (c *Client) Unsubscribe(topic string) error {
	if topic == "" {
		return ErrInvalidTopic
	}

	c.subMutex.Lock()
	delete(c.subscriptions, topic)
	c.subMutex.Unlock()

	if !c.IsConnected() {
		return nil
	}

	token := c.client.Unsubscribe(topic)
	if !token.WaitTimeout(operationTimeout) {
		return fmt.Errorf("%w: %s: timeout after %v", ErrUnsubscribeFailed, topic, operationTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrUnsubscribeFailed, topic, err)
	}

	return nil
}

// SubscriptionCount returns the number of tracked subscriptions.
func (c *Client) SubscriptionCount() int {
	c.subMutex.RLock()
	defer c.subMutex.RUnlock()
	return len(c.subscriptions)
}

// wrapHandler adapts a MessageHandler to paho and keeps a panicking handler
// from taking the client's router down.
func (c *Client) wrapHandler(handler MessageHandler) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				c.logger.WithField("topic", msg.Topic()).Errorf("Panic in MQTT message handler: %v", r)
			}
		}()
		handler(msg.Topic(), msg.Payload())
	}
}

func (c *Client) restoreSubscriptions() {
	c.subMutex.RLock()
	subscriptions := make(map[string]MessageHandler, len(c.subscriptions))
	for topic, handler := range c.subscriptions {
		subscriptions[topic] = handler
	}
	c.subMutex.RUnlock()

	for topic, handler := range subscriptions {
		if err := c.subscribe(topic, handler); err != nil {
			c.logger.WithError(err).Errorf("Failed to restore subscription to %s", topic)
		}
	}
}

// IsConnected returns true if the client is connected to the broker
func (c *Client) IsConnected() bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.connected && c.client.IsConnected()
}

// setConnected sets the connection status
func (c *Client) setConnected(connected bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.connected = connected
}

// handleConnect is called when the client connects to the broker
func (c *Client) handleConnect(client mqtt.Client) {
	c.logger.Info("MQTT client connected")
	c.setConnected(true)

	// Publish online status (retained for will message)
	if c.willTopic != "" {
		if err := c.Publish(c.willTopic, "online", true); err != nil {
			c.logger.Errorf("Failed to publish online status: %v", err)
		}
	}

	// Clean sessions lose subscriptions on reconnect
	c.restoreSubscriptions()

	c.mutex.RLock()
	onConnect := c.onConnect
	c.mutex.RUnlock()

	// Call user callback
	if onConnect != nil {
		onConnect()
	}
}

// handleDisconnect is called when the connection to the broker is lost
func (c *Client) handleDisconnect(client mqtt.Client, err error) {
	c.logger.Errorf("MQTT connection lost: %v", err)
	c.logger.Info("MQTT client will attempt automatic reconnection...")
	c.setConnected(false)

	c.mutex.RLock()
	onDisconnect := c.onDisconnect
	c.mutex.RUnlock()

	// Call user callback
	if onDisconnect != nil {
		onDisconnect()
	}
}

// WaitForConnection waits for the client to connect, with a timeout
func (c *Client) WaitForConnection(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if c.IsConnected() {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("timeout waiting for MQTT connection")
}
