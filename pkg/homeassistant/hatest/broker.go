// Package hatest provides an in-memory MQTT broker for tests of code built on
// the homeassistant package.
package hatest

import (
	"strings"
	"sync"

	"github.com/miguelangel-nubla/homeassistant-abode/pkg/mqtt"
)

type Message struct {
	Topic   string
	Payload string
	Retain  bool
}

// Broker records publishes and lets tests deliver messages to subscribers.
// It starts connected.
type Broker struct {
	mutex         sync.Mutex
	connected     bool
	published     []Message
	retained      map[string]string
	subscriptions map[string]mqtt.MessageHandler
	onConnect     func()
	onDisconnect  func()
	publishErr    error
}

func NewBroker() *Broker {
	return &Broker{
		connected:     true,
		retained:      make(map[string]string),
		subscriptions: make(map[string]mqtt.MessageHandler),
	}
}

func (b *Broker) Publish(topic, payload string, retain bool) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if !b.connected {
		return mqtt.ErrNotConnected
	}
	if b.publishErr != nil {
		return b.publishErr
	}

	b.published = append(b.published, Message{Topic: topic, Payload: payload, Retain: retain})
	if retain {
		if payload == "" {
			delete(b.retained, topic)
		} else {
			b.retained[topic] = payload
		}
	}
	return nil
}

func (b *Broker) Subscribe(topic string, handler mqtt.MessageHandler) error {
	if topic == "" {
		return mqtt.ErrInvalidTopic
	}
	b.mutex.Lock()
	b.subscriptions[topic] = handler
	b.mutex.Unlock()
	return nil
}

func (b *Broker) Unsubscribe(topic string) error {
	b.mutex.Lock()
	delete(b.subscriptions, topic)
	b.mutex.Unlock()
	return nil
}

func (b *Broker) IsConnected() bool {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.connected
}

func (b *Broker) SetOnConnectCallback(callback func()) {
	b.mutex.Lock()
	b.onConnect = callback
	b.mutex.Unlock()
}

func (b *Broker) SetOnDisconnectCallback(callback func()) {
	b.mutex.Lock()
	b.onDisconnect = callback
	b.mutex.Unlock()
}

// SetConnected flips the connection state and runs the matching callback.
func (b *Broker) SetConnected(connected bool) {
	b.mutex.Lock()
	b.connected = connected
	callback := b.onDisconnect
	if connected {
		callback = b.onConnect
	}
	b.mutex.Unlock()

	if callback != nil {
		callback()
	}
}

// SetPublishError makes every later Publish fail with err.
func (b *Broker) SetPublishError(err error) {
	b.mutex.Lock()
	b.publishErr = err
	b.mutex.Unlock()
}

// Deliver hands payload to the subscriber of topic. It reports whether
// anyone was subscribed.
func (b *Broker) Deliver(topic, payload string) bool {
	b.mutex.Lock()
	handler, ok := b.subscriptions[topic]
	b.mutex.Unlock()

	if !ok {
		return false
	}
	handler(topic, []byte(payload))
	return true
}

func (b *Broker) Subscribed(topic string) bool {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	_, ok := b.subscriptions[topic]
	return ok
}

func (b *Broker) Subscriptions() []string {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	topics := make([]string, 0, len(b.subscriptions))
	for topic := range b.subscriptions {
		topics = append(topics, topic)
	}
	return topics
}

func (b *Broker) Published() []Message {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return append([]Message(nil), b.published...)
}

// PublishedTo returns the payloads published to topic, oldest first.
func (b *Broker) PublishedTo(topic string) []string {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	var payloads []string
	for _, msg := range b.published {
		if msg.Topic == topic {
			payloads = append(payloads, msg.Payload)
		}
	}
	return payloads
}

// Last returns the most recent payload published to topic.
func (b *Broker) Last(topic string) (string, bool) {
	payloads := b.PublishedTo(topic)
	if len(payloads) == 0 {
		return "", false
	}
	return payloads[len(payloads)-1], true
}

// Retained returns the retained payload of topic.
func (b *Broker) Retained(topic string) (string, bool) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	payload, ok := b.retained[topic]
	return payload, ok
}

// RetainedWithPrefix lists retained topics that start with prefix.
func (b *Broker) RetainedWithPrefix(prefix string) []string {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	var topics []string
	for topic := range b.retained {
		if strings.HasPrefix(topic, prefix) {
			topics = append(topics, topic)
		}
	}
	return topics
}

func (b *Broker) Reset() {
	b.mutex.Lock()
	b.published = nil
	b.mutex.Unlock()
}
