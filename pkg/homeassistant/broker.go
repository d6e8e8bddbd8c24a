package homeassistant

import "github.com/miguelangel-nubla/homeassistant-abode/pkg/mqtt"

// Broker is the part of the MQTT client the host adapter needs.
type Broker interface {
	Publish(topic, payload string, retain bool) error
	Subscribe(topic string, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
	IsConnected() bool
	SetOnConnectCallback(callback func())
	SetOnDisconnectCallback(callback func())
}

var _ Broker = (*mqtt.Client)(nil)
