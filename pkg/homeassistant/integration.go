package homeassistant

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/miguelangel-nubla/homeassistant-abode/pkg/config"
)

const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

type BridgeEntity struct {
	EntityType       string
	Name             string
	Icon             string
	GetStatus        func(*Host) string
	GetAttributes    func(*Host) map[string]any
	GetShutdownState func(*Host) string
}

type BridgeEntityManager struct {
	host     *Host
	entities []BridgeEntity
}

// Host is the home-automation host as seen over MQTT: an event bus, a
// service registry and the entities announced through discovery.
type Host struct {
	broker           Broker
	config           *config.HomeAssistantConfig
	logger           *logrus.Logger
	version          string
	bridgeID         string
	bridgeDeviceInfo *DeviceInfo
	bridgeEntities   *BridgeEntityManager

	Bus      *Bus
	Services *ServiceRegistry
	Entities *EntityManager

	mutex       sync.Mutex
	eventTypes  []string
	eventsFired int
}

func NewHost(
	broker Broker,
	haConfig *config.HomeAssistantConfig,
	version string,
	logger *logrus.Logger,
) *Host {
	host := &Host{
		broker:   broker,
		config:   haConfig,
		logger:   logger,
		version:  version,
		bridgeID: generateBridgeDeviceID(haConfig.InstanceID),
	}

	host.Bus = newBus(host)
	host.Services = newServiceRegistry(host)
	host.Entities = newEntityManager(host)

	host.bridgeDeviceInfo = &DeviceInfo{
		Identifiers:  []string{host.bridgeID},
		Name:         "HA Abode Bridge",
		Model:        "https://github.com/miguelangel-nubla/homeassistant-abode",
		Manufacturer: "Miguel Angel Nubla",
		SWVersion:    version,
	}

	host.bridgeEntities = &BridgeEntityManager{
		host: host,
		entities: []BridgeEntity{
			{
				EntityType: "diagnostics",
				Name:       "Diagnostics",
				Icon:       "mdi:stethoscope",
				GetStatus:  func(h *Host) string { return StatusOnline },
				GetAttributes: func(h *Host) map[string]any {
					h.mutex.Lock()
					defer h.mutex.Unlock()
					return map[string]any{
						"entity_count": len(h.Entities.Entities()),
						"services":     h.Services.Services(),
						"event_types":  append([]string(nil), h.eventTypes...),
						"events_fired": h.eventsFired,
					}
				},
				GetShutdownState: func(h *Host) string { return StatusOffline },
			},
		},
	}

	// Count relayed events for the diagnostics sensor.
	host.Bus.Listen(MatchAll, func(event Event) {
		if !event.Remote() {
			return
		}
		host.mutex.Lock()
		host.eventsFired++
		host.mutex.Unlock()
	})

	return host
}

// BridgeDeviceInfo is the device every bridge-level entity hangs off.
func (h *Host) BridgeDeviceInfo() *DeviceInfo {
	return h.bridgeDeviceInfo
}

// Connected reports whether the MQTT session to the host is up.
func (h *Host) Connected() bool {
	return h.broker.IsConnected()
}

func (h *Host) Logger() *logrus.Logger {
	return h.logger
}

func (bem *BridgeEntityManager) publishAllDiscoveryConfigs() error {
	for _, entity := range bem.entities {
		if err := bem.host.publishBridgeEntityDiscoveryConfig(entity.EntityType, entity.Name, entity.Icon); err != nil {
			bem.host.logger.WithError(err).Errorf("Failed to publish %s discovery config", entity.Name)
			return err
		}
	}
	return nil
}

func (bem *BridgeEntityManager) publishAllStates() {
	for _, entity := range bem.entities {
		if err := bem.publishEntityState(entity); err != nil {
			bem.host.logger.WithError(err).Errorf("Failed to update %s", entity.Name)
		}
	}
}

func (bem *BridgeEntityManager) publishEntityState(entity BridgeEntity) error {
	topics := bem.host.generateBridgeEntityTopics(entity.EntityType)
	status := entity.GetStatus(bem.host)

	if err := bem.host.broker.Publish(topics.StateTopic, status, false); err != nil {
		return err
	}

	attributes := entity.GetAttributes(bem.host)
	attributesJSON, err := json.Marshal(attributes)
	if err != nil {
		return fmt.Errorf("failed to marshal %s attributes: %w", entity.Name, err)
	}

	return bem.host.broker.Publish(topics.AttributesTopic, string(attributesJSON), false)
}

func (bem *BridgeEntityManager) publishOfflineStates() {
	for _, entity := range bem.entities {
		topics := bem.host.generateBridgeEntityTopics(entity.EntityType)
		shutdownState := entity.GetShutdownState(bem.host)
		if err := bem.host.broker.Publish(topics.StateTopic, shutdownState, false); err != nil {
			bem.host.logger.WithError(err).Errorf("Failed to publish %s shutdown state", entity.Name)
		}
	}
}

func (h *Host) Start() error {
	h.logger.Info("Starting Home Assistant host")

	h.broker.SetOnConnectCallback(h.handleConnect)
	h.broker.SetOnDisconnectCallback(h.handleDisconnect)

	if err := h.broker.Subscribe(h.config.StatusTopic, h.handleStatus); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", h.config.StatusTopic, err)
	}

	if h.broker.IsConnected() {
		h.handleConnect()
	}

	return nil
}

func (h *Host) Stop() error {
	h.logger.Info("Stopping Home Assistant host")

	if err := h.broker.Unsubscribe(h.config.StatusTopic); err != nil {
		h.logger.WithError(err).Debug("Failed to unsubscribe status topic")
	}

	if h.broker.IsConnected() {
		h.bridgeEntities.publishOfflineStates()

		if err := h.publishBridgeAvailability(StatusOffline); err != nil {
			h.logger.WithError(err).Error("Failed to publish bridge offline status")
		}
	}

	return nil
}

// RefreshDiagnostics republishes the bridge diagnostics sensor.
func (h *Host) RefreshDiagnostics() {
	if h.broker.IsConnected() {
		h.bridgeEntities.publishAllStates()
	}
}

func (h *Host) GenerateBridgeAvailabilityTopic() string {
	return GenerateBridgeAvailabilityTopic(h.config)
}

func GenerateBridgeAvailabilityTopic(haConfig *config.HomeAssistantConfig) string {
	bridgeID := generateBridgeDeviceID(haConfig.InstanceID)
	return fmt.Sprintf("%s/sensor/%s/availability", haConfig.DiscoveryPrefix, bridgeID)
}

func (h *Host) handleConnect() {
	h.logger.Info("MQTT connected, publishing bridge availability and discovery configs")

	h.publishDiscovery()

	if err := h.publishBridgeAvailability(StatusOnline); err != nil {
		h.logger.WithError(err).Error("Failed to publish bridge availability")
	}
}

func (h *Host) handleDisconnect() {
	h.logger.Warn("MQTT disconnected, entity updates paused until reconnect")
}

// handleStatus reacts to the host birth and last-will messages.
func (h *Host) handleStatus(_ string, payload []byte) {
	status := string(payload)
	h.logger.WithField("status", status).Debug("Home Assistant status changed")

	if status != StatusOnline {
		return
	}

	h.publishDiscovery()
	h.Bus.FireLocal(EventHomeAssistantStart, nil)
}

func (h *Host) publishDiscovery() {
	if err := h.bridgeEntities.publishAllDiscoveryConfigs(); err != nil {
		h.logger.WithError(err).Error("Failed to publish bridge entity discovery configs")
	}

	h.mutex.Lock()
	eventTypes := append([]string(nil), h.eventTypes...)
	h.mutex.Unlock()

	for _, eventType := range eventTypes {
		if err := h.publishEventEntityDiscoveryConfig(eventType); err != nil {
			h.logger.WithField("event_type", eventType).WithError(err).Error("Failed to publish event discovery config")
		}
	}

	h.Entities.PublishDiscovery()
	h.bridgeEntities.publishAllStates()
}

func (h *Host) publishBridgeAvailability(status string) error {
	return h.broker.Publish(h.GenerateBridgeAvailabilityTopic(), status, true)
}

func (h *Host) generateBridgeEntityTopics(entityType string) *EntityTopics {
	entityID := fmt.Sprintf("%s-%s", h.bridgeID, entityType)
	baseTopic := fmt.Sprintf("%s/sensor/%s", h.config.DiscoveryPrefix, entityID)

	return &EntityTopics{
		ConfigTopic:     baseTopic + "/config",
		BaseTopic:       baseTopic,
		StateTopic:      baseTopic + "/state",
		AttributesTopic: baseTopic + "/attributes",
	}
}

func (h *Host) publishBridgeEntityDiscoveryConfig(entityType, name, icon string) error {
	topics := h.generateBridgeEntityTopics(entityType)

	sensorConfig := EntityConfig{
		Name:            name,
		UniqueID:        fmt.Sprintf("%s-%s", h.bridgeID, entityType),
		TildeTopic:      topics.BaseTopic,
		StateTopic:      "~/state",
		AttributesTopic: "~/attributes",
		Availability: []AvailabilityConfig{
			{
				Topic: h.GenerateBridgeAvailabilityTopic(),
			},
		},
		Device:         h.bridgeDeviceInfo,
		Icon:           icon,
		EntityCategory: "diagnostic",
	}

	configJSON, err := json.Marshal(sensorConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal %s discovery config: %w", entityType, err)
	}

	return h.broker.Publish(topics.ConfigTopic, string(configJSON), true)
}

func (h *Host) publishEventEntityDiscoveryConfig(eventType string) error {
	objectID := Slugify(eventType)

	eventConfig := EntityConfig{
		Name:            eventType,
		ObjectID:        objectID,
		UniqueID:        fmt.Sprintf("%s-event-%s", h.bridgeID, objectID),
		StateTopic:      h.EventTopic(eventType),
		AttributesTopic: h.EventTopic(eventType),
		Availability: []AvailabilityConfig{
			{
				Topic: h.GenerateBridgeAvailabilityTopic(),
			},
		},
		Device:     h.bridgeDeviceInfo,
		EventTypes: []string{eventType},
	}

	configJSON, err := json.Marshal(eventConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event config: %w", eventType, err)
	}

	configTopic := fmt.Sprintf("%s/event/%s/%s/config", h.config.DiscoveryPrefix, h.bridgeID, objectID)
	return h.broker.Publish(configTopic, string(configJSON), true)
}
