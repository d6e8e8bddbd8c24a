package homeassistant

import "fmt"

type DeviceInfo struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Model        string   `json:"model,omitempty"`
	Manufacturer string   `json:"manufacturer,omitempty"`
	SWVersion    string   `json:"sw_version,omitempty"`
	ViaDevice    string   `json:"via_device,omitempty"`
}

type AvailabilityConfig struct {
	Topic string `json:"topic"`
}

// EntityConfig is the MQTT discovery payload. Platforms fill in the fields
// their component understands and leave the rest empty.
type EntityConfig struct {
	Name              string               `json:"name"`
	ObjectID          string               `json:"object_id,omitempty"`
	UniqueID          string               `json:"unique_id"`
	TildeTopic        string               `json:"~,omitempty"`
	StateTopic        string               `json:"state_topic,omitempty"`
	AttributesTopic   string               `json:"json_attributes_topic,omitempty"`
	CommandTopic      string               `json:"command_topic,omitempty"`
	Topic             string               `json:"topic,omitempty"`
	Availability      []AvailabilityConfig `json:"availability,omitempty"`
	AvailabilityMode  string               `json:"availability_mode,omitempty"`
	Device            *DeviceInfo          `json:"device,omitempty"`
	Icon              string               `json:"icon,omitempty"`
	DeviceClass       string               `json:"device_class,omitempty"`
	ForceUpdate       bool                 `json:"force_update,omitempty"`
	EntityCategory    string               `json:"entity_category,omitempty"`
	UnitOfMeasurement string               `json:"unit_of_measurement,omitempty"`
	StateClass        string               `json:"state_class,omitempty"`
	Optimistic        bool                 `json:"optimistic,omitempty"`

	// light, json schema
	Schema              string   `json:"schema,omitempty"`
	Brightness          bool     `json:"brightness,omitempty"`
	BrightnessScale     int      `json:"brightness_scale,omitempty"`
	SupportedColorModes []string `json:"supported_color_modes,omitempty"`

	// alarm_control_panel
	CodeArmRequired   *bool    `json:"code_arm_required,omitempty"`
	SupportedFeatures []string `json:"supported_features,omitempty"`

	// event
	EventTypes []string `json:"event_types,omitempty"`
}

// EntityTopics are the topics of a single entity, relative to its base.
type EntityTopics struct {
	ConfigTopic     string
	BaseTopic       string
	StateTopic      string
	AttributesTopic string
	CommandTopic    string
	ImageTopic      string
}

func generateBridgeDeviceID(instanceID string) string {
	return fmt.Sprintf("ha-abode-bridge-%s", instanceID)
}

func (h *Host) generateEntityTopics(platform, objectID string) *EntityTopics {
	baseTopic := fmt.Sprintf("%s/%s/%s", h.config.BaseTopic, platform, objectID)

	return &EntityTopics{
		ConfigTopic:     fmt.Sprintf("%s/%s/%s/%s/config", h.config.DiscoveryPrefix, platform, h.bridgeID, objectID),
		BaseTopic:       baseTopic,
		StateTopic:      baseTopic + "/state",
		AttributesTopic: baseTopic + "/attributes",
		CommandTopic:    baseTopic + "/set",
		ImageTopic:      baseTopic + "/image",
	}
}

// EventTopic is where bus events of eventType are published.
func (h *Host) EventTopic(eventType string) string {
	return fmt.Sprintf("%s/events/%s", h.config.BaseTopic, eventType)
}

// ServiceTopic is where calls to domain.service are received.
func (h *Host) ServiceTopic(domain, service string) string {
	return fmt.Sprintf("%s/service/%s/%s", h.config.BaseTopic, domain, service)
}
