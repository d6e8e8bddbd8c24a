package bridge

import (
	"fmt"

	"github.com/miguelangel-nubla/homeassistant-abode/pkg/abode"
	"github.com/miguelangel-nubla/homeassistant-abode/pkg/homeassistant"
)

// DeviceEntity wraps one vendor device. Platform entities embed it and
// override State and, when they take commands, HandleCommand.
type DeviceEntity struct {
	homeassistant.EntityBase

	system   *System
	device   abode.Device
	platform string
	// self is the outermost entity, handed to the host on updates.
	self homeassistant.Entity
}

func newDeviceEntity(system *System, device abode.Device, platform string, self homeassistant.Entity) *DeviceEntity {
	return &DeviceEntity{
		system:   system,
		device:   device,
		platform: platform,
		self:     self,
	}
}

func (e *DeviceEntity) Device() abode.Device { return e.device }
func (e *DeviceEntity) Platform() string     { return e.platform }
func (e *DeviceEntity) Name() string         { return e.device.Name() }
func (e *DeviceEntity) UniqueID() string     { return e.device.UUID() }
func (e *DeviceEntity) State() string        { return e.device.Status() }
func (e *DeviceEntity) ShouldPoll() bool     { return e.system.Polling }

func (e *DeviceEntity) Attributes() map[string]any {
	return map[string]any{
		AttrAttribution: Attribution,
		"device_id":     e.device.ID(),
		"battery_low":   e.device.BatteryLow(),
		"no_response":   e.device.NoResponse(),
		"device_type":   e.device.Type(),
	}
}

func (e *DeviceEntity) DeviceInfo() *homeassistant.DeviceInfo {
	return &homeassistant.DeviceInfo{
		Identifiers:  []string{fmt.Sprintf("%s_%s", Domain, e.device.ID())},
		Manufacturer: "Abode",
		Name:         e.device.Name(),
		Model:        e.device.Type(),
	}
}

func (e *DeviceEntity) Update() error {
	return e.device.Refresh()
}

// AddedToHost subscribes to state changes of the device.
func (e *DeviceEntity) AddedToHost(host homeassistant.EntityHost) error {
	e.Attach(host)
	return e.system.Client.Events().AddDeviceCallback(e.device.ID(), e.updateCallback)
}

func (e *DeviceEntity) WillRemoveFromHost() error {
	e.Detach()
	return e.system.Client.Events().RemoveAllDeviceCallbacks(e.device.ID())
}

func (e *DeviceEntity) updateCallback(abode.Device) {
	e.ScheduleUpdate(e.self)
}

// AutomationEntity wraps one vendor automation.
type AutomationEntity struct {
	homeassistant.EntityBase

	system     *System
	automation abode.Automation
	platform   string
	// event is the timeline group that signals an edit of the automation.
	event string
	self  homeassistant.Entity
}

func newAutomationEntity(system *System, automation abode.Automation, platform, event string, self homeassistant.Entity) *AutomationEntity {
	return &AutomationEntity{
		system:     system,
		automation: automation,
		platform:   platform,
		event:      event,
		self:       self,
	}
}

func (e *AutomationEntity) Automation() abode.Automation { return e.automation }
func (e *AutomationEntity) Platform() string             { return e.platform }
func (e *AutomationEntity) Name() string                 { return e.automation.Name() }
func (e *AutomationEntity) ShouldPoll() bool             { return e.system.Polling }

func (e *AutomationEntity) UniqueID() string {
	return fmt.Sprintf("%s_automation_%s", Domain, e.automation.ID())
}

func (e *AutomationEntity) State() string {
	if e.automation.IsActive() {
		return "ON"
	}
	return "OFF"
}

func (e *AutomationEntity) Attributes() map[string]any {
	return map[string]any{
		AttrAttribution: Attribution,
		"automation_id": e.automation.ID(),
		"type":          e.automation.Type(),
		"sub_type":      e.automation.SubType(),
	}
}

// Automations are not hardware, so they get no device.
func (e *AutomationEntity) DeviceInfo() *homeassistant.DeviceInfo { return nil }

func (e *AutomationEntity) Update() error {
	return e.automation.Refresh()
}

func (e *AutomationEntity) AddedToHost(host homeassistant.EntityHost) error {
	e.Attach(host)
	if e.event == "" {
		return nil
	}
	return e.system.Client.Events().AddEventCallback(e.event, e.updateCallback)
}

// WillRemoveFromHost detaches from the host. The vendor cannot drop a single
// event callback, so later edit events are ignored instead.
func (e *AutomationEntity) WillRemoveFromHost() error {
	e.Detach()
	return nil
}

func (e *AutomationEntity) updateCallback(map[string]any) {
	if err := e.automation.Refresh(); err != nil {
		e.system.logger().WithField("automation_id", e.automation.ID()).WithError(err).Warn("Failed to refresh automation")
	}
	e.ScheduleUpdate(e.self)
}
