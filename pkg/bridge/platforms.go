package bridge

import (
	"fmt"
	"slices"

	"github.com/miguelangel-nubla/homeassistant-abode/pkg/abode"
	"github.com/miguelangel-nubla/homeassistant-abode/pkg/homeassistant"
)

// platformSetup builds the entities of one platform for a system.
type platformSetup func(system *System) ([]homeassistant.Entity, error)

var platformSetups = map[string]platformSetup{
	"alarm_control_panel": setupAlarmControlPanel,
	"binary_sensor":       setupBinarySensor,
	"lock":                setupLock,
	"switch":              setupSwitch,
	"cover":               setupCover,
	"camera":              setupCamera,
	"light":               setupLight,
	"sensor":              setupSensor,
}

const (
	payloadOn  = "ON"
	payloadOff = "OFF"
)

func onOff(on bool) string {
	if on {
		return payloadOn
	}
	return payloadOff
}

func devicesOfType(system *System, genericTypes ...string) ([]abode.Device, error) {
	devices, err := system.Client.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	return slices.DeleteFunc(devices, func(device abode.Device) bool {
		return !slices.Contains(genericTypes, device.GenericType())
	}), nil
}

// automations returns the automations whose quick-action flag matches.
func automations(system *System, quickActions bool) ([]abode.Automation, error) {
	all, err := system.Client.Automations()
	if err != nil {
		return nil, fmt.Errorf("failed to list automations: %w", err)
	}

	return slices.DeleteFunc(all, func(automation abode.Automation) bool {
		return (automation.SubType() == abode.SubTypeQuickAction) != quickActions
	}), nil
}

func unknownCommand(payload string) error {
	return fmt.Errorf("%w: %q", homeassistant.ErrUnknownCommand, payload)
}

// skipDevice logs a device whose generic type promises a capability it does
// not implement.
func skipDevice(system *System, platform string, device abode.Device) {
	system.logger().WithFields(map[string]any{
		"platform":  platform,
		"device_id": device.ID(),
	}).Warn("Device does not implement the platform capability, skipping")
}
