package bridge

import (
	"github.com/miguelangel-nubla/homeassistant-abode/pkg/abode"
	"github.com/miguelangel-nubla/homeassistant-abode/pkg/homeassistant"
)

var binarySensorTypes = []string{
	abode.GenericConnectivity,
	abode.GenericMoisture,
	abode.GenericMotion,
	abode.GenericOccupancy,
	abode.GenericDoor,
}

type binarySensorEntity struct {
	*DeviceEntity
	sensor abode.BinarySensor
}

// quickActionEntity shows a quick action; trigger_quick_action runs it.
type quickActionEntity struct {
	*AutomationEntity
}

func setupBinarySensor(system *System) ([]homeassistant.Entity, error) {
	devices, err := devicesOfType(system, binarySensorTypes...)
	if err != nil {
		return nil, err
	}

	var entities []homeassistant.Entity
	for _, device := range devices {
		sensor, ok := device.(abode.BinarySensor)
		if !ok {
			skipDevice(system, "binary_sensor", device)
			continue
		}
		entity := &binarySensorEntity{sensor: sensor}
		entity.DeviceEntity = newDeviceEntity(system, device, "binary_sensor", entity)
		entities = append(entities, entity)
	}

	quickActions, err := automations(system, true)
	if err != nil {
		return nil, err
	}
	for _, automation := range quickActions {
		entity := &quickActionEntity{}
		entity.AutomationEntity = newAutomationEntity(system, automation, "binary_sensor", abode.AutomationEditGroup, entity)
		entities = append(entities, entity)
	}

	return entities, nil
}

func (e *binarySensorEntity) State() string {
	return onOff(e.sensor.IsOn())
}

func (e *binarySensorEntity) ConfigureDiscovery(cfg *homeassistant.EntityConfig) {
	// Generic types are named after the host's device classes.
	cfg.DeviceClass = e.device.GenericType()
}

// Trigger runs the quick action. Regular automations have no trigger.
func (e *quickActionEntity) Trigger() error {
	return e.automation.Trigger()
}

func (e *quickActionEntity) ConfigureDiscovery(cfg *homeassistant.EntityConfig) {
	cfg.Icon = "mdi:play-circle-outline"
}
