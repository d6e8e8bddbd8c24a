package bridge

import (
	"github.com/miguelangel-nubla/homeassistant-abode/pkg/abode"
	"github.com/miguelangel-nubla/homeassistant-abode/pkg/homeassistant"
)

type switchEntity struct {
	*DeviceEntity
	sw abode.Switch
}

// automationSwitchEntity turns an automation on and off.
type automationSwitchEntity struct {
	*AutomationEntity
}

func setupSwitch(system *System) ([]homeassistant.Entity, error) {
	devices, err := devicesOfType(system, abode.GenericSwitch)
	if err != nil {
		return nil, err
	}

	var entities []homeassistant.Entity
	for _, device := range devices {
		sw, ok := device.(abode.Switch)
		if !ok {
			skipDevice(system, "switch", device)
			continue
		}
		entity := &switchEntity{sw: sw}
		entity.DeviceEntity = newDeviceEntity(system, device, "switch", entity)
		entities = append(entities, entity)
	}

	regular, err := automations(system, false)
	if err != nil {
		return nil, err
	}
	for _, automation := range regular {
		entity := &automationSwitchEntity{}
		entity.AutomationEntity = newAutomationEntity(system, automation, "switch", abode.AutomationEditGroup, entity)
		entities = append(entities, entity)
	}

	return entities, nil
}

func (e *switchEntity) State() string {
	return onOff(e.sw.IsOn())
}

func (e *switchEntity) HandleCommand(payload string) error {
	switch payload {
	case payloadOn:
		return e.sw.SwitchOn()
	case payloadOff:
		return e.sw.SwitchOff()
	default:
		return unknownCommand(payload)
	}
}

func (e *automationSwitchEntity) HandleCommand(payload string) error {
	switch payload {
	case payloadOn:
		return e.automation.SetActive(true)
	case payloadOff:
		return e.automation.SetActive(false)
	default:
		return unknownCommand(payload)
	}
}

func (e *automationSwitchEntity) ConfigureDiscovery(cfg *homeassistant.EntityConfig) {
	cfg.Icon = "mdi:robot"
}
