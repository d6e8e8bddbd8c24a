package bridge

import (
	"github.com/miguelangel-nubla/homeassistant-abode/pkg/abode"
	"github.com/miguelangel-nubla/homeassistant-abode/pkg/homeassistant"
)

type coverEntity struct {
	*DeviceEntity
	sw abode.Switch
}

func setupCover(system *System) ([]homeassistant.Entity, error) {
	devices, err := devicesOfType(system, abode.GenericCover)
	if err != nil {
		return nil, err
	}

	var entities []homeassistant.Entity
	for _, device := range devices {
		sw, ok := device.(abode.Switch)
		if !ok {
			skipDevice(system, "cover", device)
			continue
		}
		entity := &coverEntity{sw: sw}
		entity.DeviceEntity = newDeviceEntity(system, device, "cover", entity)
		entities = append(entities, entity)
	}
	return entities, nil
}

// Abode reports covers as switches; on means open.
func (e *coverEntity) State() string {
	if e.sw.IsOn() {
		return "open"
	}
	return "closed"
}

func (e *coverEntity) HandleCommand(payload string) error {
	switch payload {
	case "OPEN":
		return e.sw.SwitchOn()
	case "CLOSE":
		return e.sw.SwitchOff()
	default:
		return unknownCommand(payload)
	}
}

func (e *coverEntity) ConfigureDiscovery(cfg *homeassistant.EntityConfig) {
	cfg.DeviceClass = "garage"
}
