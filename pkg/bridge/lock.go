package bridge

import (
	"github.com/miguelangel-nubla/homeassistant-abode/pkg/abode"
	"github.com/miguelangel-nubla/homeassistant-abode/pkg/homeassistant"
)

type lockEntity struct {
	*DeviceEntity
	lock abode.Lock
}

func setupLock(system *System) ([]homeassistant.Entity, error) {
	devices, err := devicesOfType(system, abode.GenericLock)
	if err != nil {
		return nil, err
	}

	var entities []homeassistant.Entity
	for _, device := range devices {
		lock, ok := device.(abode.Lock)
		if !ok {
			skipDevice(system, "lock", device)
			continue
		}
		entity := &lockEntity{lock: lock}
		entity.DeviceEntity = newDeviceEntity(system, device, "lock", entity)
		entities = append(entities, entity)
	}
	return entities, nil
}

func (e *lockEntity) State() string {
	if e.lock.IsLocked() {
		return "LOCKED"
	}
	return "UNLOCKED"
}

func (e *lockEntity) HandleCommand(payload string) error {
	switch payload {
	case "LOCK":
		return e.lock.Lock()
	case "UNLOCK":
		return e.lock.Unlock()
	default:
		return unknownCommand(payload)
	}
}
