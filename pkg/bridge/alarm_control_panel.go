package bridge

import (
	"github.com/miguelangel-nubla/homeassistant-abode/pkg/abode"
	"github.com/miguelangel-nubla/homeassistant-abode/pkg/homeassistant"
)

const (
	StateDisarmed  = "disarmed"
	StateArmedHome = "armed_home"
	StateArmedAway = "armed_away"
)

type alarmEntity struct {
	*DeviceEntity
	alarm abode.Alarm
}

func setupAlarmControlPanel(system *System) ([]homeassistant.Entity, error) {
	devices, err := devicesOfType(system, abode.GenericAlarm)
	if err != nil {
		return nil, err
	}

	var entities []homeassistant.Entity
	for _, device := range devices {
		alarm, ok := device.(abode.Alarm)
		if !ok {
			skipDevice(system, "alarm_control_panel", device)
			continue
		}
		entity := &alarmEntity{alarm: alarm}
		entity.DeviceEntity = newDeviceEntity(system, device, "alarm_control_panel", entity)
		entities = append(entities, entity)
	}
	return entities, nil
}

func (e *alarmEntity) State() string {
	switch e.alarm.Mode() {
	case abode.ModeHome:
		return StateArmedHome
	case abode.ModeAway:
		return StateArmedAway
	case abode.ModeStandby:
		return StateDisarmed
	default:
		return "unknown"
	}
}

func (e *alarmEntity) HandleCommand(payload string) error {
	switch payload {
	case "DISARM":
		return e.alarm.SetStandby()
	case "ARM_HOME":
		return e.alarm.SetHome()
	case "ARM_AWAY":
		return e.alarm.SetAway()
	default:
		return unknownCommand(payload)
	}
}

func (e *alarmEntity) ConfigureDiscovery(cfg *homeassistant.EntityConfig) {
	codeArmRequired := false
	cfg.CodeArmRequired = &codeArmRequired
	cfg.SupportedFeatures = []string{"arm_home", "arm_away"}
	cfg.Icon = "mdi:security"
}
