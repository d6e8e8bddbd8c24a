package bridge

import (
	"encoding/json"
	"fmt"

	"github.com/miguelangel-nubla/homeassistant-abode/pkg/abode"
	"github.com/miguelangel-nubla/homeassistant-abode/pkg/homeassistant"
)

// lightState is the payload of the json light schema, both ways.
type lightState struct {
	State      string `json:"state"`
	Brightness *int   `json:"brightness,omitempty"`
}

type lightEntity struct {
	*DeviceEntity
	sw abode.Switch
}

func setupLight(system *System) ([]homeassistant.Entity, error) {
	devices, err := devicesOfType(system, abode.GenericLight)
	if err != nil {
		return nil, err
	}

	var entities []homeassistant.Entity
	for _, device := range devices {
		sw, ok := device.(abode.Switch)
		if !ok {
			skipDevice(system, "light", device)
			continue
		}
		entity := &lightEntity{sw: sw}
		entity.DeviceEntity = newDeviceEntity(system, device, "light", entity)
		entities = append(entities, entity)
	}
	return entities, nil
}

func (e *lightEntity) dimmer() (abode.Dimmer, bool) {
	dimmer, ok := e.sw.(abode.Dimmer)
	return dimmer, ok
}

func (e *lightEntity) State() string {
	state := lightState{State: onOff(e.sw.IsOn())}
	if dimmer, ok := e.dimmer(); ok {
		brightness := dimmer.Brightness()
		state.Brightness = &brightness
	}

	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Sprintf(`{"state":%q}`, state.State)
	}
	return string(payload)
}

func (e *lightEntity) HandleCommand(payload string) error {
	var command lightState
	if err := json.Unmarshal([]byte(payload), &command); err != nil {
		return fmt.Errorf("%w: %w", homeassistant.ErrUnknownCommand, err)
	}

	switch command.State {
	case payloadOff:
		return e.sw.SwitchOff()
	case payloadOn:
		if dimmer, ok := e.dimmer(); ok && command.Brightness != nil {
			return dimmer.SetLevel(clampLevel(*command.Brightness))
		}
		return e.sw.SwitchOn()
	default:
		return unknownCommand(payload)
	}
}

func clampLevel(level int) int {
	return min(max(level, 0), 100)
}

func (e *lightEntity) ConfigureDiscovery(cfg *homeassistant.EntityConfig) {
	cfg.Schema = "json"
	if _, ok := e.dimmer(); ok {
		cfg.Brightness = true
		cfg.BrightnessScale = 100
		cfg.SupportedColorModes = []string{"brightness"}
		return
	}
	cfg.SupportedColorModes = []string{"onoff"}
}
