package bridge

import (
	"errors"
	"slices"

	"github.com/miguelangel-nubla/homeassistant-abode/pkg/abode"
	"github.com/miguelangel-nubla/homeassistant-abode/pkg/homeassistant"
)

const changeSettingSchema = `{
	"type": "object",
	"properties": {
		"setting": {"type": "string"},
		"value": {"type": "string"}
	},
	"required": ["setting", "value"]
}`

// entityIDsSchema accepts entity_id as a comma separated string or a list.
const entityIDsSchema = `{
	"type": "object",
	"properties": {
		"entity_id": {
			"oneOf": [
				{"type": "string"},
				{"type": "array", "items": {"type": "string"}}
			]
		}
	}
}`

type capturer interface {
	Capture() error
}

type triggerer interface {
	Trigger() error
}

func (i *Integration) setupHostServices(system *System) error {
	services := []struct {
		name    string
		handler homeassistant.ServiceHandler
		schema  string
	}{
		{ServiceSettings, i.changeSetting(system), changeSettingSchema},
		{ServiceCaptureImage, i.captureImage(system), entityIDsSchema},
		{ServiceTrigger, i.triggerQuickAction(system), entityIDsSchema},
	}

	for _, service := range services {
		if err := i.host.Services.Register(Domain, service.name, service.handler, service.schema); err != nil {
			i.removeHostServices()
			return err
		}
	}
	return nil
}

func (i *Integration) removeHostServices() {
	for _, service := range []string{ServiceSettings, ServiceCaptureImage, ServiceTrigger} {
		i.host.Services.Remove(Domain, service)
	}
}

func (i *Integration) changeSetting(system *System) homeassistant.ServiceHandler {
	return func(call homeassistant.ServiceCall) {
		setting := call.String(AttrSetting)
		value := call.String(AttrValue)

		err := system.Client.SetSetting(setting, value)
		if err == nil {
			return
		}

		logger := system.logger().WithFields(map[string]any{
			AttrSetting: setting,
			AttrValue:   value,
		})

		var abodeErr *abode.Error
		if errors.As(err, &abodeErr) {
			logger.Warn(abodeErr.Error())
			return
		}
		logger.WithError(err).Error("Failed to change Abode setting")
	}
}

// targets resolves the entity_id of call against the system. Unknown ids are
// ignored.
func targets(system *System, call homeassistant.ServiceCall) []homeassistant.Entity {
	entityIDs := call.EntityIDs()
	found := system.Targets(entityIDs)

	for _, entityID := range entityIDs {
		if !slices.ContainsFunc(found, func(entity homeassistant.Entity) bool { return entity.EntityID() == entityID }) {
			system.logger().WithField(AttrEntityID, entityID).Debug("No Abode entity with this id")
		}
	}
	return found
}

func (i *Integration) captureImage(system *System) homeassistant.ServiceHandler {
	return func(call homeassistant.ServiceCall) {
		for _, entity := range targets(system, call) {
			logger := system.logger().WithField(AttrEntityID, entity.EntityID())

			camera, ok := entity.(capturer)
			if !ok {
				logger.Debug("Entity is not a camera, skipping capture")
				continue
			}
			if err := camera.Capture(); err != nil {
				logger.WithError(err).Warn("Failed to capture image")
			}
		}
	}
}

func (i *Integration) triggerQuickAction(system *System) homeassistant.ServiceHandler {
	return func(call homeassistant.ServiceCall) {
		for _, entity := range targets(system, call) {
			logger := system.logger().WithField(AttrEntityID, entity.EntityID())

			automation, ok := entity.(triggerer)
			if !ok {
				logger.Debug("Entity is not an automation, skipping trigger")
				continue
			}
			if err := automation.Trigger(); err != nil {
				logger.WithError(err).Warn("Failed to trigger quick action")
			}
		}
	}
}
