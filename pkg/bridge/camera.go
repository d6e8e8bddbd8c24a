package bridge

import (
	"github.com/miguelangel-nubla/homeassistant-abode/pkg/abode"
	"github.com/miguelangel-nubla/homeassistant-abode/pkg/homeassistant"
)

type cameraEntity struct {
	*DeviceEntity
	camera abode.Camera
}

func setupCamera(system *System) ([]homeassistant.Entity, error) {
	devices, err := devicesOfType(system, abode.GenericCamera)
	if err != nil {
		return nil, err
	}

	var entities []homeassistant.Entity
	for _, device := range devices {
		camera, ok := device.(abode.Camera)
		if !ok {
			skipDevice(system, "camera", device)
			continue
		}
		entity := &cameraEntity{camera: camera}
		entity.DeviceEntity = newDeviceEntity(system, device, "camera", entity)
		entities = append(entities, entity)
	}
	return entities, nil
}

// AddedToHost also listens for captures, which carry a fresh image.
func (e *cameraEntity) AddedToHost(host homeassistant.EntityHost) error {
	if err := e.DeviceEntity.AddedToHost(host); err != nil {
		return err
	}
	return e.system.Client.Events().AddEventCallback(abode.CaptureGroup, e.captureCallback)
}

func (e *cameraEntity) captureCallback(event map[string]any) {
	if deviceID, _ := event[AttrDeviceID].(string); deviceID != "" && deviceID != e.device.ID() {
		return
	}
	e.ScheduleUpdate(e)
}

// Capture takes a new snapshot. capture_image calls it.
func (e *cameraEntity) Capture() error {
	if err := e.camera.Capture(); err != nil {
		return err
	}
	e.ScheduleUpdate(e)
	return nil
}

func (e *cameraEntity) Image() ([]byte, error) {
	return e.camera.Image()
}
