package bridge

import (
	"slices"
	"strconv"
	"strings"

	"github.com/miguelangel-nubla/homeassistant-abode/pkg/abode"
	"github.com/miguelangel-nubla/homeassistant-abode/pkg/homeassistant"
)

type sensorKind struct {
	reading     string
	deviceClass string
	unit        string
}

var sensorKinds = []sensorKind{
	{reading: abode.ReadingTemperature, deviceClass: "temperature"},
	{reading: abode.ReadingHumidity, deviceClass: "humidity", unit: "%"},
	{reading: abode.ReadingLux, deviceClass: "illuminance", unit: "lx"},
}

// sensorEntity exposes one reading of a multi-sensor.
type sensorEntity struct {
	*DeviceEntity
	sensor abode.Sensor
	kind   sensorKind
}

func setupSensor(system *System) ([]homeassistant.Entity, error) {
	devices, err := devicesOfType(system, abode.GenericSensor)
	if err != nil {
		return nil, err
	}

	var entities []homeassistant.Entity
	for _, device := range devices {
		sensor, ok := device.(abode.Sensor)
		if !ok {
			skipDevice(system, "sensor", device)
			continue
		}

		readings := sensor.Readings()
		for _, kind := range sensorKinds {
			if _, present := readings[kind.reading]; !present {
				continue
			}
			entity := &sensorEntity{sensor: sensor, kind: kind}
			entity.DeviceEntity = newDeviceEntity(system, device, "sensor", entity)
			entities = append(entities, entity)
		}
	}
	return entities, nil
}

func (e *sensorEntity) Name() string {
	return e.device.Name() + " " + strings.ToUpper(e.kind.deviceClass[:1]) + e.kind.deviceClass[1:]
}

func (e *sensorEntity) UniqueID() string {
	return e.device.UUID() + "-" + e.kind.reading
}

func (e *sensorEntity) State() string {
	value, ok := e.sensor.Readings()[e.kind.reading]
	if !ok {
		return "unknown"
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}

func (e *sensorEntity) unit() string {
	if e.kind.reading != abode.ReadingTemperature {
		return e.kind.unit
	}
	if unit := e.sensor.TemperatureUnit(); slices.Contains([]string{abode.UnitCelsius, abode.UnitFahrenheit}, unit) {
		return unit
	}
	return abode.UnitCelsius
}

func (e *sensorEntity) ConfigureDiscovery(cfg *homeassistant.EntityConfig) {
	cfg.DeviceClass = e.kind.deviceClass
	cfg.UnitOfMeasurement = e.unit()
	cfg.StateClass = "measurement"
}
