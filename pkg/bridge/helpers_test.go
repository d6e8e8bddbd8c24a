package bridge

import (
	"context"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/miguelangel-nubla/homeassistant-abode/pkg/abode"
	"github.com/miguelangel-nubla/homeassistant-abode/pkg/abode/abodetest"
	"github.com/miguelangel-nubla/homeassistant-abode/pkg/config"
	"github.com/miguelangel-nubla/homeassistant-abode/pkg/homeassistant"
	"github.com/miguelangel-nubla/homeassistant-abode/pkg/homeassistant/hatest"
)

const testEntryID = "entry-1"

type testEnv struct {
	integration *Integration
	host        *homeassistant.Host
	broker      *hatest.Broker
	client      *abodetest.Client
	driver      *abodetest.Driver
	entry       *ConfigEntry

	alarm      *abodetest.Alarm
	camera     *abodetest.Camera
	door       *abodetest.BinarySensor
	lock       *abodetest.Lock
	plug       *abodetest.Switch
	garage     *abodetest.Switch
	light      *abodetest.Dimmer
	sensor     *abodetest.Sensor
	quick      *abodetest.Automation
	automation *abodetest.Automation
}

// newTestEnv builds an integration over a fake account holding one device
// of every platform. The driver is registered under the test's name.
func newTestEnv(t *testing.T, polling bool) *testEnv {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	broker := hatest.NewBroker()
	host := homeassistant.NewHost(broker, &config.HomeAssistantConfig{
		DiscoveryPrefix: "homeassistant",
		InstanceID:      "test",
		BaseTopic:       "abode",
		StatusTopic:     "homeassistant/status",
	}, "test", logger)

	env := &testEnv{
		integration: NewIntegration(host, logger),
		host:        host,
		broker:      broker,
		client:      abodetest.NewClient(),
		alarm:       abodetest.NewAlarm("area_1", "Abode Alarm"),
		camera:      abodetest.NewCamera("ZB:cam", "Garage Cam"),
		door:        abodetest.NewBinarySensor("RF:door", "Front Door", abode.GenericDoor),
		lock:        abodetest.NewLock("ZW:lock", "Back Lock"),
		plug:        abodetest.NewSwitch("ZW:plug", "Porch Plug", abode.GenericSwitch),
		garage:      abodetest.NewSwitch("ZW:garage", "Garage Door", abode.GenericCover),
		light:       abodetest.NewDimmer("ZW:light", "Kitchen Light"),
		sensor: abodetest.NewSensor("ZB:sensor", "Hall Sensor", map[string]float64{
			abode.ReadingTemperature: 70.5,
			abode.ReadingHumidity:    40,
		}),
		quick:      abodetest.NewAutomation("101", "Leave Home"),
		automation: abodetest.NewAutomation("102", "Night Mode"),
	}
	env.automation.SetSubType("")

	env.client.AddDevice(env.alarm, env.camera, env.door, env.lock, env.plug, env.garage, env.light, env.sensor)
	env.client.AddAutomation(env.quick, env.automation)

	env.driver = &abodetest.Driver{Client: env.client}
	abode.Register(t.Name(), env.driver)
	t.Cleanup(func() { abode.Unregister(t.Name()) })

	env.entry = &ConfigEntry{
		EntryID:   testEntryID,
		Title:     "user@example.com",
		Source:    SourceImport,
		Data:      EntryData{Username: "user@example.com", Password: "secret", Polling: polling},
		CacheFile: "/tmp/abode-cache",
		Driver:    t.Name(),
	}

	return env
}

func (env *testEnv) setup(t *testing.T) *System {
	t.Helper()
	require.NoError(t, env.integration.SetupEntry(context.Background(), env.entry))
	system, ok := env.integration.Systems()[testEntryID]
	require.True(t, ok)
	return system
}

func (env *testEnv) state(t *testing.T, entityID string) string {
	t.Helper()
	entity, ok := env.host.Entities.Get(entityID)
	require.True(t, ok, "entity %s not found", entityID)
	return entity.State()
}

func (env *testEnv) retainedState(t *testing.T, platform, objectID string) string {
	t.Helper()
	state, ok := env.broker.Retained("abode/" + platform + "/" + objectID + "/state")
	require.True(t, ok, "no state for %s.%s", platform, objectID)
	return state
}
