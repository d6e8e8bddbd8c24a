package homeassistant

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntityManager_AddAssignsUniqueIDs(t *testing.T) {
	host, _ := newTestHost(t)

	first := newTestEntity("switch", "Front Door")
	second := newTestEntity("switch", "Front Door")
	other := newTestEntity("lock", "Front Door")

	require.NoError(t, host.Entities.Add(first))
	require.NoError(t, host.Entities.Add(second))
	require.NoError(t, host.Entities.Add(other))

	assert.Equal(t, "switch.front_door", first.EntityID())
	assert.Equal(t, "switch.front_door_2", second.EntityID())
	assert.Equal(t, "lock.front_door", other.EntityID())
	assert.Equal(t, 1, first.added)

	entities := host.Entities.Entities()
	require.Len(t, entities, 3)
	assert.Same(t, first, entities[0])

	got, ok := host.Entities.Get("lock.front_door")
	require.True(t, ok)
	assert.Same(t, other, got)
}

func TestEntityManager_AddPublishesDiscoveryAndState(t *testing.T) {
	host, broker := newTestHost(t)

	entity := switchEntity{newTestEntity("switch", "Porch Light")}
	require.NoError(t, host.Entities.Add(entity))

	payload, ok := broker.Retained("homeassistant/switch/ha-abode-bridge-test/porch_light/config")
	require.True(t, ok)

	var cfg EntityConfig
	require.NoError(t, json.Unmarshal([]byte(payload), &cfg))
	assert.Equal(t, "Porch Light", cfg.Name)
	assert.Equal(t, "uid-porch_light", cfg.UniqueID)
	assert.Equal(t, "abode/switch/porch_light", cfg.TildeTopic)
	assert.Equal(t, "~/state", cfg.StateTopic)
	assert.Equal(t, "~/set", cfg.CommandTopic)
	assert.Equal(t, "mdi:toggle-switch", cfg.Icon)
	require.Len(t, cfg.Availability, 1)
	assert.Equal(t, host.GenerateBridgeAvailabilityTopic(), cfg.Availability[0].Topic)

	state, ok := broker.Retained("abode/switch/porch_light/state")
	require.True(t, ok)
	assert.Equal(t, "off", state)

	attributes, ok := broker.Retained("abode/switch/porch_light/attributes")
	require.True(t, ok)
	assert.JSONEq(t, `{"name":"Porch Light"}`, attributes)
}

func TestEntityManager_Commands(t *testing.T) {
	host, broker := newTestHost(t)

	entity := switchEntity{newTestEntity("switch", "Siren")}
	require.NoError(t, host.Entities.Add(entity))

	require.True(t, broker.Deliver("abode/switch/siren/set", "ON"))
	state, _ := broker.Retained("abode/switch/siren/state")
	assert.Equal(t, "on", state)

	// A rejected command leaves the state alone.
	require.True(t, broker.Deliver("abode/switch/siren/set", "BLINK"))
	state, _ = broker.Retained("abode/switch/siren/state")
	assert.Equal(t, "on", state)
}

func TestEntityManager_PlainEntityHasNoCommandTopic(t *testing.T) {
	host, broker := newTestHost(t)

	require.NoError(t, host.Entities.Add(newTestEntity("sensor", "Hallway")))
	assert.False(t, broker.Subscribed("abode/sensor/hallway/set"))
}

func TestEntityManager_Remove(t *testing.T) {
	host, broker := newTestHost(t)

	entity := switchEntity{newTestEntity("switch", "Siren")}
	require.NoError(t, host.Entities.Add(entity))
	require.NoError(t, host.Entities.Remove(entity))

	assert.Equal(t, 1, entity.removed)
	assert.False(t, broker.Subscribed("abode/switch/siren/set"))
	_, retained := broker.Retained("homeassistant/switch/ha-abode-bridge-test/siren/config")
	assert.False(t, retained, "discovery config should be cleared")
	assert.Empty(t, host.Entities.Entities())

	assert.ErrorIs(t, host.Entities.Remove(entity), ErrUnknownEntity)

	// Updates from a removed entity are dropped.
	broker.Reset()
	entity.ScheduleUpdate(entity)
	assert.Empty(t, broker.Published())
}

func TestEntityManager_ScheduleUpdateFromEntity(t *testing.T) {
	host, broker := newTestHost(t)

	entity := newTestEntity("binary_sensor", "Back Door")
	require.NoError(t, host.Entities.Add(entity))

	entity.setState("on")
	entity.ScheduleUpdate(entity)

	state, _ := broker.Retained("abode/binary_sensor/back_door/state")
	assert.Equal(t, "on", state)
}

func TestEntityManager_CameraImage(t *testing.T) {
	host, broker := newTestHost(t)

	camera := &cameraEntity{testEntity: newTestEntity("camera", "Garage"), image: []byte("jpeg")}
	require.NoError(t, host.Entities.Add(camera))

	payload, _ := broker.Retained("homeassistant/camera/ha-abode-bridge-test/garage/config")
	var cfg EntityConfig
	require.NoError(t, json.Unmarshal([]byte(payload), &cfg))
	assert.Equal(t, "~/image", cfg.Topic)
	assert.Empty(t, cfg.StateTopic)

	image, ok := broker.Last("abode/camera/garage/image")
	require.True(t, ok)
	assert.Equal(t, "jpeg", image)
}

func TestEntityManager_PollAll(t *testing.T) {
	host, _ := newTestHost(t)

	polled := newTestEntity("sensor", "Polled")
	polled.poll = true
	failing := newTestEntity("sensor", "Failing")
	failing.poll = true
	failing.updateErr = errors.New("refresh failed")
	pushed := newTestEntity("sensor", "Pushed")

	for _, entity := range []*testEntity{polled, failing, pushed} {
		require.NoError(t, host.Entities.Add(entity))
	}

	host.Entities.PollAll()

	assert.Equal(t, 1, polled.updates)
	assert.Equal(t, 1, failing.updates)
	assert.Zero(t, pushed.updates)
}

func TestEntityManager_RunStopsWithContext(t *testing.T) {
	host, _ := newTestHost(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		host.Entities.Run(ctx, time.Millisecond)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestEntityManager_PublishDiscoveryRepublishes(t *testing.T) {
	host, broker := newTestHost(t)

	require.NoError(t, host.Entities.Add(newTestEntity("sensor", "Hallway")))
	broker.Reset()

	host.Entities.PublishDiscovery()

	assert.Len(t, broker.PublishedTo("homeassistant/sensor/ha-abode-bridge-test/hallway/config"), 1)
	assert.Len(t, broker.PublishedTo("abode/sensor/hallway/state"), 1)
}

func TestEntityManager_Command(t *testing.T) {
	host, broker := newTestHost(t)

	siren := switchEntity{newTestEntity("switch", "Siren")}
	require.NoError(t, host.Entities.Add(siren))
	require.NoError(t, host.Entities.Add(newTestEntity("sensor", "Hallway")))

	require.NoError(t, host.Entities.Command("switch.siren", "ON"))
	state, _ := broker.Retained("abode/switch/siren/state")
	assert.Equal(t, "on", state)

	assert.ErrorIs(t, host.Entities.Command("switch.missing", "ON"), ErrUnknownEntity)
	assert.ErrorIs(t, host.Entities.Command("sensor.hallway", "ON"), ErrCommandRejected)
	assert.Error(t, host.Entities.Command("switch.siren", "BLINK"))
}
