package bridge

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miguelangel-nubla/homeassistant-abode/pkg/abode"
	"github.com/miguelangel-nubla/homeassistant-abode/pkg/common"
	"github.com/miguelangel-nubla/homeassistant-abode/pkg/config"
	"github.com/miguelangel-nubla/homeassistant-abode/pkg/homeassistant"
)

var allEntityIDs = []string{
	"alarm_control_panel.abode_alarm",
	"binary_sensor.front_door",
	"binary_sensor.leave_home",
	"lock.back_lock",
	"switch.porch_plug",
	"switch.night_mode",
	"cover.garage_door",
	"camera.garage_cam",
	"light.kitchen_light",
	"sensor.hall_sensor_temperature",
	"sensor.hall_sensor_humidity",
}

func TestImportConfig(t *testing.T) {
	assert.Nil(t, ImportConfig(&config.Config{}))
	assert.Nil(t, ImportConfig(nil))

	cfg := &config.Config{Abode: &config.AbodeConfig{
		Username:     "user@example.com",
		Password:     "secret",
		Polling:      true,
		CacheFile:    "/data/cache",
		Driver:       "abode",
		ScanInterval: 10,
	}}

	entry := ImportConfig(cfg)
	require.NotNil(t, entry)
	assert.Equal(t, SourceImport, entry.Source)
	assert.Equal(t, "user@example.com", entry.Title)
	assert.Equal(t, EntryData{Username: "user@example.com", Password: "secret", Polling: true}, entry.Data)
	assert.Equal(t, "/data/cache", entry.CacheFile)
	assert.Equal(t, 10*time.Second, entry.ScanInterval)

	id, err := uuid.FromString(entry.EntryID)
	require.NoError(t, err)
	assert.Equal(t, byte(uuid.V5), id.Version())
	assert.Equal(t, entry.EntryID, ImportConfig(cfg).EntryID, "entry id must be stable")

	cfg.Abode.Username = "other@example.com"
	assert.NotEqual(t, entry.EntryID, ImportConfig(cfg).EntryID)
}

func TestSetupEntry_CreatesEntities(t *testing.T) {
	env := newTestEnv(t, false)
	system := env.setup(t)

	var entityIDs []string
	for _, entity := range system.Devices() {
		entityIDs = append(entityIDs, entity.EntityID())
	}
	assert.ElementsMatch(t, allEntityIDs, entityIDs)
	assert.Len(t, env.host.Entities.Entities(), len(allEntityIDs))

	opened := env.driver.Opened()
	require.Len(t, opened, 1)
	assert.Equal(t, abode.Options{
		Username:       "user@example.com",
		Password:       "secret",
		AutoLogin:      true,
		GetDevices:     true,
		GetAutomations: true,
		CacheFile:      "/tmp/abode-cache",
		UserAgent:      common.UserAgent(),
	}, opened[0])

	assert.Same(t, env.client, system.Client)
	assert.False(t, system.Polling)
	assert.True(t, env.client.Controller().Started())

	for _, service := range []string{ServiceSettings, ServiceCaptureImage, ServiceTrigger} {
		assert.True(t, env.host.Services.Has(Domain, service), service)
	}
	for _, group := range RelayedGroups {
		assert.Equal(t, 1, env.client.Controller().EventCallbackCount(group), group)
	}
	assert.Equal(t, 1, env.host.Bus.ListenerCount(homeassistant.EventHomeAssistantStop))
}

func TestSetupEntry_DefaultsCacheFile(t *testing.T) {
	env := newTestEnv(t, false)
	env.entry.CacheFile = ""
	env.setup(t)

	assert.Equal(t, DefaultCacheFile, env.driver.Opened()[0].CacheFile)
}

func TestSetupEntry_ConnectionErrors(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"Vendor error", &abode.Error{Code: 400, Message: "bad credentials"}, true},
		{"HTTP error", &abode.HTTPError{StatusCode: 503, Status: "503 Service Unavailable"}, true},
		{"Connect timeout", fmt.Errorf("login: %w", abode.ErrConnectTimeout), true},
		{"Deadline", context.DeadlineExceeded, true},
		{"Other", errors.New("cache file corrupt"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, false)
			env.driver.SetErr(tt.err)

			err := env.integration.SetupEntry(context.Background(), env.entry)
			require.Error(t, err)
			assert.Equal(t, tt.retryable, errors.Is(err, ErrSetupFailed))
			assert.ErrorIs(t, err, tt.err)

			assert.Empty(t, env.integration.Systems())
			assert.Empty(t, env.host.Entities.Entities())
			assert.False(t, env.host.Services.Has(Domain, ServiceSettings))
		})
	}
}

func TestSetupEntry_EventStartFailure(t *testing.T) {
	env := newTestEnv(t, false)
	startErr := errors.New("socket refused")
	env.client.Controller().SetStartError(startErr)

	err := env.integration.SetupEntry(context.Background(), env.entry)
	require.ErrorIs(t, err, startErr)

	assert.Zero(t, env.client.Controller().Stops(), "a stream that never started must not be stopped")
	assert.Equal(t, 1, env.client.Logouts())
	assert.Empty(t, env.integration.Systems())
	assert.Empty(t, env.host.Entities.Entities())
}

func TestSetupEntry_UnknownDriver(t *testing.T) {
	env := newTestEnv(t, false)
	env.entry.Driver = "missing"

	err := env.integration.SetupEntry(context.Background(), env.entry)
	assert.ErrorIs(t, err, abode.ErrUnknownDriver)
	assert.NotErrorIs(t, err, ErrSetupFailed)
}

func TestSetupEntry_SingleInstance(t *testing.T) {
	env := newTestEnv(t, false)
	env.setup(t)

	other := *env.entry
	other.EntryID = "entry-2"
	err := env.integration.SetupEntry(context.Background(), &other)
	assert.ErrorIs(t, err, ErrAlreadySetup)
	assert.Len(t, env.integration.Systems(), 1)
	assert.Len(t, env.driver.Opened(), 1)
}

func TestSetupEntry_Polling(t *testing.T) {
	env := newTestEnv(t, true)
	env.entry.ScanInterval = time.Hour
	system := env.setup(t)

	assert.True(t, system.Polling)
	assert.False(t, env.client.Controller().Started(), "polling mode must not start the event stream")
	for _, entity := range system.Devices() {
		assert.True(t, entity.ShouldPoll(), entity.EntityID())
	}

	env.host.Entities.PollAll()
	assert.Equal(t, 1, env.door.Refreshes())
	assert.Equal(t, 1, env.quick.Refreshes())
}

func TestUnloadEntry(t *testing.T) {
	env := newTestEnv(t, false)
	env.setup(t)

	require.NoError(t, env.integration.UnloadEntry(context.Background(), testEntryID))

	for _, service := range []string{ServiceSettings, ServiceCaptureImage, ServiceTrigger} {
		assert.False(t, env.host.Services.Has(Domain, service), service)
	}
	assert.Empty(t, env.host.Entities.Entities())
	assert.Empty(t, env.broker.RetainedWithPrefix("homeassistant/lock/"))
	assert.Zero(t, env.client.Controller().DeviceCallbackCount(env.lock.ID()))
	assert.Equal(t, 1, env.client.Controller().Stops())
	assert.Equal(t, 1, env.client.Logouts())
	assert.Zero(t, env.host.Bus.ListenerCount(homeassistant.EventHomeAssistantStop))
	assert.Empty(t, env.integration.Systems())

	err := env.integration.UnloadEntry(context.Background(), testEntryID)
	assert.ErrorIs(t, err, ErrNotSetup)

	// The entry can be set up again afterwards.
	env.setup(t)
	assert.Len(t, env.host.Entities.Entities(), len(allEntityIDs))
}

func TestUnloadEntry_PollingSkipsStop(t *testing.T) {
	env := newTestEnv(t, true)
	env.entry.ScanInterval = time.Hour
	env.setup(t)

	require.NoError(t, env.integration.UnloadEntry(context.Background(), testEntryID))
	assert.Zero(t, env.client.Controller().Stops())
	assert.Equal(t, 1, env.client.Logouts())
}

func TestHostStopLogsOut(t *testing.T) {
	env := newTestEnv(t, false)
	env.setup(t)

	env.host.Bus.FireLocal(homeassistant.EventHomeAssistantStop, nil)
	assert.Equal(t, 1, env.client.Controller().Stops())
	assert.Equal(t, 1, env.client.Logouts())

	// Unloading after the host stopped does not log out twice.
	require.NoError(t, env.integration.UnloadEntry(context.Background(), testEntryID))
	assert.Equal(t, 1, env.client.Logouts())
	assert.Equal(t, 1, env.client.Controller().Stops())
}
