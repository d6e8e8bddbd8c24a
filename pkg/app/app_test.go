package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miguelangel-nubla/homeassistant-abode/pkg/abode"
	"github.com/miguelangel-nubla/homeassistant-abode/pkg/abode/abodetest"
	"github.com/miguelangel-nubla/homeassistant-abode/pkg/config"
	"github.com/miguelangel-nubla/homeassistant-abode/pkg/homeassistant"
	"github.com/miguelangel-nubla/homeassistant-abode/pkg/homeassistant/hatest"
	"github.com/miguelangel-nubla/homeassistant-abode/pkg/journal"
	"github.com/miguelangel-nubla/homeassistant-abode/pkg/mqtt"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type recordingService struct {
	name     string
	log      *[]string
	mutex    *sync.Mutex
	startErr error
}

func (s *recordingService) Start() error {
	s.mutex.Lock()
	*s.log = append(*s.log, "start "+s.name)
	s.mutex.Unlock()
	return s.startErr
}

func (s *recordingService) Stop() error {
	s.mutex.Lock()
	*s.log = append(*s.log, "stop "+s.name)
	s.mutex.Unlock()
	return nil
}

func TestServiceManager_Order(t *testing.T) {
	var (
		log   []string
		mutex sync.Mutex
	)
	sm := NewServiceManager(testLogger())
	sm.Register("a", &recordingService{name: "a", log: &log, mutex: &mutex})
	sm.Register("b", &recordingService{name: "b", log: &log, mutex: &mutex})
	sm.Register("a", &recordingService{name: "a2", log: &log, mutex: &mutex})

	assert.Equal(t, []string{"a", "b"}, sm.Names())

	require.NoError(t, sm.StartAll())
	require.NoError(t, sm.StopAll())

	assert.Equal(t, []string{"start a2", "start b", "stop b", "stop a2"}, log)
}

func TestLookup(t *testing.T) {
	var (
		log   []string
		mutex sync.Mutex
	)
	sm := NewServiceManager(testLogger())
	service := &recordingService{name: "a", log: &log, mutex: &mutex}
	sm.Register("a", service)

	found, ok := Lookup[*recordingService](sm, "a")
	require.True(t, ok)
	assert.Same(t, service, found)

	_, ok = Lookup[*journal.Journal](sm, "a")
	assert.False(t, ok, "wrong type")

	_, ok = Lookup[*mqtt.Client](sm, ServiceMQTT)
	assert.False(t, ok, "not registered")
}

type fakeConnection struct {
	recordingService
}

func (c *fakeConnection) Connect() error {
	c.mutex.Lock()
	*c.log = append(*c.log, "connect "+c.name)
	c.mutex.Unlock()
	return nil
}

func (c *fakeConnection) WaitForConnection(time.Duration) error { return nil }

func (c *fakeConnection) Disconnect() {
	c.mutex.Lock()
	*c.log = append(*c.log, "disconnect "+c.name)
	c.mutex.Unlock()
}

func TestServiceManager_ConnectionsWrapServices(t *testing.T) {
	var (
		log   []string
		mutex sync.Mutex
	)
	sm := NewServiceManager(testLogger())
	sm.Register("a", &recordingService{name: "a", log: &log, mutex: &mutex})
	sm.Register("broker", &fakeConnection{recordingService{name: "broker", log: &log, mutex: &mutex}})
	sm.Register("b", &recordingService{name: "b", log: &log, mutex: &mutex})

	require.NoError(t, sm.StartAll())
	require.NoError(t, sm.StopAll())

	assert.Equal(t, []string{
		"connect broker", "start a", "start b",
		"stop b", "stop a", "disconnect broker",
	}, log)
}

func TestServiceManager_StartError(t *testing.T) {
	var (
		log   []string
		mutex sync.Mutex
	)
	sm := NewServiceManager(testLogger())
	sm.Register("a", &recordingService{name: "a", log: &log, mutex: &mutex, startErr: errors.New("boom")})
	sm.Register("b", &recordingService{name: "b", log: &log, mutex: &mutex})

	err := sm.StartAll()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to start service a")
	assert.Equal(t, []string{"start a"}, log)
}

type testApp struct {
	app    *Application
	broker *hatest.Broker
	client *abodetest.Client
	driver *abodetest.Driver
}

func newTestApp(t *testing.T, withAbode bool) *testApp {
	t.Helper()

	cfg := &config.Config{
		HomeAssistant: config.HomeAssistantConfig{
			DiscoveryPrefix: "homeassistant",
			InstanceID:      "test",
			BaseTopic:       "abode",
			StatusTopic:     "homeassistant/status",
		},
		Journal: config.JournalConfig{Path: journal.MemoryPath, Retention: 10},
	}
	if withAbode {
		cfg.Abode = &config.AbodeConfig{
			Username:     "user@example.com",
			Password:     "secret",
			Driver:       t.Name(),
			ScanInterval: config.DefaultScanInterval,
		}
	}

	client := abodetest.NewClient()
	client.AddDevice(abodetest.NewLock("ZW:lock", "Back Lock"))

	driver := &abodetest.Driver{Client: client}
	abode.Register(t.Name(), driver)
	t.Cleanup(func() { abode.Unregister(t.Name()) })

	app := NewApplication(cfg, testLogger(), "test")
	app.initialSetupDelay = time.Millisecond
	app.maxSetupDelay = 4 * time.Millisecond

	broker := hatest.NewBroker()
	require.NoError(t, app.initialize(broker))

	return &testApp{app: app, broker: broker, client: client, driver: driver}
}

func TestApplication_StartStop(t *testing.T) {
	ta := newTestApp(t, true)

	require.NoError(t, ta.app.Start(context.Background()))
	assert.Len(t, ta.app.integration.Systems(), 1)
	assert.True(t, ta.client.Controller().Started())

	j, ok := Lookup[*journal.Journal](ta.app.services, ServiceJournal)
	require.True(t, ok)
	host, ok := Lookup[*homeassistant.Host](ta.app.services, ServiceHost)
	require.True(t, ok)
	assert.Same(t, ta.app.host, host)

	ta.client.Controller().Emit(abode.AlarmGroup, map[string]any{"device_name": "Back Lock", "event_name": "Alarm"})

	count, err := j.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, ta.app.Stop())
	assert.Empty(t, ta.app.integration.Systems())
	assert.Equal(t, 1, ta.client.Logouts())

	state, ok := ta.broker.Last("homeassistant/sensor/ha-abode-bridge-test/availability")
	require.True(t, ok)
	assert.Equal(t, "offline", state)
}

func TestApplication_NoAbodeSection(t *testing.T) {
	ta := newTestApp(t, false)

	require.NoError(t, ta.app.Start(context.Background()))
	assert.Empty(t, ta.driver.Opened())
	require.NoError(t, ta.app.Stop())
}

func TestApplication_SetupRetriesConnectionErrors(t *testing.T) {
	ta := newTestApp(t, true)
	ta.driver.SetErr(fmt.Errorf("login: %w", abode.ErrConnectTimeout))

	done := make(chan error, 1)
	go func() { done <- ta.app.Start(context.Background()) }()

	require.Eventually(t, func() bool {
		return len(ta.driver.Opened()) >= 3
	}, time.Second, time.Millisecond)

	ta.driver.SetErr(nil)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("setup did not finish after the driver recovered")
	}
	assert.Len(t, ta.app.integration.Systems(), 1)
	require.NoError(t, ta.app.Stop())
}

func TestApplication_SetupDoesNotRetryOtherErrors(t *testing.T) {
	ta := newTestApp(t, true)
	ta.driver.SetErr(errors.New("cache file corrupt"))

	err := ta.app.Start(context.Background())
	require.Error(t, err)
	assert.Len(t, ta.driver.Opened(), 1)
	require.NoError(t, ta.app.Stop())
}

func TestApplication_SetupStopsWithContext(t *testing.T) {
	ta := newTestApp(t, true)
	ta.driver.SetErr(&abode.Error{Code: 500, Message: "unavailable"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ta.app.Start(ctx) }()

	require.Eventually(t, func() bool {
		return len(ta.driver.Opened()) >= 1
	}, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("setup did not stop after cancel")
	}
	require.NoError(t, ta.app.Stop())
}
