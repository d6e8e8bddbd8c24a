package homeassistant

import (
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/miguelangel-nubla/homeassistant-abode/pkg/config"
	"github.com/miguelangel-nubla/homeassistant-abode/pkg/homeassistant/hatest"
)

func newTestHost(t *testing.T) (*Host, *hatest.Broker) {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	broker := hatest.NewBroker()
	host := NewHost(broker, &config.HomeAssistantConfig{
		DiscoveryPrefix: "homeassistant",
		InstanceID:      "test",
		BaseTopic:       "abode",
		StatusTopic:     "homeassistant/status",
	}, "1.0.0", logger)

	return host, broker
}

type testEntity struct {
	EntityBase

	mutex     sync.Mutex
	platform  string
	name      string
	uniqueID  string
	state     string
	poll      bool
	updates   int
	updateErr error
	added     int
	removed   int
}

func newTestEntity(platform, name string) *testEntity {
	return &testEntity{
		platform: platform,
		name:     name,
		uniqueID: "uid-" + Slugify(name),
		state:    "off",
	}
}

func (e *testEntity) Platform() string { return e.platform }
func (e *testEntity) Name() string     { return e.name }
func (e *testEntity) UniqueID() string { return e.uniqueID }

func (e *testEntity) State() string {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return e.state
}

func (e *testEntity) setState(state string) {
	e.mutex.Lock()
	e.state = state
	e.mutex.Unlock()
}

func (e *testEntity) Attributes() map[string]any {
	return map[string]any{"name": e.name}
}

func (e *testEntity) DeviceInfo() *DeviceInfo {
	return &DeviceInfo{Identifiers: []string{e.uniqueID}, Name: e.name}
}

func (e *testEntity) ShouldPoll() bool { return e.poll }

func (e *testEntity) Update() error {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.updates++
	return e.updateErr
}

func (e *testEntity) AddedToHost(host EntityHost) error {
	e.Attach(host)
	e.added++
	return nil
}

func (e *testEntity) WillRemoveFromHost() error {
	e.Detach()
	e.removed++
	return nil
}

// switchEntity accepts ON/OFF on its command topic.
type switchEntity struct {
	*testEntity
}

func (e switchEntity) HandleCommand(payload string) error {
	switch payload {
	case "ON":
		e.setState("on")
	case "OFF":
		e.setState("off")
	default:
		return errors.New("bad command")
	}
	return nil
}

func (e switchEntity) ConfigureDiscovery(cfg *EntityConfig) {
	cfg.Icon = "mdi:toggle-switch"
}

type cameraEntity struct {
	*testEntity
	image []byte
}

func (e *cameraEntity) Image() ([]byte, error) {
	return e.image, nil
}
