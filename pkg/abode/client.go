package abode

// EventCallback receives the raw timeline payload of an event group.
type EventCallback func(event map[string]any)

// DeviceCallback is invoked with the device whose state changed.
type DeviceCallback func(device Device)

// Client is an authenticated Abode session.
type Client interface {
	Devices() ([]Device, error)
	Automations() ([]Automation, error)
	SetSetting(setting, value string) error
	Events() EventController
	Logout() error
}

// EventController is the push side of a session. Callbacks may be added
// before Start; the controller keeps them across reconnects.
type EventController interface {
	Start() error
	Stop() error
	AddEventCallback(group string, callback EventCallback) error
	AddDeviceCallback(deviceID string, callback DeviceCallback) error
	RemoveAllDeviceCallbacks(deviceID string) error
}

// Options are handed to the driver when a session is opened.
type Options struct {
	Username       string
	Password       string
	AutoLogin      bool
	GetDevices     bool
	GetAutomations bool
	// CacheFile is where the driver persists its session cache. The bridge
	// never reads it.
	CacheFile string
	// UserAgent identifies the bridge to the Abode cloud.
	UserAgent string
}
