package abodetest

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/miguelangel-nubla/homeassistant-abode/pkg/abode"
)

var (
	_ abode.Client          = (*Client)(nil)
	_ abode.EventController = (*EventController)(nil)
	_ abode.Driver          = (*Driver)(nil)
)

// Client is an in-memory abode.Client.
type Client struct {
	mu          sync.Mutex
	devices     []abode.Device
	automations []abode.Automation
	settings    map[string]string
	settingErr  error
	logouts     int
	events      *EventController
}

func NewClient() *Client {
	return &Client{
		settings: make(map[string]string),
		events:   NewEventController(),
	}
}

func (c *Client) AddDevice(devices ...abode.Device) {
	c.mu.Lock()
	c.devices = append(c.devices, devices...)
	c.mu.Unlock()
}

func (c *Client) AddAutomation(automations ...abode.Automation) {
	c.mu.Lock()
	c.automations = append(c.automations, automations...)
	c.mu.Unlock()
}

func (c *Client) Devices() ([]abode.Device, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.devices), nil
}

func (c *Client) Automations() ([]abode.Automation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.automations), nil
}

func (c *Client) SetSetting(setting, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.settingErr != nil {
		return c.settingErr
	}
	c.settings[setting] = value
	return nil
}

// SetSettingError makes every following SetSetting call fail with err.
func (c *Client) SetSettingError(err error) {
	c.mu.Lock()
	c.settingErr = err
	c.mu.Unlock()
}

func (c *Client) Settings() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return maps.Clone(c.settings)
}

func (c *Client) Events() abode.EventController { return c.events }

// Controller returns the concrete event controller for assertions.
func (c *Client) Controller() *EventController { return c.events }

func (c *Client) Logout() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logouts++
	return nil
}

func (c *Client) Logouts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.logouts
}

// EventController records callbacks and lets tests emit events.
type EventController struct {
	mu              sync.Mutex
	started         bool
	startErr        error
	starts          int
	stops           int
	eventCallbacks  map[string][]abode.EventCallback
	deviceCallbacks map[string][]abode.DeviceCallback
}

func NewEventController() *EventController {
	return &EventController{
		eventCallbacks:  make(map[string][]abode.EventCallback),
		deviceCallbacks: make(map[string][]abode.DeviceCallback),
	}
}

func (e *EventController) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.startErr != nil {
		return e.startErr
	}
	e.started = true
	e.starts++
	return nil
}

// SetStartError makes subsequent Start calls fail with err.
func (e *EventController) SetStartError(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.startErr = err
}

func (e *EventController) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.started = false
	e.stops++
	return nil
}

func (e *EventController) AddEventCallback(group string, callback abode.EventCallback) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.eventCallbacks[group] = append(e.eventCallbacks[group], callback)
	return nil
}

func (e *EventController) AddDeviceCallback(deviceID string, callback abode.DeviceCallback) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.deviceCallbacks[deviceID] = append(e.deviceCallbacks[deviceID], callback)
	return nil
}

func (e *EventController) RemoveAllDeviceCallbacks(deviceID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.deviceCallbacks, deviceID)
	return nil
}

// Emit delivers event to every callback registered for group.
func (e *EventController) Emit(group string, event map[string]any) {
	e.mu.Lock()
	callbacks := slices.Clone(e.eventCallbacks[group])
	e.mu.Unlock()

	for _, callback := range callbacks {
		callback(event)
	}
}

// EmitDevice delivers a state change for device.
func (e *EventController) EmitDevice(device abode.Device) {
	e.mu.Lock()
	callbacks := slices.Clone(e.deviceCallbacks[device.ID()])
	e.mu.Unlock()

	for _, callback := range callbacks {
		callback(device)
	}
}

func (e *EventController) Started() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.started
}

func (e *EventController) Starts() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.starts
}

func (e *EventController) Stops() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stops
}

func (e *EventController) EventCallbackCount(group string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.eventCallbacks[group])
}

func (e *EventController) DeviceCallbackCount(deviceID string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.deviceCallbacks[deviceID])
}

// Driver hands out Client, or fails with Err when it is set.
type Driver struct {
	mu     sync.Mutex
	Client abode.Client
	Err    error
	opened []abode.Options
}

func (d *Driver) Open(_ context.Context, opts abode.Options) (abode.Client, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.opened = append(d.opened, opts)
	if d.Err != nil {
		return nil, d.Err
	}
	return d.Client, nil
}

// SetErr changes the error returned by the following Open calls.
func (d *Driver) SetErr(err error) {
	d.mu.Lock()
	d.Err = err
	d.mu.Unlock()
}

// Opened returns the options of every Open call so far.
func (d *Driver) Opened() []abode.Options {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.opened)
}
