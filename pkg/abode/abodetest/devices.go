package abodetest

import (
	"maps"
	"sync"

	"github.com/miguelangel-nubla/homeassistant-abode/pkg/abode"
)

var (
	_ abode.Device       = (*Device)(nil)
	_ abode.Camera       = (*Camera)(nil)
	_ abode.Switch       = (*Switch)(nil)
	_ abode.Dimmer       = (*Dimmer)(nil)
	_ abode.Lock         = (*Lock)(nil)
	_ abode.BinarySensor = (*BinarySensor)(nil)
	_ abode.Sensor       = (*Sensor)(nil)
	_ abode.Alarm        = (*Alarm)(nil)
	_ abode.Automation   = (*Automation)(nil)
)

type Device struct {
	mu         sync.Mutex
	id         string
	uuid       string
	name       string
	typ        string
	generic    string
	status     string
	batteryLow bool
	noResponse bool
	refreshErr error
	refreshes  int
}

func NewDevice(id, name, genericType string) *Device {
	return &Device{
		id:      id,
		uuid:    "uuid-" + id,
		name:    name,
		typ:     genericType,
		generic: genericType,
		status:  "Online",
	}
}

func (d *Device) ID() string          { return d.id }
func (d *Device) UUID() string        { return d.uuid }
func (d *Device) Name() string        { return d.name }
func (d *Device) GenericType() string { return d.generic }

func (d *Device) Type() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.typ
}

func (d *Device) SetType(typ string) {
	d.mu.Lock()
	d.typ = typ
	d.mu.Unlock()
}

func (d *Device) Status() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status
}

func (d *Device) SetStatus(status string) {
	d.mu.Lock()
	d.status = status
	d.mu.Unlock()
}

func (d *Device) BatteryLow() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.batteryLow
}

func (d *Device) SetBatteryLow(low bool) {
	d.mu.Lock()
	d.batteryLow = low
	d.mu.Unlock()
}

func (d *Device) NoResponse() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.noResponse
}

func (d *Device) SetNoResponse(noResponse bool) {
	d.mu.Lock()
	d.noResponse = noResponse
	d.mu.Unlock()
}

func (d *Device) Refresh() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.refreshes++
	return d.refreshErr
}

func (d *Device) SetRefreshError(err error) {
	d.mu.Lock()
	d.refreshErr = err
	d.mu.Unlock()
}

// Refreshes returns how many times Refresh was called.
func (d *Device) Refreshes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.refreshes
}

type Camera struct {
	*Device
	captures   int
	captureErr error
	image      []byte
}

func NewCamera(id, name string) *Camera {
	return &Camera{Device: NewDevice(id, name, abode.GenericCamera)}
}

func (c *Camera) Capture() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.captureErr != nil {
		return c.captureErr
	}
	c.captures++
	return nil
}

func (c *Camera) SetCaptureError(err error) {
	c.mu.Lock()
	c.captureErr = err
	c.mu.Unlock()
}

func (c *Camera) Captures() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.captures
}

func (c *Camera) Image() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.image, nil
}

func (c *Camera) SetImage(image []byte) {
	c.mu.Lock()
	c.image = image
	c.mu.Unlock()
}

type Switch struct {
	*Device
	on bool
}

func NewSwitch(id, name, genericType string) *Switch {
	return &Switch{Device: NewDevice(id, name, genericType)}
}

func (s *Switch) SwitchOn() error  { return s.set(true) }
func (s *Switch) SwitchOff() error { return s.set(false) }

func (s *Switch) set(on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.on = on
	return nil
}

func (s *Switch) IsOn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.on
}

type Dimmer struct {
	*Switch
	level int
}

func NewDimmer(id, name string) *Dimmer {
	return &Dimmer{Switch: NewSwitch(id, name, abode.GenericLight)}
}

func (d *Dimmer) SetLevel(level int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.level = level
	d.on = level > 0
	return nil
}

func (d *Dimmer) Brightness() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.level
}

type Lock struct {
	*Device
	locked bool
}

func NewLock(id, name string) *Lock {
	return &Lock{Device: NewDevice(id, name, abode.GenericLock)}
}

func (l *Lock) Lock() error   { return l.set(true) }
func (l *Lock) Unlock() error { return l.set(false) }

func (l *Lock) set(locked bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.locked = locked
	return nil
}

func (l *Lock) IsLocked() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.locked
}

type BinarySensor struct {
	*Device
	on bool
}

func NewBinarySensor(id, name, genericType string) *BinarySensor {
	return &BinarySensor{Device: NewDevice(id, name, genericType)}
}

func (b *BinarySensor) IsOn() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.on
}

func (b *BinarySensor) SetOn(on bool) {
	b.mu.Lock()
	b.on = on
	b.mu.Unlock()
}

type Sensor struct {
	*Device
	readings map[string]float64
	unit     string
}

func NewSensor(id, name string, readings map[string]float64) *Sensor {
	return &Sensor{
		Device:   NewDevice(id, name, abode.GenericSensor),
		readings: readings,
		unit:     abode.UnitFahrenheit,
	}
}

func (s *Sensor) Readings() map[string]float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.readings)
}

func (s *Sensor) SetReading(key string, value float64) {
	s.mu.Lock()
	s.readings[key] = value
	s.mu.Unlock()
}

func (s *Sensor) TemperatureUnit() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unit
}

func (s *Sensor) SetTemperatureUnit(unit string) {
	s.mu.Lock()
	s.unit = unit
	s.mu.Unlock()
}

type Alarm struct {
	*Device
	mode string
}

func NewAlarm(id, name string) *Alarm {
	return &Alarm{Device: NewDevice(id, name, abode.GenericAlarm), mode: abode.ModeStandby}
}

func (a *Alarm) Mode() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.mode
}

func (a *Alarm) SetStandby() error { return a.setMode(abode.ModeStandby) }
func (a *Alarm) SetHome() error    { return a.setMode(abode.ModeHome) }
func (a *Alarm) SetAway() error    { return a.setMode(abode.ModeAway) }

func (a *Alarm) setMode(mode string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.mode = mode
	return nil
}

type Automation struct {
	mu         sync.Mutex
	id         string
	name       string
	typ        string
	subType    string
	active     bool
	triggers   int
	refreshes  int
	triggerErr error
}

func NewAutomation(id, name string) *Automation {
	return &Automation{id: id, name: name, typ: "manual", subType: abode.SubTypeQuickAction, active: true}
}

// SetSubType changes the sub type, for example to make a regular
// automation out of the default quick action.
func (a *Automation) SetSubType(subType string) {
	a.mu.Lock()
	a.subType = subType
	a.mu.Unlock()
}

func (a *Automation) ID() string      { return a.id }
func (a *Automation) Name() string    { return a.name }
func (a *Automation) Type() string    { return a.typ }
func (a *Automation) SubType() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.subType
}

func (a *Automation) IsActive() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active
}

func (a *Automation) SetActive(active bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.active = active
	return nil
}

func (a *Automation) Trigger() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.triggerErr != nil {
		return a.triggerErr
	}
	a.triggers++
	return nil
}

func (a *Automation) SetTriggerError(err error) {
	a.mu.Lock()
	a.triggerErr = err
	a.mu.Unlock()
}

func (a *Automation) Triggers() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.triggers
}

func (a *Automation) Refresh() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.refreshes++
	return nil
}

func (a *Automation) Refreshes() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.refreshes
}
