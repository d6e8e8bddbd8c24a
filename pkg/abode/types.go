package abode

// Generic device types reported by Device.GenericType.
const (
	GenericAlarm        = "alarm"
	GenericCamera       = "camera"
	GenericConnectivity = "connectivity"
	GenericCover        = "cover"
	GenericDoor         = "door"
	GenericLight        = "light"
	GenericLock         = "lock"
	GenericMoisture     = "moisture"
	GenericMotion       = "motion"
	GenericOccupancy    = "occupancy"
	GenericSensor       = "sensor"
	GenericSwitch       = "switch"
)

// Alarm modes.
const (
	ModeStandby = "standby"
	ModeHome    = "home"
	ModeAway    = "away"
)

// Timeline event groups delivered through EventController.AddEventCallback.
const (
	AlarmGroup          = "abode_alarm"
	AlarmEndGroup       = "abode_alarm_end"
	PanelFaultGroup     = "abode_panel_fault"
	PanelRestoreGroup   = "abode_panel_restore"
	AutomationGroup     = "abode_automation"
	AutomationEditGroup = "abode_automation_edit"
	CaptureGroup        = "abode_camera_capture"
)

// Device is a single piece of Abode hardware, including the alarm panel.
type Device interface {
	ID() string
	UUID() string
	Name() string
	Type() string
	GenericType() string
	Status() string
	BatteryLow() bool
	NoResponse() bool
	Refresh() error
}

// Camera is implemented by devices able to take snapshots.
type Camera interface {
	Device
	Capture() error
	Image() ([]byte, error)
}

// Switch is implemented by power switches, covers and lights.
type Switch interface {
	Device
	SwitchOn() error
	SwitchOff() error
	IsOn() bool
}

// Dimmer is implemented by lights with adjustable brightness (0-100).
type Dimmer interface {
	Switch
	SetLevel(level int) error
	Brightness() int
}

type Lock interface {
	Device
	Lock() error
	Unlock() error
	IsLocked() bool
}

type BinarySensor interface {
	Device
	IsOn() bool
}

// Reading keys reported by Sensor.Readings.
const (
	ReadingTemperature = "temperature"
	ReadingHumidity    = "humidity"
	ReadingLux         = "lux"
)

const (
	UnitCelsius    = "°C"
	UnitFahrenheit = "°F"
)

// Sensor is implemented by multi-sensors. Only the readings the hardware
// supports are present.
type Sensor interface {
	Device
	Readings() map[string]float64
	TemperatureUnit() string
}

type Alarm interface {
	Device
	Mode() string
	SetStandby() error
	SetHome() error
	SetAway() error
}

// SubTypeQuickAction marks automations that are triggered on demand.
const SubTypeQuickAction = "quick_action"

// Automation is an Abode automation; quick actions are automations that can
// be triggered on demand.
type Automation interface {
	ID() string
	Name() string
	Type() string
	SubType() string
	IsActive() bool
	SetActive(active bool) error
	Trigger() error
	Refresh() error
}
