package bridge

import (
	"github.com/miguelangel-nubla/homeassistant-abode/pkg/abode"
	"github.com/miguelangel-nubla/homeassistant-abode/pkg/config"
)

const (
	Domain      = "abode"
	Attribution = "Data provided by goabode.com"

	DefaultCacheFile = config.DefaultCacheFile
)

// Services registered under Domain.
const (
	ServiceSettings     = "change_setting"
	ServiceCaptureImage = "capture_image"
	ServiceTrigger      = "trigger_quick_action"
)

// Keys of the relayed event record and of service data.
const (
	AttrAttribution = "attribution"
	AttrDeviceID    = "device_id"
	AttrDeviceName  = "device_name"
	AttrDeviceType  = "device_type"
	AttrEventCode   = "event_code"
	AttrEventName   = "event_name"
	AttrEventType   = "event_type"
	AttrEventUTC    = "event_utc"
	AttrUserName    = "user_name"
	AttrDate        = "date"
	AttrTime        = "time"
	AttrSetting     = "setting"
	AttrValue       = "value"
	AttrEntityID    = "entity_id"
)

// Platforms every entry is forwarded to, in setup order.
var Platforms = []string{
	"alarm_control_panel",
	"binary_sensor",
	"lock",
	"switch",
	"cover",
	"camera",
	"light",
	"sensor",
}

// RelayedGroups are the timeline groups republished on the host bus.
var RelayedGroups = []string{
	abode.AlarmGroup,
	abode.AlarmEndGroup,
	abode.PanelFaultGroup,
	abode.PanelRestoreGroup,
	abode.AutomationGroup,
}

// eventFields is the record every relayed event carries, in order.
var eventFields = []string{
	AttrDeviceID,
	AttrDeviceName,
	AttrDeviceType,
	AttrEventCode,
	AttrEventName,
	AttrEventType,
	AttrEventUTC,
	AttrUserName,
	AttrDate,
	AttrTime,
}
