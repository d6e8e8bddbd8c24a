package bridge

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/miguelangel-nubla/homeassistant-abode/pkg/abode"
	"github.com/miguelangel-nubla/homeassistant-abode/pkg/homeassistant"
)

// eventRecord picks the relayed fields out of a timeline payload. Missing or
// null fields become empty strings. Numbers keep their plain decimal form.
func eventRecord(event map[string]any) map[string]string {
	record := make(map[string]string, len(eventFields))
	for _, field := range eventFields {
		switch value := event[field].(type) {
		case nil:
			record[field] = ""
		case string:
			record[field] = value
		case float64:
			record[field] = strconv.FormatFloat(value, 'f', -1, 64)
		case float32:
			record[field] = strconv.FormatFloat(float64(value), 'f', -1, 32)
		case json.Number:
			record[field] = value.String()
		default:
			record[field] = fmt.Sprint(value)
		}
	}
	return record
}

// eventCallback relays timeline events of group onto the host bus while the
// entry is still set up.
func (i *Integration) eventCallback(entryID string, system *System, group string) abode.EventCallback {
	return func(event map[string]any) {
		if current, ok := i.registry.Get(entryID); !ok || current != system {
			return
		}

		if err := i.host.Bus.Fire(group, eventRecord(event)); err != nil {
			system.logger().WithField("event_type", group).WithError(err).Warn("Failed to relay Abode event")
		}
	}
}

func (i *Integration) setupAbodeEvents(entryID string, system *System) error {
	events := system.Client.Events()
	for _, group := range RelayedGroups {
		if err := events.AddEventCallback(group, i.eventCallback(entryID, system, group)); err != nil {
			return fmt.Errorf("failed to register %s callback: %w", group, err)
		}
		if err := i.host.Bus.RegisterEventEntity(group); err != nil {
			system.logger().WithField("event_type", group).WithError(err).Warn("Failed to announce event entity")
		}
	}
	return nil
}

// setupHostEvents starts the event stream unless polling and logs out when
// the host stops.
func (i *Integration) setupHostEvents(system *System) error {
	if !system.Polling {
		if err := system.startEvents(); err != nil {
			return fmt.Errorf("failed to start Abode events: %w", err)
		}
	}

	system.SetLogoutListener(i.host.Bus.ListenOnce(homeassistant.EventHomeAssistantStop, func(homeassistant.Event) {
		system.logout()
	}))
	return nil
}
