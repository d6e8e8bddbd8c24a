package app

import (
	"github.com/sirupsen/logrus"

	"github.com/miguelangel-nubla/homeassistant-abode/pkg/homeassistant"
	"github.com/miguelangel-nubla/homeassistant-abode/pkg/journal"
)

// EventHandlers logs what flows over the host bus
type EventHandlers struct {
	logger *logrus.Logger
	detach []func()
}

// NewEventHandlers creates a new event handlers instance
func NewEventHandlers(logger *logrus.Logger) *EventHandlers {
	return &EventHandlers{
		logger: logger,
	}
}

// SetupHandlers attaches the logging listeners to the host bus
func (h *EventHandlers) SetupHandlers(services *ServiceManager, host *homeassistant.Host) {
	h.detach = append(h.detach,
		host.Bus.Listen(homeassistant.MatchAll, h.createEventHandler()),
		host.Bus.Listen(homeassistant.EventHomeAssistantStart, h.createStartHandler(services)),
	)
}

// Detach removes every listener added by SetupHandlers
func (h *EventHandlers) Detach() {
	for _, detach := range h.detach {
		detach()
	}
	h.detach = nil
}

// createEventHandler logs every event relayed to the host
func (h *EventHandlers) createEventHandler() homeassistant.Listener {
	return func(event homeassistant.Event) {
		if !event.Remote() {
			return
		}

		fields := logrus.Fields{
			"event_type": event.EventType,
			"context_id": event.Context.ID,
		}
		if data, ok := event.Data.(map[string]string); ok {
			fields["device_name"] = data["device_name"]
			fields["event_name"] = data["event_name"]
		}
		h.logger.WithFields(fields).Info("Abode event relayed")
	}
}

// createStartHandler reports which services are up when the host comes online
func (h *EventHandlers) createStartHandler(services *ServiceManager) homeassistant.Listener {
	return func(homeassistant.Event) {
		logger := h.logger.WithField("services", services.Names())
		if j, ok := Lookup[*journal.Journal](services, ServiceJournal); ok {
			logger = logger.WithField("journal", j.Path())
		}
		logger.Info("Home Assistant online, discovery republished")
	}
}
