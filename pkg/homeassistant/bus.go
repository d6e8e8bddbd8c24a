package homeassistant

import (
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
)

// Host events that only travel on the local bus.
const (
	EventHomeAssistantStart = "homeassistant_start"
	EventHomeAssistantStop  = "homeassistant_stop"

	// MatchAll subscribes a listener to every event type.
	MatchAll = "*"

	originLocal  = "LOCAL"
	originRemote = "REMOTE"
)

type EventContext struct {
	ID string `json:"id"`
}

// Event is what listeners receive and what goes out on the event topic.
type Event struct {
	EventType string       `json:"event_type"`
	Data      any          `json:"data"`
	Origin    string       `json:"origin"`
	TimeFired time.Time    `json:"time_fired"`
	Context   EventContext `json:"context"`
}

// Remote reports whether the event was fired onto MQTT rather than only the
// local bus.
func (e Event) Remote() bool {
	return e.Origin == originRemote
}

type Listener func(event Event)

type listener struct {
	fn   Listener
	once bool
}

// Bus is the host event bus. Fire publishes on MQTT and notifies local
// listeners; FireLocal only does the latter.
type Bus struct {
	host      *Host
	mutex     sync.Mutex
	listeners map[string][]*listener
	now       func() time.Time
}

func newBus(host *Host) *Bus {
	return &Bus{
		host:      host,
		listeners: make(map[string][]*listener),
		now:       time.Now,
	}
}

func (b *Bus) newEvent(eventType string, data any, origin string) Event {
	contextID, err := uuid.NewV4()
	if err != nil {
		b.host.logger.WithError(err).Warn("Failed to generate event context id")
	}

	return Event{
		EventType: eventType,
		Data:      data,
		Origin:    origin,
		TimeFired: b.now().UTC(),
		Context:   EventContext{ID: contextID.String()},
	}
}

// Fire publishes eventType with data to the event topic and notifies local
// listeners. Listeners are notified even when the publish fails.
func (b *Bus) Fire(eventType string, data any) error {
	event := b.newEvent(eventType, data, originRemote)
	b.dispatch(event)

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", eventType, err)
	}

	if err := b.host.broker.Publish(b.host.EventTopic(eventType), string(payload), false); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", eventType, err)
	}
	return nil
}

func (b *Bus) FireLocal(eventType string, data any) {
	b.dispatch(b.newEvent(eventType, data, originLocal))
}

// Listen registers fn for eventType and returns the function that detaches it.
func (b *Bus) Listen(eventType string, fn Listener) func() {
	return b.add(eventType, &listener{fn: fn})
}

// ListenOnce is Listen for a single delivery.
func (b *Bus) ListenOnce(eventType string, fn Listener) func() {
	return b.add(eventType, &listener{fn: fn, once: true})
}

func (b *Bus) add(eventType string, l *listener) func() {
	b.mutex.Lock()
	b.listeners[eventType] = append(b.listeners[eventType], l)
	b.mutex.Unlock()

	return func() { b.remove(eventType, l) }
}

func (b *Bus) remove(eventType string, l *listener) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.listeners[eventType] = slices.DeleteFunc(b.listeners[eventType], func(other *listener) bool {
		return other == l
	})
	if len(b.listeners[eventType]) == 0 {
		delete(b.listeners, eventType)
	}
}

// ListenerCount returns the number of listeners attached to eventType.
func (b *Bus) ListenerCount(eventType string) int {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return len(b.listeners[eventType])
}

func (b *Bus) dispatch(event Event) {
	b.mutex.Lock()
	var targets []*listener
	for _, eventType := range []string{event.EventType, MatchAll} {
		targets = append(targets, b.listeners[eventType]...)
		b.listeners[eventType] = slices.DeleteFunc(b.listeners[eventType], func(l *listener) bool {
			return l.once
		})
		if len(b.listeners[eventType]) == 0 {
			delete(b.listeners, eventType)
		}
	}
	b.mutex.Unlock()

	for _, l := range targets {
		l.fn(event)
	}
}

// RegisterEventEntity announces eventType as an MQTT event entity so the host
// UI shows it. The announcement is repeated on every reconnect.
func (b *Bus) RegisterEventEntity(eventType string) error {
	b.host.mutex.Lock()
	if !slices.Contains(b.host.eventTypes, eventType) {
		b.host.eventTypes = append(b.host.eventTypes, eventType)
	}
	b.host.mutex.Unlock()

	if !b.host.broker.IsConnected() {
		return nil
	}
	return b.host.publishEventEntityDiscoveryConfig(eventType)
}
