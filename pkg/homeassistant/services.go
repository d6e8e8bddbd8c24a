package homeassistant

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v3"
)

// ServiceCall carries the validated data of a single service invocation.
type ServiceCall struct {
	Domain  string
	Service string
	Data    map[string]any
}

// String returns data[key] when it is a string.
func (c ServiceCall) String(key string) string {
	value, _ := c.Data[key].(string)
	return value
}

// EntityIDs returns the entity_id field as a list. Like the host's own
// entity_ids validator it accepts a comma separated string or a list and
// lower-cases every id.
func (c ServiceCall) EntityIDs() []string {
	var raw []string
	switch value := c.Data["entity_id"].(type) {
	case string:
		raw = strings.Split(value, ",")
	case []any:
		for _, item := range value {
			if s, ok := item.(string); ok {
				raw = append(raw, s)
			}
		}
	}

	ids := make([]string, 0, len(raw))
	for _, id := range raw {
		id = strings.ToLower(strings.TrimSpace(id))
		if id != "" && !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	return ids
}

type ServiceHandler func(call ServiceCall)

type registeredService struct {
	handler ServiceHandler
	schema  *jsonschema.Schema
	topic   string
}

// ServiceRegistry exposes host services on MQTT command topics. The same
// validation path serves calls that arrive through Call directly.
type ServiceRegistry struct {
	host     *Host
	mutex    sync.RWMutex
	services map[string]*registeredService
}

func newServiceRegistry(host *Host) *ServiceRegistry {
	return &ServiceRegistry{
		host:     host,
		services: make(map[string]*registeredService),
	}
}

func serviceKey(domain, service string) string {
	return domain + "." + service
}

func compileSchema(name, schema string) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	url := name + ".json"
	if err := compiler.AddResource(url, strings.NewReader(schema)); err != nil {
		return nil, fmt.Errorf("failed to load schema for %s: %w", name, err)
	}
	compiled, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema for %s: %w", name, err)
	}
	return compiled, nil
}

// Register adds domain.service, validating every call against schema (a JSON
// schema document).
func (r *ServiceRegistry) Register(domain, service string, handler ServiceHandler, schema string) error {
	key := serviceKey(domain, service)

	compiled, err := compileSchema(key, schema)
	if err != nil {
		return err
	}

	r.mutex.Lock()
	if _, exists := r.services[key]; exists {
		r.mutex.Unlock()
		return fmt.Errorf("%w: %s", ErrServiceExists, key)
	}
	registered := &registeredService{
		handler: handler,
		schema:  compiled,
		topic:   r.host.ServiceTopic(domain, service),
	}
	r.services[key] = registered
	r.mutex.Unlock()

	err = r.host.broker.Subscribe(registered.topic, func(_ string, payload []byte) {
		if err := r.Call(domain, service, payload); err != nil {
			r.host.logger.WithField("service", key).WithError(err).Warn("Service call rejected")
		}
	})
	if err != nil {
		r.mutex.Lock()
		delete(r.services, key)
		r.mutex.Unlock()
		return fmt.Errorf("failed to subscribe service %s: %w", key, err)
	}

	r.host.logger.WithField("service", key).Debug("Service registered")
	return nil
}

// Remove unregisters domain.service. Removing an unknown service is a no-op.
func (r *ServiceRegistry) Remove(domain, service string) {
	key := serviceKey(domain, service)

	r.mutex.Lock()
	registered, exists := r.services[key]
	delete(r.services, key)
	r.mutex.Unlock()

	if !exists {
		return
	}

	if err := r.host.broker.Unsubscribe(registered.topic); err != nil {
		r.host.logger.WithField("service", key).WithError(err).Warn("Failed to unsubscribe service topic")
	}
	r.host.logger.WithField("service", key).Debug("Service removed")
}

func (r *ServiceRegistry) Has(domain, service string) bool {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	_, exists := r.services[serviceKey(domain, service)]
	return exists
}

// Services returns the registered services as sorted "domain.service" names.
func (r *ServiceRegistry) Services() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	names := make([]string, 0, len(r.services))
	for key := range r.services {
		names = append(names, key)
	}
	slices.Sort(names)
	return names
}

// Call validates payload and runs the handler synchronously. An empty
// payload is treated as an empty object.
func (r *ServiceRegistry) Call(domain, service string, payload []byte) error {
	key := serviceKey(domain, service)

	r.mutex.RLock()
	registered, exists := r.services[key]
	r.mutex.RUnlock()

	if !exists {
		return fmt.Errorf("%w: %s", ErrUnknownService, key)
	}

	if len(bytes.TrimSpace(payload)) == 0 {
		payload = []byte("{}")
	}

	if err := registered.schema.Validate(bytes.NewReader(payload)); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidPayload, key, err)
	}

	data := make(map[string]any)
	if err := json.Unmarshal(payload, &data); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidPayload, key, err)
	}

	r.host.logger.WithFields(map[string]any{
		"service": key,
		"data":    data,
	}).Debug("Calling service")

	registered.handler(ServiceCall{Domain: domain, Service: service, Data: data})
	return nil
}
