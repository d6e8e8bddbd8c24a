package homeassistant

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"
)

// Entity is a host-managed representation of one device or automation.
type Entity interface {
	EntityID() string
	SetEntityID(entityID string)
	Platform() string
	Name() string
	UniqueID() string
	State() string
	Attributes() map[string]any
	DeviceInfo() *DeviceInfo
	ShouldPoll() bool
	Update() error
	AddedToHost(host EntityHost) error
	WillRemoveFromHost() error
}

// EntityHost is handed to entities when they are added.
type EntityHost interface {
	ScheduleUpdate(entity Entity)
}

// DiscoveryConfigurer lets a platform add component-specific discovery fields.
type DiscoveryConfigurer interface {
	ConfigureDiscovery(cfg *EntityConfig)
}

// Commander is implemented by entities that accept commands on their command topic.
type Commander interface {
	HandleCommand(payload string) error
}

// ImageProvider is implemented by camera entities.
type ImageProvider interface {
	Image() ([]byte, error)
}

// EntityBase carries the bookkeeping every entity needs. Embed it.
type EntityBase struct {
	mutex    sync.RWMutex
	entityID string
	host     EntityHost
}

func (b *EntityBase) EntityID() string {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	return b.entityID
}

func (b *EntityBase) SetEntityID(entityID string) {
	b.mutex.Lock()
	b.entityID = entityID
	b.mutex.Unlock()
}

// Attach stores the host so that ScheduleUpdate can reach it later.
func (b *EntityBase) Attach(host EntityHost) {
	b.mutex.Lock()
	b.host = host
	b.mutex.Unlock()
}

// Detach forgets the host; later ScheduleUpdate calls are dropped.
func (b *EntityBase) Detach() {
	b.mutex.Lock()
	b.host = nil
	b.mutex.Unlock()
}

// ScheduleUpdate asks the host to publish the current state of self.
func (b *EntityBase) ScheduleUpdate(self Entity) {
	b.mutex.RLock()
	host := b.host
	b.mutex.RUnlock()

	if host != nil {
		host.ScheduleUpdate(self)
	}
}

type managedEntity struct {
	entity   Entity
	objectID string
	topics   *EntityTopics
}

// EntityManager publishes entities through MQTT discovery and keeps their
// state topics current.
type EntityManager struct {
	host     *Host
	mutex    sync.RWMutex
	entities map[string]*managedEntity
	order    []string
}

func newEntityManager(host *Host) *EntityManager {
	return &EntityManager{
		host:     host,
		entities: make(map[string]*managedEntity),
	}
}

// Add assigns an entity id, announces the entity and publishes its state.
func (m *EntityManager) Add(entity Entity) error {
	m.mutex.Lock()
	objectID := m.uniqueObjectID(entity.Platform(), Slugify(entity.Name()))
	entityID := fmt.Sprintf("%s.%s", entity.Platform(), objectID)
	entity.SetEntityID(entityID)
	managed := &managedEntity{
		entity:   entity,
		objectID: objectID,
		topics:   m.host.generateEntityTopics(entity.Platform(), objectID),
	}
	m.entities[entityID] = managed
	m.order = append(m.order, entityID)
	m.mutex.Unlock()

	logger := m.host.logger.WithField("entity_id", entityID)
	logger.Debug("Adding entity")

	if err := m.publishDiscoveryConfig(managed); err != nil {
		logger.WithError(err).Warn("Failed to publish discovery config, will retry on reconnect")
	}

	if _, ok := entity.(Commander); ok {
		err := m.host.broker.Subscribe(managed.topics.CommandTopic, func(_ string, payload []byte) {
			if err := m.Command(entityID, string(payload)); err != nil {
				logger.WithError(err).Warn("Command failed")
			}
		})
		if err != nil {
			logger.WithError(err).Error("Failed to subscribe command topic")
		}
	}

	if err := entity.AddedToHost(m); err != nil {
		if removeErr := m.Remove(entity); removeErr != nil {
			logger.WithError(removeErr).Debug("Failed to roll back entity")
		}
		return fmt.Errorf("failed to attach %s: %w", entityID, err)
	}

	m.ScheduleUpdate(entity)
	return nil
}

func (m *EntityManager) uniqueObjectID(platform, objectID string) string {
	candidate := objectID
	for i := 2; ; i++ {
		if _, taken := m.entities[platform+"."+candidate]; !taken {
			return candidate
		}
		candidate = fmt.Sprintf("%s_%d", objectID, i)
	}
}

// Remove detaches the entity and clears its retained discovery config.
func (m *EntityManager) Remove(entity Entity) error {
	entityID := entity.EntityID()

	m.mutex.Lock()
	managed, exists := m.entities[entityID]
	delete(m.entities, entityID)
	m.order = slices.DeleteFunc(m.order, func(id string) bool { return id == entityID })
	m.mutex.Unlock()

	if !exists {
		return fmt.Errorf("%w: %s", ErrUnknownEntity, entityID)
	}

	logger := m.host.logger.WithField("entity_id", entityID)

	if err := entity.WillRemoveFromHost(); err != nil {
		logger.WithError(err).Warn("Entity failed to detach cleanly")
	}

	if _, ok := entity.(Commander); ok {
		if err := m.host.broker.Unsubscribe(managed.topics.CommandTopic); err != nil {
			logger.WithError(err).Warn("Failed to unsubscribe command topic")
		}
	}

	if err := m.host.broker.Publish(managed.topics.ConfigTopic, "", true); err != nil {
		logger.WithError(err).Warn("Failed to clear discovery config")
	}

	logger.Debug("Entity removed")
	return nil
}

func (m *EntityManager) Get(entityID string) (Entity, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	managed, exists := m.entities[entityID]
	if !exists {
		return nil, false
	}
	return managed.entity, true
}

// Entities returns the managed entities in the order they were added.
func (m *EntityManager) Entities() []Entity {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	entities := make([]Entity, 0, len(m.order))
	for _, entityID := range m.order {
		entities = append(entities, m.entities[entityID].entity)
	}
	return entities
}

func (m *EntityManager) managed(entity Entity) *managedEntity {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	managed, exists := m.entities[entity.EntityID()]
	if !exists || managed.entity != entity {
		return nil
	}
	return managed
}

// Command hands payload to the entity's command handler and publishes the
// resulting state.
func (m *EntityManager) Command(entityID, payload string) error {
	entity, exists := m.Get(entityID)
	if !exists {
		return fmt.Errorf("%w: %s", ErrUnknownEntity, entityID)
	}

	commander, ok := entity.(Commander)
	if !ok {
		return fmt.Errorf("%w: %s", ErrCommandRejected, entityID)
	}

	if err := commander.HandleCommand(payload); err != nil {
		return err
	}

	m.ScheduleUpdate(entity)
	return nil
}

// ScheduleUpdate publishes the entity's state, attributes and, for cameras,
// its latest image.
func (m *EntityManager) ScheduleUpdate(entity Entity) {
	managed := m.managed(entity)
	if managed == nil {
		return
	}

	logger := m.host.logger.WithField("entity_id", entity.EntityID())

	if err := m.host.broker.Publish(managed.topics.StateTopic, entity.State(), true); err != nil {
		logger.WithError(err).Debug("Failed to publish state")
		return
	}

	attributes, err := json.Marshal(entity.Attributes())
	if err != nil {
		logger.WithError(err).Error("Failed to marshal attributes")
		return
	}
	if err := m.host.broker.Publish(managed.topics.AttributesTopic, string(attributes), true); err != nil {
		logger.WithError(err).Debug("Failed to publish attributes")
	}

	if provider, ok := entity.(ImageProvider); ok {
		image, err := provider.Image()
		if err != nil {
			logger.WithError(err).Warn("Failed to fetch camera image")
			return
		}
		if len(image) > 0 {
			if err := m.host.broker.Publish(managed.topics.ImageTopic, string(image), false); err != nil {
				logger.WithError(err).Debug("Failed to publish camera image")
			}
		}
	}
}

// PublishDiscovery re-announces every entity, used after (re)connects and
// when the host comes back online.
func (m *EntityManager) PublishDiscovery() {
	for _, entity := range m.Entities() {
		managed := m.managed(entity)
		if managed == nil {
			continue
		}
		if err := m.publishDiscoveryConfig(managed); err != nil {
			m.host.logger.WithField("entity_id", entity.EntityID()).WithError(err).Error("Failed to publish discovery config")
			continue
		}
		m.ScheduleUpdate(entity)
	}
}

func (m *EntityManager) publishDiscoveryConfig(managed *managedEntity) error {
	entity := managed.entity
	entityConfig := EntityConfig{
		Name:            entity.Name(),
		ObjectID:        managed.objectID,
		UniqueID:        entity.UniqueID(),
		TildeTopic:      managed.topics.BaseTopic,
		StateTopic:      "~/state",
		AttributesTopic: "~/attributes",
		Availability: []AvailabilityConfig{
			{
				Topic: m.host.GenerateBridgeAvailabilityTopic(),
			},
		},
		Device: entity.DeviceInfo(),
	}

	if _, ok := entity.(Commander); ok {
		entityConfig.CommandTopic = "~/set"
	}
	if _, ok := entity.(ImageProvider); ok {
		entityConfig.StateTopic = ""
		entityConfig.Topic = "~/image"
	}
	if configurer, ok := entity.(DiscoveryConfigurer); ok {
		configurer.ConfigureDiscovery(&entityConfig)
	}

	configJSON, err := json.Marshal(entityConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal discovery config: %w", err)
	}

	return m.host.broker.Publish(managed.topics.ConfigTopic, string(configJSON), true)
}

// PollAll refreshes every entity that asks to be polled and publishes the
// result.
func (m *EntityManager) PollAll() {
	for _, entity := range m.Entities() {
		if !entity.ShouldPoll() {
			continue
		}
		if err := entity.Update(); err != nil {
			m.host.logger.WithField("entity_id", entity.EntityID()).WithError(err).Warn("Failed to update entity")
			continue
		}
		m.ScheduleUpdate(entity)
	}
}

// Run polls every interval until ctx is done.
func (m *EntityManager) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.PollAll()
		}
	}
}
