package bridge

import (
	"slices"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/miguelangel-nubla/homeassistant-abode/pkg/abode"
	"github.com/miguelangel-nubla/homeassistant-abode/pkg/homeassistant"
)

// System is the shared context of one set-up entry.
type System struct {
	Client  abode.Client
	Polling bool

	mutex          sync.RWMutex
	entities       []homeassistant.Entity
	logoutListener func()
	streaming      bool
	shutdown       sync.Once
	log            *logrus.Entry
}

func NewSystem(client abode.Client, polling bool, logger *logrus.Logger) *System {
	return &System{
		Client:  client,
		Polling: polling,
		log:     logger.WithField("component", Domain),
	}
}

func (s *System) logger() *logrus.Entry {
	return s.log
}

// logout stops the event stream if it was started and ends the session. Only
// the first call does anything, so the stop listener and unload can both
// call it.
func (s *System) logout() {
	s.shutdown.Do(func() {
		if s.Streaming() {
			if err := s.Client.Events().Stop(); err != nil {
				s.log.WithError(err).Warn("Failed to stop Abode events")
			}
		}

		if err := s.Client.Logout(); err != nil {
			s.log.WithError(err).Warn("Failed to log out of Abode")
			return
		}
		s.log.Info("Logged out of Abode")
	})
}

// startEvents starts the vendor event stream and remembers that it runs.
func (s *System) startEvents() error {
	if err := s.Client.Events().Start(); err != nil {
		return err
	}
	s.mutex.Lock()
	s.streaming = true
	s.mutex.Unlock()
	return nil
}

// Streaming reports whether the event stream was started.
func (s *System) Streaming() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.streaming
}

// AddDevice registers an entity that service calls may target.
func (s *System) AddDevice(entity homeassistant.Entity) {
	s.mutex.Lock()
	s.entities = append(s.entities, entity)
	s.mutex.Unlock()
}

// Devices returns the registered entities in registration order.
func (s *System) Devices() []homeassistant.Entity {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return slices.Clone(s.entities)
}

// Targets returns the registered entities whose id is in entityIDs.
func (s *System) Targets(entityIDs []string) []homeassistant.Entity {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var targets []homeassistant.Entity
	for _, entity := range s.entities {
		if slices.Contains(entityIDs, entity.EntityID()) {
			targets = append(targets, entity)
		}
	}
	return targets
}

func (s *System) removeDevices(platform string) []homeassistant.Entity {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	var removed []homeassistant.Entity
	s.entities = slices.DeleteFunc(s.entities, func(entity homeassistant.Entity) bool {
		if entity.Platform() == platform {
			removed = append(removed, entity)
			return true
		}
		return false
	})
	return removed
}

// SetLogoutListener stores the detach function of the host stop listener.
func (s *System) SetLogoutListener(detach func()) {
	s.mutex.Lock()
	s.logoutListener = detach
	s.mutex.Unlock()
}

// LogoutListener returns the detach function set by SetLogoutListener.
func (s *System) LogoutListener() func() {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if s.logoutListener == nil {
		return func() {}
	}
	return s.logoutListener
}

// Registry holds one System per entry id.
type Registry struct {
	mutex   sync.RWMutex
	systems map[string]*System
}

func NewRegistry() *Registry {
	return &Registry{systems: make(map[string]*System)}
}

func (r *Registry) Get(entryID string) (*System, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	system, ok := r.systems[entryID]
	return system, ok
}

// Set stores system for entryID. It fails if one is already stored.
func (r *Registry) Set(entryID string, system *System) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if _, exists := r.systems[entryID]; exists {
		return ErrAlreadySetup
	}
	r.systems[entryID] = system
	return nil
}

// Delete removes and returns the system of entryID.
func (r *Registry) Delete(entryID string) (*System, bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	system, ok := r.systems[entryID]
	delete(r.systems, entryID)
	return system, ok
}

func (r *Registry) Len() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.systems)
}

// Systems returns every stored system keyed by entry id.
func (r *Registry) Systems() map[string]*System {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	systems := make(map[string]*System, len(r.systems))
	for entryID, system := range r.systems {
		systems[entryID] = system
	}
	return systems
}
