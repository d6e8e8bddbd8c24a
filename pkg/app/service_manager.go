package app

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// Names the application registers its services under.
const (
	ServiceMQTT    = "mqtt"
	ServiceHost    = "homeassistant"
	ServiceJournal = "journal"
	ServiceAPI     = "api"
)

const connectTimeout = 10 * time.Second

type Service interface {
	Start() error
	Stop() error
}

// connection is a service the others depend on. It is connected before any
// other service starts and disconnected after they all stopped.
type connection interface {
	Service
	Connect() error
	WaitForConnection(timeout time.Duration) error
	Disconnect()
}

type ServiceManager struct {
	services map[string]Service
	order    []string
	logger   *logrus.Logger
}

func NewServiceManager(logger *logrus.Logger) *ServiceManager {
	return &ServiceManager{
		services: make(map[string]Service),
		logger:   logger,
	}
}

// Register adds service under name. Registering a name again replaces the
// service but keeps its original start position.
func (sm *ServiceManager) Register(name string, service Service) {
	if _, exists := sm.services[name]; !exists {
		sm.order = append(sm.order, name)
	}
	sm.services[name] = service
	sm.logger.WithField("service", name).Debug("Service registered")
}

func (sm *ServiceManager) Get(name string) Service {
	return sm.services[name]
}

// Names returns the registered services in start order.
func (sm *ServiceManager) Names() []string {
	return append([]string(nil), sm.order...)
}

// Lookup returns the service registered under name as a T. It reports false
// when nothing is registered there or the service is of another type.
func Lookup[T Service](sm *ServiceManager, name string) (T, bool) {
	var zero T
	service, ok := sm.services[name]
	if !ok {
		return zero, false
	}
	typed, ok := service.(T)
	if !ok {
		sm.logger.WithFields(logrus.Fields{
			"service": name,
			"type":    fmt.Sprintf("%T", service),
		}).Error("Service type assertion failed")
		return zero, false
	}
	return typed, true
}

func (sm *ServiceManager) StartAll() error {
	sm.logger.Info("Starting application services...")

	for _, name := range sm.order {
		conn, ok := sm.services[name].(connection)
		if !ok {
			continue
		}
		if err := conn.Connect(); err != nil {
			return fmt.Errorf("%s connection failed: %w", name, err)
		}
		if err := conn.WaitForConnection(connectTimeout); err != nil {
			return fmt.Errorf("%s connection timeout: %w", name, err)
		}
		sm.logger.WithField("service", name).Info("Connected")
	}

	for _, name := range sm.order {
		service := sm.services[name]
		if _, ok := service.(connection); ok {
			continue
		}

		logger := sm.logger.WithField("service", name)
		logger.Debug("Starting service")
		if err := service.Start(); err != nil {
			return fmt.Errorf("failed to start service %s: %w", name, err)
		}
		logger.Debug("Service started")
	}

	sm.logger.Info("All services started successfully")
	return nil
}

// StopAll stops the services in reverse start order, then disconnects the
// connections. Failures are logged and do not stop the sweep.
func (sm *ServiceManager) StopAll() error {
	sm.logger.Info("Stopping application services...")

	var connections []string
	for i := len(sm.order) - 1; i >= 0; i-- {
		name := sm.order[i]
		service := sm.services[name]
		if _, ok := service.(connection); ok {
			connections = append(connections, name)
			continue
		}

		logger := sm.logger.WithField("service", name)
		logger.Debug("Stopping service")
		if err := service.Stop(); err != nil {
			logger.WithError(err).Error("Failed to stop service")
		} else {
			logger.Debug("Service stopped")
		}
	}

	for _, name := range connections {
		sm.services[name].(connection).Disconnect()
		sm.logger.WithField("service", name).Debug("Disconnected")
	}

	sm.logger.Info("All services stopped")
	return nil
}
