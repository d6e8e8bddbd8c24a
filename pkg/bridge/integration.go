package bridge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/miguelangel-nubla/homeassistant-abode/pkg/abode"
	"github.com/miguelangel-nubla/homeassistant-abode/pkg/common"
	"github.com/miguelangel-nubla/homeassistant-abode/pkg/config"
	"github.com/miguelangel-nubla/homeassistant-abode/pkg/homeassistant"
)

// Integration sets Abode entries up on a host and tears them down again.
// Like the host's own integration it is single-instance: one entry at a
// time.
type Integration struct {
	host     *homeassistant.Host
	registry *Registry
	logger   *logrus.Logger

	mutex   sync.Mutex
	pollers map[string]context.CancelFunc
}

func NewIntegration(host *homeassistant.Host, logger *logrus.Logger) *Integration {
	return &Integration{
		host:     host,
		registry: NewRegistry(),
		logger:   logger,
		pollers:  make(map[string]context.CancelFunc),
	}
}

// Systems returns the shared context of every set-up entry.
func (i *Integration) Systems() map[string]*System {
	return i.registry.Systems()
}

// SetupEntry logs in and exposes the account on the host. Connection
// failures wrap ErrSetupFailed and are worth retrying.
func (i *Integration) SetupEntry(ctx context.Context, entry *ConfigEntry) error {
	i.mutex.Lock()
	defer i.mutex.Unlock()

	if i.registry.Len() > 0 {
		return fmt.Errorf("%w: %s", ErrAlreadySetup, entry.EntryID)
	}

	logger := i.logger.WithFields(logrus.Fields{
		"entry_id": entry.EntryID,
		"source":   entry.Source,
	})

	client, err := abode.Open(ctx, entry.driver(), abode.Options{
		Username:       entry.Data.Username,
		Password:       entry.Data.Password,
		AutoLogin:      true,
		GetDevices:     true,
		GetAutomations: true,
		CacheFile:      entry.cacheFile(),
		UserAgent:      common.UserAgent(),
	})
	if err != nil {
		if abode.IsConnectionError(err) {
			logger.WithError(err).Error("Unable to connect to Abode")
			return fmt.Errorf("%w: %w", ErrSetupFailed, err)
		}
		return fmt.Errorf("failed to open Abode session: %w", err)
	}

	system := NewSystem(client, entry.Data.Polling, i.logger)
	if err := i.registry.Set(entry.EntryID, system); err != nil {
		return err
	}

	for _, platform := range Platforms {
		if err := i.forwardEntrySetup(system, platform); err != nil {
			logger.WithField("platform", platform).WithError(err).Error("Failed to set up platform")
		}
	}

	if err := i.setupHostEvents(system); err != nil {
		i.teardown(entry.EntryID, system)
		return err
	}
	if err := i.setupHostServices(system); err != nil {
		i.teardown(entry.EntryID, system)
		return err
	}
	if err := i.setupAbodeEvents(entry.EntryID, system); err != nil {
		i.teardown(entry.EntryID, system)
		return err
	}

	if system.Polling {
		i.startPoller(entry)
	}

	i.host.RefreshDiagnostics()
	logger.WithFields(logrus.Fields{
		"entities": len(system.Devices()),
		"polling":  system.Polling,
	}).Info("Abode entry set up")
	return nil
}

// UnloadEntry undoes SetupEntry.
func (i *Integration) UnloadEntry(_ context.Context, entryID string) error {
	i.mutex.Lock()
	defer i.mutex.Unlock()

	system, ok := i.registry.Get(entryID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotSetup, entryID)
	}

	i.teardown(entryID, system)
	i.host.RefreshDiagnostics()
	i.logger.WithField("entry_id", entryID).Info("Abode entry unloaded")
	return nil
}

func (i *Integration) teardown(entryID string, system *System) {
	i.removeHostServices()

	if cancel, ok := i.pollers[entryID]; ok {
		cancel()
		delete(i.pollers, entryID)
	}

	for _, platform := range Platforms {
		i.forwardEntryUnload(system, platform)
	}

	system.logout()
	system.LogoutListener()()
	i.registry.Delete(entryID)
}

func (i *Integration) forwardEntrySetup(system *System, platform string) error {
	setup, ok := platformSetups[platform]
	if !ok {
		return fmt.Errorf("unknown platform %s", platform)
	}

	entities, err := setup(system)
	if err != nil {
		return err
	}

	for _, entity := range entities {
		if err := i.host.Entities.Add(entity); err != nil {
			system.logger().WithField("platform", platform).WithError(err).Error("Failed to add entity")
			continue
		}
		system.AddDevice(entity)
	}
	return nil
}

func (i *Integration) forwardEntryUnload(system *System, platform string) {
	for _, entity := range system.removeDevices(platform) {
		if err := i.host.Entities.Remove(entity); err != nil {
			system.logger().WithField(AttrEntityID, entity.EntityID()).WithError(err).Warn("Failed to remove entity")
		}
	}
}

func (i *Integration) startPoller(entry *ConfigEntry) {
	interval := entry.ScanInterval
	if interval <= 0 {
		interval = config.DefaultScanInterval * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	i.pollers[entry.EntryID] = cancel
	go i.host.Entities.Run(ctx, interval)
}

func (e *ConfigEntry) driver() string {
	if e.Driver == "" {
		return config.DefaultDriver
	}
	return e.Driver
}

func (e *ConfigEntry) cacheFile() string {
	if e.CacheFile == "" {
		return DefaultCacheFile
	}
	return e.CacheFile
}
