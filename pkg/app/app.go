package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/miguelangel-nubla/homeassistant-abode/pkg/api"
	"github.com/miguelangel-nubla/homeassistant-abode/pkg/bridge"
	"github.com/miguelangel-nubla/homeassistant-abode/pkg/config"
	"github.com/miguelangel-nubla/homeassistant-abode/pkg/homeassistant"
	"github.com/miguelangel-nubla/homeassistant-abode/pkg/journal"
	"github.com/miguelangel-nubla/homeassistant-abode/pkg/mqtt"
)

const (
	initialSetupDelay = 5 * time.Second
	maxSetupDelay     = 5 * time.Minute
	unloadTimeout     = 10 * time.Second
)

type Application struct {
	config   *config.Config
	logger   *logrus.Logger
	version  string
	services *ServiceManager
	handlers *EventHandlers

	host        *homeassistant.Host
	integration *bridge.Integration
	entry       *bridge.ConfigEntry

	initialSetupDelay time.Duration
	maxSetupDelay     time.Duration
}

func NewApplication(cfg *config.Config, logger *logrus.Logger, version string) *Application {
	app := &Application{
		config:            cfg,
		logger:            logger,
		version:           version,
		initialSetupDelay: initialSetupDelay,
		maxSetupDelay:     maxSetupDelay,
	}

	app.services = NewServiceManager(logger)
	app.handlers = NewEventHandlers(logger)

	return app
}

func (app *Application) Initialize() error {
	app.logger.Info("Initializing application components...")

	bridgeAvailabilityTopic := homeassistant.GenerateBridgeAvailabilityTopic(&app.config.HomeAssistant)

	mqttClient, err := mqtt.NewClient(
		&app.config.MQTT,
		bridgeAvailabilityTopic,
		app.logger,
	)
	if err != nil {
		return err
	}

	app.services.Register(ServiceMQTT, mqttClient)

	return app.initialize(mqttClient)
}

// initialize wires everything that sits on top of the broker.
func (app *Application) initialize(broker homeassistant.Broker) error {
	app.host = homeassistant.NewHost(
		broker,
		&app.config.HomeAssistant,
		app.version,
		app.logger,
	)
	app.integration = bridge.NewIntegration(app.host, app.logger)
	app.entry = bridge.ImportConfig(app.config)

	app.services.Register(ServiceHost, app.host)

	deps := api.Deps{
		Host:        app.host,
		Integration: app.integration,
		Version:     app.version,
	}

	if app.config.Journal.Path != "" {
		j, err := journal.Open(app.config.Journal.Path, app.config.Journal.Retention, app.logger)
		if err != nil {
			return fmt.Errorf("failed to open event journal: %w", err)
		}
		j.Attach(app.host.Bus)
		app.services.Register(ServiceJournal, j)
		deps.Events = j
	}

	if app.config.API.Listen != "" {
		server, err := api.NewServer(app.config.API.Listen, deps, app.logger)
		if err != nil {
			return fmt.Errorf("failed to create API server: %w", err)
		}
		app.services.Register(ServiceAPI, server)
	}

	app.handlers.SetupHandlers(app.services, app.host)

	return nil
}

// Start starts the services and then sets the Abode entry up, retrying
// connection failures until ctx ends.
func (app *Application) Start(ctx context.Context) error {
	if err := app.services.StartAll(); err != nil {
		return err
	}

	if app.entry == nil {
		app.logger.Warn("No abode section configured, nothing to set up")
		return nil
	}

	return app.setupEntry(ctx)
}

func (app *Application) setupEntry(ctx context.Context) error {
	delay := app.initialSetupDelay

	for {
		err := app.integration.SetupEntry(ctx, app.entry)
		if err == nil {
			return nil
		}
		if !errors.Is(err, bridge.ErrSetupFailed) {
			return fmt.Errorf("failed to set up Abode: %w", err)
		}

		app.logger.WithError(err).WithField("retry_in", delay).Warn("Abode not ready, retrying")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay = min(delay*2, app.maxSetupDelay)
	}
}

// Stop lets host-stop listeners run, unloads the entry and stops the
// services in reverse order.
func (app *Application) Stop() error {
	if app.host != nil {
		app.host.Bus.FireLocal(homeassistant.EventHomeAssistantStop, nil)
	}

	if app.entry != nil {
		ctx, cancel := context.WithTimeout(context.Background(), unloadTimeout)
		defer cancel()

		if err := app.integration.UnloadEntry(ctx, app.entry.EntryID); err != nil && !errors.Is(err, bridge.ErrNotSetup) {
			app.logger.WithError(err).Error("Failed to unload Abode entry")
		}
	}

	return app.services.StopAll()
}
