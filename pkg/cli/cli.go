package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/miguelangel-nubla/homeassistant-abode/pkg/abode"
	"github.com/miguelangel-nubla/homeassistant-abode/pkg/app"
	"github.com/miguelangel-nubla/homeassistant-abode/pkg/bridge"
	"github.com/miguelangel-nubla/homeassistant-abode/pkg/common"
	"github.com/miguelangel-nubla/homeassistant-abode/pkg/config"
)

const AppName = common.ProductName

type CLI struct {
	app    *app.Application
	logger *logrus.Logger
	out    io.Writer
	in     io.Reader
}

func NewCLI() *CLI {
	return &CLI{out: os.Stdout, in: os.Stdin}
}

func (c *CLI) Run(args []string) error {
	cmd := &cli.Command{
		Name:    AppName,
		Usage:   "Abode security system bridge for Home Assistant",
		Version: common.GetVersion(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Load configuration from `FILE`",
				Value:   "config.yaml",
			},
			&cli.BoolFlag{
				Name:  "list-devices",
				Usage: "Log in, list the Abode devices and automations, and exit",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Set log level (debug, info, warn, error)",
				Value: "info",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "configure",
				Usage:  "Store Abode credentials in the .env file next to the configuration",
				Action: c.runConfigure,
			},
		},
		Action: c.runApp,
	}

	return cmd.Run(context.Background(), args)
}

func (c *CLI) runApp(ctx context.Context, cmd *cli.Command) error {
	c.logger = c.setupLogger(cmd)

	// If no config file exists at default location and no explicit config provided,
	// show help instead of failing
	configPath := cmd.String("config")
	if !cmd.IsSet("config") && configPath == "config.yaml" {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			if helpErr := cli.ShowAppHelp(cmd); helpErr != nil {
				return fmt.Errorf("failed to show help: %w", helpErr)
			}
			return fmt.Errorf("no configuration found - create config.yaml or specify with --config")
		}
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	c.applyConfigLogging(cmd, cfg)

	if cmd.Bool("list-devices") {
		return c.listDevices(ctx, cfg)
	}

	c.logger.Infof("Starting %s v%s", AppName, common.GetVersion())

	c.app = app.NewApplication(cfg, c.logger, common.GetVersion())
	if err := c.app.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownCh := c.setupSignalHandling()
	go func() {
		select {
		case <-shutdownCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := c.app.Start(ctx); err != nil {
		if ctx.Err() != nil {
			return c.app.Stop()
		}
		if stopErr := c.app.Stop(); stopErr != nil {
			c.logger.WithError(stopErr).Error("Failed to stop application")
		}
		return err
	}

	<-ctx.Done()

	return c.app.Stop()
}

func (c *CLI) setupLogger(cmd *cli.Command) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if level, err := logrus.ParseLevel(cmd.String("log-level")); err == nil {
		logger.SetLevel(level)
	}

	return logger
}

func (c *CLI) applyConfigLogging(cmd *cli.Command, cfg *config.Config) {
	if !cmd.IsSet("log-level") {
		if level, err := logrus.ParseLevel(cfg.Logging.Level); err == nil {
			c.logger.SetLevel(level)
		}
	}
	if strings.EqualFold(cfg.Logging.Format, "json") {
		c.logger.SetFormatter(&logrus.JSONFormatter{})
	}
}

func (c *CLI) setupSignalHandling() <-chan struct{} {
	shutdownCh := make(chan struct{})
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		c.logger.Infof("Received signal: %v", sig)
		close(shutdownCh)
	}()

	return shutdownCh
}

func (c *CLI) listDevices(ctx context.Context, cfg *config.Config) error {
	entry := bridge.ImportConfig(cfg)
	if entry == nil {
		return fmt.Errorf("no abode section configured")
	}

	client, err := abode.Open(ctx, cfg.Abode.Driver, abode.Options{
		Username:       entry.Data.Username,
		Password:       entry.Data.Password,
		AutoLogin:      true,
		GetDevices:     true,
		GetAutomations: true,
		CacheFile:      cfg.Abode.CacheFile,
		UserAgent:      common.UserAgent(),
	})
	if err != nil {
		return fmt.Errorf("failed to log in to Abode: %w", err)
	}
	defer func() {
		if err := client.Logout(); err != nil {
			c.logger.WithError(err).Warn("Failed to log out of Abode")
		}
	}()

	return c.printInventory(client)
}

func (c *CLI) printInventory(client abode.Client) error {
	devices, err := client.Devices()
	if err != nil {
		return fmt.Errorf("failed to list devices: %w", err)
	}
	automations, err := client.Automations()
	if err != nil {
		return fmt.Errorf("failed to list automations: %w", err)
	}

	fmt.Fprintf(c.out, "Found %d device(s):\n\n", len(devices))
	for i, device := range devices {
		fmt.Fprintf(c.out, "%d. %s\n", i+1, device.Name())
		fmt.Fprintf(c.out, "   ID: %s\n", device.ID())
		fmt.Fprintf(c.out, "   Type: %s (%s)\n", device.Type(), device.GenericType())
		fmt.Fprintf(c.out, "   Status: %s\n", device.Status())
		fmt.Fprintln(c.out)
	}

	fmt.Fprintf(c.out, "Found %d automation(s):\n\n", len(automations))
	for i, automation := range automations {
		fmt.Fprintf(c.out, "%d. %s\n", i+1, automation.Name())
		fmt.Fprintf(c.out, "   ID: %s\n", automation.ID())
		if subType := automation.SubType(); subType != "" {
			fmt.Fprintf(c.out, "   Sub type: %s\n", subType)
		}
		fmt.Fprintln(c.out)
	}

	return nil
}

func (c *CLI) runConfigure(_ context.Context, cmd *cli.Command) error {
	envFile := filepath.Join(filepath.Dir(cmd.String("config")), ".env")

	reader := bufio.NewReader(c.in)
	fmt.Fprint(c.out, "Abode username: ")
	username, err := reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to read username: %w", err)
	}
	username = strings.TrimSpace(username)
	if username == "" {
		return fmt.Errorf("username is required")
	}

	password, err := c.readPassword(reader)
	if err != nil {
		return err
	}
	if password == "" {
		return fmt.Errorf("password is required")
	}

	if err := config.WriteCredentials(envFile, username, password); err != nil {
		return err
	}

	fmt.Fprintf(c.out, "Credentials written to %s\n", envFile)
	return nil
}

// readPassword reads without echo when stdin is a terminal.
func (c *CLI) readPassword(reader *bufio.Reader) (string, error) {
	fmt.Fprint(c.out, "Abode password: ")

	if file, ok := c.in.(*os.File); ok && term.IsTerminal(int(file.Fd())) {
		password, err := term.ReadPassword(int(file.Fd()))
		fmt.Fprintln(c.out)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(password), nil
	}

	password, err := reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(password, "\r\n"), nil
}
