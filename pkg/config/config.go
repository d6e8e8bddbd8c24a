package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultCacheFile    = "./abodepy_cache.pickle"
	DefaultDriver       = "abode"
	DefaultScanInterval = 30
	MinScanInterval     = 5
)

// Environment variables that override credentials from the config file.
const (
	EnvAbodeUsername = "ABODE_USERNAME"
	EnvAbodePassword = "ABODE_PASSWORD"
	EnvMQTTPassword  = "MQTT_PASSWORD"
)

type Config struct {
	MQTT          MQTTConfig          `yaml:"mqtt"`
	Abode         *AbodeConfig        `yaml:"abode"`
	HomeAssistant HomeAssistantConfig `yaml:"homeassistant"`
	API           APIConfig           `yaml:"api"`
	Journal       JournalConfig       `yaml:"journal"`
	Logging       LoggingConfig       `yaml:"logging"`

	path string
}

type MQTTConfig struct {
	BrokerURL          string `yaml:"broker_url"`
	Username           string `yaml:"username,omitempty"`
	Password           string `yaml:"password,omitempty"`
	ClientID           string `yaml:"client_id"`
	QoS                byte   `yaml:"qos"`
	KeepAlive          int    `yaml:"keep_alive"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
}

type AbodeConfig struct {
	Username     string `yaml:"username"`
	Password     string `yaml:"password,omitempty"`
	Polling      bool   `yaml:"polling"`
	CacheFile    string `yaml:"cache_file,omitempty"`
	Driver       string `yaml:"driver,omitempty"`
	ScanInterval int    `yaml:"scan_interval,omitempty"` // seconds
}

type HomeAssistantConfig struct {
	DiscoveryPrefix string `yaml:"discovery_prefix"`
	InstanceID      string `yaml:"instance_id,omitempty"` // Unique identifier for this instance
	BaseTopic       string `yaml:"base_topic"`
	StatusTopic     string `yaml:"status_topic"`
}

type APIConfig struct {
	Listen string `yaml:"listen,omitempty"`
}

type JournalConfig struct {
	Path      string `yaml:"path,omitempty"`
	Retention int    `yaml:"retention,omitempty"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func (m *MQTTConfig) IsSecure() bool {
	return strings.HasPrefix(m.BrokerURL, "mqtts://") || strings.HasPrefix(m.BrokerURL, "wss://")
}

// Path returns the file the configuration was loaded from.
func (c *Config) Path() string {
	return c.path
}

// Dir returns the directory relative paths in the configuration resolve against.
func (c *Config) Dir() string {
	if c.path == "" {
		return "."
	}
	return filepath.Dir(c.path)
}

// EnvFile returns the .env file that sits next to the configuration.
func (c *Config) EnvFile() string {
	return filepath.Join(c.Dir(), ".env")
}

func LoadConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := &Config{path: configPath}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.loadEnv(); err != nil {
		return nil, err
	}

	config.setDefaults()

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// loadEnv reads the optional .env next to the config file and lets the
// process environment override credentials.
func (c *Config) loadEnv() error {
	if err := godotenv.Load(c.EnvFile()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", c.EnvFile(), err)
	}

	if password := os.Getenv(EnvMQTTPassword); password != "" {
		c.MQTT.Password = password
	}

	username := os.Getenv(EnvAbodeUsername)
	password := os.Getenv(EnvAbodePassword)
	if username == "" && password == "" {
		return nil
	}

	if c.Abode == nil {
		c.Abode = &AbodeConfig{}
	}
	if username != "" {
		c.Abode.Username = username
	}
	if password != "" {
		c.Abode.Password = password
	}
	return nil
}

func (c *Config) setDefaults() {
	c.setMQTTDefaults()
	c.setAbodeDefaults()
	c.setHomeAssistantDefaults()
	c.setJournalDefaults()
	c.setLoggingDefaults()
}

func (c *Config) setMQTTDefaults() {
	defaults := map[string]any{
		"broker_url": "mqtt://localhost:1883",
		"client_id":  "ha-abode-bridge",
		"qos":        byte(1),
		"keep_alive": 60,
	}

	if c.MQTT.BrokerURL == "" {
		c.MQTT.BrokerURL = defaults["broker_url"].(string)
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = defaults["client_id"].(string)
	}
	if c.MQTT.QoS == 0 {
		c.MQTT.QoS = defaults["qos"].(byte)
	}
	if c.MQTT.KeepAlive == 0 {
		c.MQTT.KeepAlive = defaults["keep_alive"].(int)
	}
}

func (c *Config) setAbodeDefaults() {
	if c.Abode == nil {
		return
	}
	if c.Abode.CacheFile == "" {
		c.Abode.CacheFile = DefaultCacheFile
	}
	if !filepath.IsAbs(c.Abode.CacheFile) {
		c.Abode.CacheFile = filepath.Join(c.Dir(), c.Abode.CacheFile)
	}
	if c.Abode.Driver == "" {
		c.Abode.Driver = DefaultDriver
	}
	if c.Abode.ScanInterval == 0 {
		c.Abode.ScanInterval = DefaultScanInterval
	}
}

func (c *Config) setHomeAssistantDefaults() {
	if c.HomeAssistant.DiscoveryPrefix == "" {
		c.HomeAssistant.DiscoveryPrefix = "homeassistant"
	}
	if c.HomeAssistant.BaseTopic == "" {
		c.HomeAssistant.BaseTopic = "abode"
	}
	if c.HomeAssistant.StatusTopic == "" {
		c.HomeAssistant.StatusTopic = c.HomeAssistant.DiscoveryPrefix + "/status"
	}
}

func (c *Config) setJournalDefaults() {
	if c.Journal.Path != "" && !filepath.IsAbs(c.Journal.Path) {
		c.Journal.Path = filepath.Join(c.Dir(), c.Journal.Path)
	}
	if c.Journal.Retention == 0 {
		c.Journal.Retention = 1000
	}
}

func (c *Config) setLoggingDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	c.Logging.Level = strings.ToLower(c.Logging.Level)
	c.Logging.Format = strings.ToLower(c.Logging.Format)
}

func (c *Config) validate() error {
	if err := c.validateMQTT(); err != nil {
		return err
	}
	if err := c.validateAbode(); err != nil {
		return err
	}
	if err := c.validateHomeAssistant(); err != nil {
		return err
	}
	if err := c.validateJournal(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateMQTT() error {
	if c.MQTT.BrokerURL == "" {
		return fmt.Errorf("mqtt.broker_url is required")
	}

	if _, err := url.Parse(c.MQTT.BrokerURL); err != nil {
		return fmt.Errorf("invalid mqtt.broker_url '%s': %w", c.MQTT.BrokerURL, err)
	}

	validSchemes := []string{"mqtt://", "mqtts://", "ws://", "wss://"}
	for _, scheme := range validSchemes {
		if strings.HasPrefix(c.MQTT.BrokerURL, scheme) {
			return c.validateMQTTParams()
		}
	}

	return fmt.Errorf("mqtt.broker_url '%s' must use one of: %s", c.MQTT.BrokerURL, strings.Join(validSchemes, ", "))
}

func (c *Config) validateMQTTParams() error {
	if c.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1, or 2 (got %d)", c.MQTT.QoS)
	}
	if c.MQTT.KeepAlive < 10 {
		return fmt.Errorf("mqtt.keep_alive must be at least 10 seconds (got %d)", c.MQTT.KeepAlive)
	}
	return nil
}

func (c *Config) validateAbode() error {
	if c.Abode == nil {
		return nil
	}
	if c.Abode.Username == "" {
		return fmt.Errorf("abode.username is required (or set %s)", EnvAbodeUsername)
	}
	if c.Abode.Password == "" {
		return fmt.Errorf("abode.password is required (or set %s)", EnvAbodePassword)
	}
	if c.Abode.ScanInterval < MinScanInterval {
		return fmt.Errorf("abode.scan_interval must be at least %d seconds (got %d)", MinScanInterval, c.Abode.ScanInterval)
	}
	return nil
}

func (c *Config) validateHomeAssistant() error {
	if c.HomeAssistant.DiscoveryPrefix == "" {
		return fmt.Errorf("homeassistant.discovery_prefix is required")
	}

	for name, topic := range map[string]string{
		"homeassistant.discovery_prefix": c.HomeAssistant.DiscoveryPrefix,
		"homeassistant.base_topic":       c.HomeAssistant.BaseTopic,
	} {
		if strings.ContainsAny(topic, "+#") {
			return fmt.Errorf("%s '%s' must not contain MQTT wildcards", name, topic)
		}
	}

	if c.HomeAssistant.InstanceID == "" {
		hostname, err := os.Hostname()
		if err != nil {
			return fmt.Errorf("failed to get hostname for instance_id: %w", err)
		}
		c.HomeAssistant.InstanceID = hostname
	}

	return nil
}

func (c *Config) validateJournal() error {
	if c.Journal.Retention < 1 {
		return fmt.Errorf("journal.retention must be positive (got %d)", c.Journal.Retention)
	}
	return nil
}

func (c *Config) validateLogging() error {
	validLogLevels := []string{"debug", "info", "warn", "warning", "error", "fatal", "panic"}
	logLevel := strings.ToLower(c.Logging.Level)
	if !slices.Contains(validLogLevels, logLevel) {
		return fmt.Errorf("logging.level '%s' must be one of: %s",
			c.Logging.Level, strings.Join(validLogLevels, ", "))
	}

	validLogFormats := []string{"text", "json"}
	logFormat := strings.ToLower(c.Logging.Format)
	if !slices.Contains(validLogFormats, logFormat) {
		return fmt.Errorf("logging.format '%s' must be one of: %s",
			c.Logging.Format, strings.Join(validLogFormats, ", "))
	}

	return nil
}

// WriteCredentials stores Abode credentials in the .env file next to the
// configuration, keeping any other variables already present.
func (c *Config) WriteCredentials(username, password string) error {
	return WriteCredentials(c.EnvFile(), username, password)
}

func WriteCredentials(envFile, username, password string) error {
	env, err := godotenv.Read(envFile)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to read %s: %w", envFile, err)
		}
		env = make(map[string]string)
	}

	env[EnvAbodeUsername] = username
	env[EnvAbodePassword] = password

	if err := godotenv.Write(env, envFile); err != nil {
		return fmt.Errorf("failed to write %s: %w", envFile, err)
	}
	return os.Chmod(envFile, 0o600)
}
