// Package config loads the widget-sync daemon configuration.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata" // device images often ship without zoneinfo

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
// Values come from defaults, then the YAML file, then environment variables.
type Config struct {
	Device     DeviceConfig     `yaml:"device"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	Storage    StorageConfig    `yaml:"storage"`
	Automation AutomationConfig `yaml:"automation"`
	GPIO       GPIOConfig       `yaml:"gpio"`
	HTTP       HTTPConfig       `yaml:"http"`
	Logging    LoggingConfig    `yaml:"logging"`
	Widgets    WidgetsConfig    `yaml:"widgets"`
}

// DeviceConfig identifies the device and sets the run loop.
type DeviceConfig struct {
	ID             string `yaml:"id"`
	Timezone       string `yaml:"timezone"`
	PollIntervalMs int    `yaml:"poll_interval_ms"`
	// Capacity is the number of widgets allowed per kind.
	Capacity int `yaml:"capacity"`
}

// MQTTConfig contains broker connection and topic settings.
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	// Prefix is the topic root for this device's rx/tx/status topics.
	Prefix string `yaml:"prefix"`
	// LinkPrefix is the topic root linked-action requests are published under.
	LinkPrefix    string `yaml:"link_prefix"`
	InboundQueue  int    `yaml:"inbound_queue"`
	OfflineBuffer int    `yaml:"offline_buffer"`
}

// StorageConfig locates the persistent image holding the automation rule.
type StorageConfig struct {
	// Path of the SQLite file. Empty keeps the image in memory.
	Path     string `yaml:"path"`
	Size     int    `yaml:"size"`
	RuleBase int    `yaml:"rule_base"`
}

// AutomationConfig enables the local automation rule.
type AutomationConfig struct {
	Enabled     bool   `yaml:"enabled"`
	WatchToggle string `yaml:"watch_toggle"`
	WatchSlider string `yaml:"watch_slider"`
}

// GPIOConfig lists output lines linked actions may drive.
type GPIOConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Chip      string `yaml:"chip"`
	Lines     []int  `yaml:"lines"`
	ActiveLow bool   `yaml:"active_low"`
}

// HTTPConfig contains the status server address. Empty disables it.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// WidgetsConfig lists widgets registered at startup, in order.
type WidgetsConfig struct {
	Buttons []string `yaml:"buttons"`
	Sliders []string `yaml:"sliders"`
	Toggles []string `yaml:"toggles"`
	RGB     []string `yaml:"rgb"`
}

// Load reads configuration from a YAML file and applies environment variable
// overrides. An empty path skips the file.
//
// Environment variables follow the pattern WIDGETSYNC_SECTION_KEY, for
// example WIDGETSYNC_MQTT_BROKER.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Default returns a Config with defaults filled in.
func Default() *Config {
	return &Config{
		Device: DeviceConfig{
			ID:             "widget-sync",
			Timezone:       "UTC",
			PollIntervalMs: 100,
			Capacity:       16,
		},
		MQTT: MQTTConfig{
			Broker:        "tcp://localhost:1883",
			ClientID:      "widget-sync",
			Prefix:        "widget-sync",
			LinkPrefix:    "widget-sync/link",
			InboundQueue:  32,
			OfflineBuffer: 64,
		},
		Storage: StorageConfig{
			Size: 256,
		},
		GPIO: GPIOConfig{
			Chip: "gpiochip0",
		},
		HTTP: HTTPConfig{
			Addr: ":8080",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("WIDGETSYNC_DEVICE_ID"); v != "" {
		cfg.Device.ID = v
	}
	if v := os.Getenv("WIDGETSYNC_DEVICE_TIMEZONE"); v != "" {
		cfg.Device.Timezone = v
	}
	if v := os.Getenv("WIDGETSYNC_MQTT_BROKER"); v != "" {
		cfg.MQTT.Broker = v
	}
	if v := os.Getenv("WIDGETSYNC_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Username = v
	}
	if v := os.Getenv("WIDGETSYNC_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Password = v
	}
	if v := os.Getenv("WIDGETSYNC_STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("WIDGETSYNC_HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}
	if v := os.Getenv("WIDGETSYNC_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// recordMin is the smallest region that holds a rule record with no link.
const recordMin = 15

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Device.ID == "" {
		errs = append(errs, "device.id is required")
	}
	if _, err := time.LoadLocation(c.Device.Timezone); err != nil {
		errs = append(errs, fmt.Sprintf("device.timezone %q is not a known location", c.Device.Timezone))
	}
	if c.Device.PollIntervalMs <= 0 {
		errs = append(errs, "device.poll_interval_ms must be positive")
	}
	if c.Device.Capacity < 1 || c.Device.Capacity > 255 {
		errs = append(errs, "device.capacity must be between 1 and 255")
	}

	if c.MQTT.Broker == "" {
		errs = append(errs, "mqtt.broker is required")
	}
	if c.MQTT.Prefix == "" {
		errs = append(errs, "mqtt.prefix is required")
	}

	if c.Storage.Size <= 0 {
		errs = append(errs, "storage.size must be positive")
	}
	if c.Storage.RuleBase < 0 || c.Storage.RuleBase+recordMin > c.Storage.Size {
		errs = append(errs, "storage.rule_base leaves no room for the rule record")
	}

	if c.GPIO.Enabled && len(c.GPIO.Lines) == 0 {
		errs = append(errs, "gpio.lines is required when gpio is enabled")
	}

	for _, w := range [][]string{c.Widgets.Buttons, c.Widgets.Sliders, c.Widgets.Toggles, c.Widgets.RGB} {
		if len(w) > c.Device.Capacity {
			errs = append(errs, "widgets: more names than device.capacity allows")
			break
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// PollInterval returns the run loop period.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Device.PollIntervalMs) * time.Millisecond
}

// Location returns the device time zone. Validate guarantees it loads.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Device.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
