// Package config loads the daemon's YAML configuration.
package config

import (
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Strip           StripConfig    `yaml:"strip"`
	Driver          DriverConfig   `yaml:"driver"`
	API             APIConfig      `yaml:"api"`
	MQTT            MQTTConfig     `yaml:"mqtt"`
	Storage         StorageConfig  `yaml:"storage"`
	Ledger          LedgerConfig   `yaml:"ledger"`
	Log             LogConfig      `yaml:"log"`
	EventBus        EventBusConfig `yaml:"eventbus"`
	Script          string         `yaml:"script"`           // Optional Lua startup script
	ShutdownTimeout Duration       `yaml:"shutdown_timeout"` // General shutdown timeout for graceful stops

	// ConfigPath is the file the configuration was loaded from.
	ConfigPath string `yaml:"-"`
}

// StripConfig describes the physical strip and how lights are laid out on it.
type StripConfig struct {
	Name              string      `yaml:"name"`
	Type              string      `yaml:"type"` // reported by /detect
	Lights            int         `yaml:"lights"`
	PixelsPerLight    int         `yaml:"pixels_per_light"`
	GapPixels         int         `yaml:"gap_pixels"`
	Pixels            int         `yaml:"pixels"` // total strip length, 0 = derived from layout
	FirstLightNumber  int         `yaml:"first_light_number"`
	FPS               float64     `yaml:"fps"`
	Refresh           *Duration   `yaml:"refresh"`            // resend idle frames, 0 = never
	DefaultTransition *int        `yaml:"default_transition"` // deciseconds
	Calibration       Calibration `yaml:"calibration"`
}

// GetDefaultTransition returns the default transition time in deciseconds.
func (c *StripConfig) GetDefaultTransition() int {
	if c.DefaultTransition == nil || *c.DefaultTransition < 0 {
		return 4
	}
	return *c.DefaultTransition
}

// GetRefresh returns the idle resend interval. Unset means one second, an
// explicit zero disables resending.
func (c *StripConfig) GetRefresh() time.Duration {
	if c.Refresh == nil || *c.Refresh < 0 {
		return time.Second
	}
	return c.Refresh.Duration()
}

// Calibration holds white balance corrections in percent.
type Calibration struct {
	R *int `yaml:"r"`
	G *int `yaml:"g"`
	B *int `yaml:"b"`
}

// Percent returns the correction for one channel, 100 when unset.
func (c Calibration) Percent(v *int) int {
	if v == nil {
		return 100
	}
	return *v
}

// DriverConfig selects the strip driver.
type DriverConfig struct {
	Type       string `yaml:"type"` // opc, adalight, null
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	Channel    uint8  `yaml:"channel"`
	SerialPort string `yaml:"serial_port"`
	BaudRate   int    `yaml:"baud_rate"`
}

// APIConfig contains HTTP server settings
type APIConfig struct {
	Enabled *bool  `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	// AllowedOrigins for websocket clients; empty means same origin only.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// IsEnabled returns whether the HTTP API is enabled (default: true)
func (c *APIConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// MQTTConfig contains MQTT bridge settings
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
}

// StorageConfig contains persistence settings
type StorageConfig struct {
	Backend      string   `yaml:"backend"` // sqlite or bolt
	Path         string   `yaml:"path"`
	SaveInterval Duration `yaml:"save_interval"`
}

// LedgerConfig contains command ledger settings
type LedgerConfig struct {
	Enabled         *bool    `yaml:"enabled"`
	Path            string   `yaml:"path"` // SQLite file, shared with storage when equal
	CleanupInterval Duration `yaml:"cleanup_interval"`
	RetentionDays   int      `yaml:"retention_days"`
}

// IsEnabled returns whether the ledger is enabled (default: true)
func (c *LedgerConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// Retention returns the retention window.
func (c *LedgerConfig) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

// LogConfig contains logging settings
type LogConfig struct {
	Level   string `yaml:"level"`
	Colors  bool   `yaml:"colors"`
	UseJSON bool   `yaml:"json"`
}

// GetLevel returns the log level, "info" when unset.
func (c *LogConfig) GetLevel() string {
	if c.Level == "" {
		return "info"
	}
	return strings.ToLower(c.Level)
}

// EventBusConfig contains event bus settings
type EventBusConfig struct {
	Workers   int `yaml:"workers"`
	QueueSize int `yaml:"queue_size"`
}

// Duration is a wrapper around time.Duration for YAML unmarshalling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	cfg.ConfigPath = path
	return cfg, nil
}

// Parse parses configuration data and applies defaults.
func Parse(data []byte) (*Config, error) {
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}
	cfg.setDefaults()
	return &cfg, nil
}

func (cfg *Config) setDefaults() {
	// Strip defaults
	if cfg.Strip.Name == "" {
		cfg.Strip.Name = "Hue strip"
	}
	if cfg.Strip.Lights == 0 {
		cfg.Strip.Lights = 3
	}
	if cfg.Strip.PixelsPerLight == 0 {
		cfg.Strip.PixelsPerLight = 10
	}
	if cfg.Strip.FirstLightNumber == 0 {
		cfg.Strip.FirstLightNumber = 1
	}
	if cfg.Strip.FPS == 0 {
		cfg.Strip.FPS = 60
	}

	// Driver defaults
	if cfg.Driver.Type == "" {
		cfg.Driver.Type = "null"
	}
	if cfg.Driver.Host == "" {
		cfg.Driver.Host = "127.0.0.1"
	}
	if cfg.Driver.Port == 0 {
		cfg.Driver.Port = 7890
	}
	if cfg.Driver.BaudRate == 0 {
		cfg.Driver.BaudRate = 115200
	}

	// API defaults
	if cfg.API.Host == "" {
		cfg.API.Host = "0.0.0.0"
	}
	if cfg.API.Port == 0 {
		cfg.API.Port = 8080
	}

	// MQTT defaults
	if cfg.MQTT.Broker == "" {
		cfg.MQTT.Broker = "tcp://localhost:1883"
	}
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = "huestrip"
	}
	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = "huestrip"
	}

	// Storage defaults
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "sqlite"
	}
	if cfg.Storage.Path == "" {
		if cfg.Storage.Backend == "bolt" {
			cfg.Storage.Path = "./huestrip.db"
		} else {
			cfg.Storage.Path = "./huestrip.sqlite"
		}
	}
	if cfg.Storage.SaveInterval <= 0 {
		cfg.Storage.SaveInterval = Duration(5 * time.Second)
	}

	// Ledger defaults
	if cfg.Ledger.Path == "" {
		cfg.Ledger.Path = "./huestrip.sqlite"
	}
	if cfg.Ledger.CleanupInterval <= 0 {
		cfg.Ledger.CleanupInterval = Duration(24 * time.Hour)
	}
	if cfg.Ledger.RetentionDays == 0 {
		cfg.Ledger.RetentionDays = 30
	}

	// General shutdown timeout
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = Duration(5 * time.Second)
	}
}

// expandEnvVars expands environment variables in the format ${VAR} or ${VAR:default}
func expandEnvVars(input string) string {
	re := regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

	return re.ReplaceAllStringFunc(input, func(match string) string {
		parts := re.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultVal := ""
		if len(parts) >= 3 {
			defaultVal = parts[2]
		}

		if val := os.Getenv(varName); val != "" {
			return val
		}
		return defaultVal
	})
}
