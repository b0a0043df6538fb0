package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for campusd.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Campus    CampusConfig    `yaml:"campus"`
	Affluence AffluenceConfig `yaml:"affluence"`
	Locator   LocatorConfig   `yaml:"locator"`
	Database  DatabaseConfig  `yaml:"database"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Refresh   RefreshConfig   `yaml:"refresh"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// CampusConfig identifies the campus this instance serves.
type CampusConfig struct {
	Name     string `yaml:"name"`
	Timezone string `yaml:"timezone"`
}

// AffluenceConfig contains settings for the upstream site catalog provider.
type AffluenceConfig struct {
	// BaseURL is the provider host, without a trailing slash.
	BaseURL string `yaml:"base_url"`

	// TimeoutSeconds bounds each upstream HTTP call.
	TimeoutSeconds int `yaml:"timeout_seconds"`

	// ResultLimit caps the number of sites kept from a catalog response.
	ResultLimit int `yaml:"result_limit"`
}

// LocatorConfig contains position resolution settings.
//
// The locator tries, in order: the static position (if set), the last
// position persisted in the snapshot store, an IP geolocation lookup,
// and finally the fallback campus coordinate.
type LocatorConfig struct {
	// Static pins the position, skipping all lookups. Zero value = unset.
	Static PositionConfig `yaml:"static"`

	// IPLookup configures the IP geolocation provider.
	IPLookup IPLookupConfig `yaml:"ip_lookup"`

	// Fallback is the campus reference point used when everything else fails.
	Fallback PositionConfig `yaml:"fallback"`
}

// PositionConfig is a lat/lng pair in YAML.
type PositionConfig struct {
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
}

// IsSet reports whether the position was provided (0,0 is treated as unset;
// it is in the Gulf of Guinea, not on any campus).
func (p PositionConfig) IsSet() bool {
	return p.Latitude != 0 || p.Longitude != 0
}

// IPLookupConfig contains IP geolocation provider settings.
type IPLookupConfig struct {
	Enabled        bool   `yaml:"enabled"`
	URL            string `yaml:"url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// DatabaseConfig contains SQLite database settings for the snapshot store.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// RefreshConfig contains background refresh scheduling settings.
type RefreshConfig struct {
	Enabled bool `yaml:"enabled"`

	// Schedule is a cron expression (robfig/cron standard 5-field syntax).
	Schedule string `yaml:"schedule"`
}

// InfluxDBConfig contains occupancy history recording settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// MQTTConfig contains live-status publishing settings.
type MQTTConfig struct {
	Enabled     bool             `yaml:"enabled"`
	Broker      MQTTBrokerConfig `yaml:"broker"`
	Auth        MQTTAuthConfig   `yaml:"auth"`
	QoS         int              `yaml:"qos"`
	TopicPrefix string           `yaml:"topic_prefix"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: CAMPUSD_SECTION_KEY
// For example: CAMPUSD_DATABASE_PATH, CAMPUSD_API_PORT
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// A .env file, when present, feeds the same overrides as real
	// environment variables. Missing files are fine.
	_ = godotenv.Load()

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
//
// The fallback coordinate is the Talence campus reference point; it is
// the position served when location resolution degrades entirely.
func defaultConfig() *Config {
	return &Config{
		Campus: CampusConfig{
			Name:     "Campus",
			Timezone: "Europe/Paris",
		},
		Affluence: AffluenceConfig{
			BaseURL:        "https://api.affluences.com",
			TimeoutSeconds: 10,
			ResultLimit:    15,
		},
		Locator: LocatorConfig{
			IPLookup: IPLookupConfig{
				Enabled:        true,
				URL:            "http://ip-api.com/json/",
				TimeoutSeconds: 5,
			},
			Fallback: PositionConfig{
				Latitude:  44.8048,
				Longitude: -0.5954,
			},
		},
		Database: DatabaseConfig{
			Path:        "./data/campusd.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Refresh: RefreshConfig{
			Enabled:  true,
			Schedule: "*/5 * * * *",
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "campusd",
			},
			QoS:         1,
			TopicPrefix: "campusd",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: CAMPUSD_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("CAMPUSD_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// Upstream provider
	if v := os.Getenv("CAMPUSD_AFFLUENCE_BASE_URL"); v != "" {
		cfg.Affluence.BaseURL = v
	}

	// API
	if v := os.Getenv("CAMPUSD_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("CAMPUSD_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// MQTT
	if v := os.Getenv("CAMPUSD_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("CAMPUSD_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("CAMPUSD_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("CAMPUSD_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Affluence.BaseURL == "" {
		errs = append(errs, "affluence.base_url is required")
	} else if _, err := url.Parse(c.Affluence.BaseURL); err != nil {
		errs = append(errs, fmt.Sprintf("affluence.base_url is invalid: %v", err))
	}
	if c.Affluence.ResultLimit <= 0 {
		errs = append(errs, "affluence.result_limit must be positive")
	}
	if c.Affluence.TimeoutSeconds <= 0 {
		errs = append(errs, "affluence.timeout_seconds must be positive")
	}

	if !validLatitude(c.Locator.Fallback.Latitude) || !validLongitude(c.Locator.Fallback.Longitude) {
		errs = append(errs, "locator.fallback must be a valid coordinate")
	}
	if c.Locator.Static.IsSet() &&
		(!validLatitude(c.Locator.Static.Latitude) || !validLongitude(c.Locator.Static.Longitude)) {
		errs = append(errs, "locator.static must be a valid coordinate")
	}
	if c.Locator.IPLookup.Enabled && c.Locator.IPLookup.URL == "" {
		errs = append(errs, "locator.ip_lookup.url is required when ip_lookup is enabled")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.Refresh.Enabled && c.Refresh.Schedule == "" {
		errs = append(errs, "refresh.schedule is required when refresh is enabled")
	}

	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.bucket is required when influxdb is enabled")
		}
	}

	if c.MQTT.Enabled {
		if c.MQTT.Broker.Host == "" {
			errs = append(errs, "mqtt.broker.host is required when mqtt is enabled")
		}
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			errs = append(errs, "mqtt.qos must be 0, 1 or 2")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validLatitude(lat float64) bool {
	return lat >= -90 && lat <= 90
}

func validLongitude(lng float64) bool {
	return lng >= -180 && lng <= 180
}
