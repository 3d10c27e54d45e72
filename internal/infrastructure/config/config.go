package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Router defaults.
const (
	DefaultRouterHost    = "192.168.178.1"
	DefaultRouterPort    = 49000
	DefaultConsiderHome  = 180.0
	DefaultPollInterval  = 30
	DefaultRouterTimeout = 60
)

// maxDurationSeconds is the largest second count a time.Duration can hold.
const maxDurationSeconds = math.MaxInt64 / int64(time.Second)

// Config is the root configuration structure for Gray Logic Tracker.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
	Tracker   TrackerConfig   `yaml:"tracker"`
	Routers   []RouterConfig  `yaml:"routers"`
}

// SiteConfig identifies this tracker instance.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`

	// DiscoveryPrefix is the Home Assistant discovery prefix.
	DiscoveryPrefix string `yaml:"discovery_prefix"`

	// TopicPrefix is the root for state and availability topics.
	TopicPrefix string `yaml:"topic_prefix"`
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

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains JWT token settings.
type JWTConfig struct {
	Secret string `yaml:"secret"`

	// AccessTokenTTL is the token lifetime in minutes.
	AccessTokenTTL int `yaml:"access_token_ttl"`
}

// TrackerConfig contains integration-wide settings.
type TrackerConfig struct {
	// SetupRetryDelay is how long to wait (seconds) before retrying setup
	// of a router that was not ready.
	SetupRetryDelay int `yaml:"setup_retry_delay"`
}

// RouterConfig describes one FRITZ!Box to track.
type RouterConfig struct {
	// ID is the config entry identifier. Must be unique.
	ID       string `yaml:"id"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// ConsiderHome is the presence grace window in seconds. Nil means default.
	ConsiderHome *float64 `yaml:"consider_home"`

	// PollInterval is the refresh cadence in seconds.
	PollInterval int `yaml:"poll_interval"`

	// Timeout bounds each request and each refresh cycle, in seconds.
	Timeout int `yaml:"timeout"`
}

// ConsiderHomeDuration returns the grace window as a Duration.
func (r RouterConfig) ConsiderHomeDuration() time.Duration {
	secs := DefaultConsiderHome
	if r.ConsiderHome != nil {
		secs = *r.ConsiderHome
	}
	return time.Duration(secs * float64(time.Second))
}

// PollIntervalDuration returns the refresh cadence as a Duration.
func (r RouterConfig) PollIntervalDuration() time.Duration {
	return time.Duration(r.PollInterval) * time.Second
}

// TimeoutDuration returns the request timeout as a Duration.
func (r RouterConfig) TimeoutDuration() time.Duration {
	return time.Duration(r.Timeout) * time.Second
}

// LoadDotEnv loads environment variables from a .env file if it exists.
// Variables already set in the environment are not overwritten.
//
// Parameters:
//   - path: Path to the .env file; empty means ".env"
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//  4. Per-router defaults for fields left unset
//
// Environment variables follow the pattern: GRAYTRACKER_SECTION_KEY
// For example: GRAYTRACKER_DATABASE_PATH, GRAYTRACKER_API_PORT.
// Router passwords can be supplied as GRAYTRACKER_ROUTER_<ID>_PASSWORD.
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

	applyEnvOverrides(cfg)
	applyRouterDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:   "tracker-001",
			Name: "Gray Logic Tracker",
		},
		Database: DatabaseConfig{
			Path:        "./data/graytracker.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Enabled: true,
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "graytracker",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
			DiscoveryPrefix: "homeassistant",
			TopicPrefix:     "graytracker",
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8090,
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
		InfluxDB: InfluxDBConfig{
			Bucket:        "presence",
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				AccessTokenTTL: 60,
			},
		},
		Tracker: TrackerConfig{
			SetupRetryDelay: 60,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GRAYTRACKER_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("GRAYTRACKER_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("GRAYTRACKER_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("GRAYTRACKER_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("GRAYTRACKER_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	if v := os.Getenv("GRAYTRACKER_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	if v := os.Getenv("GRAYTRACKER_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}

	for i := range cfg.Routers {
		if v := os.Getenv(RouterPasswordEnv(cfg.Routers[i].ID)); v != "" {
			cfg.Routers[i].Password = v
		}
	}
}

// RouterPasswordEnv returns the environment variable that overrides the
// password of router id.
//
// Example: "fritz-box" -> "GRAYTRACKER_ROUTER_FRITZ_BOX_PASSWORD"
func RouterPasswordEnv(id string) string {
	key := strings.ToUpper(id)
	key = strings.Map(func(r rune) rune {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return '_'
	}, key)
	return "GRAYTRACKER_ROUTER_" + key + "_PASSWORD"
}

func applyRouterDefaults(cfg *Config) {
	for i := range cfg.Routers {
		r := &cfg.Routers[i]
		if r.Host == "" {
			r.Host = DefaultRouterHost
		}
		if r.Port == 0 {
			r.Port = DefaultRouterPort
		}
		if r.PollInterval == 0 {
			r.PollInterval = DefaultPollInterval
		}
		if r.Timeout == 0 {
			r.Timeout = DefaultRouterTimeout
		}
	}
}

// Validate checks the configuration for errors and security issues.
//
// Returns:
//   - error: Description of every validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// Mutating API routes reboot routers and cut internet access, so the
	// token secret must be set and strong.
	const minJWTSecretLength = 32
	if c.Security.JWT.Secret == "" {
		errs = append(errs, "security.jwt.secret is required (set GRAYTRACKER_JWT_SECRET environment variable)")
	} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters for adequate security")
	}

	if len(c.Routers) == 0 {
		errs = append(errs, "at least one router is required")
	}
	seen := make(map[string]bool, len(c.Routers))
	for i, r := range c.Routers {
		prefix := fmt.Sprintf("routers[%d]", i)
		if r.ID == "" {
			errs = append(errs, prefix+".id is required")
		} else if seen[r.ID] {
			errs = append(errs, fmt.Sprintf("%s.id %q is duplicated", prefix, r.ID))
		}
		seen[r.ID] = true

		if r.Port < 1 || r.Port > 65535 {
			errs = append(errs, prefix+".port must be between 1 and 65535")
		}
		if r.ConsiderHome != nil {
			switch ch := *r.ConsiderHome; {
			case math.IsNaN(ch):
				errs = append(errs, prefix+".consider_home must be a number")
			case ch < 0:
				errs = append(errs, prefix+".consider_home must not be negative")
			case ch > float64(maxDurationSeconds):
				errs = append(errs, fmt.Sprintf("%s.consider_home must not exceed %d seconds", prefix, maxDurationSeconds))
			}
		}
		switch {
		case r.PollInterval < 1:
			errs = append(errs, prefix+".poll_interval must be at least 1 second")
		case int64(r.PollInterval) > maxDurationSeconds:
			errs = append(errs, fmt.Sprintf("%s.poll_interval must not exceed %d seconds", prefix, maxDurationSeconds))
		}
		switch {
		case r.Timeout < 1:
			errs = append(errs, prefix+".timeout must be at least 1 second")
		case int64(r.Timeout) > maxDurationSeconds:
			errs = append(errs, fmt.Sprintf("%s.timeout must not exceed %d seconds", prefix, maxDurationSeconds))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// GetSetupRetryDelay returns the router setup retry delay as a Duration.
func (c *Config) GetSetupRetryDelay() time.Duration {
	return time.Duration(c.Tracker.SetupRetryDelay) * time.Second
}

// GetAccessTokenTTL returns the API token lifetime as a Duration.
func (c *Config) GetAccessTokenTTL() time.Duration {
	return time.Duration(c.Security.JWT.AccessTokenTTL) * time.Minute
}
