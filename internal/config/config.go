package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"tablebook/internal/database"
	"tablebook/internal/lock"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPath names the variable that overrides the config file location.
const EnvPath = "TABLEBOOK_CONFIG"

const DefaultPath = "configs/config.yaml"

type Config struct {
	Database database.Config       `yaml:"database"`
	Backup   database.BackupConfig `yaml:"backup"`

	Booking BookingConfig `yaml:"booking"`

	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		PoolSize int    `yaml:"pool_size"`
	} `yaml:"redis"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Logging LoggingConfig `yaml:"logging"`
}

type BookingConfig struct {
	DefaultDurationMinutes int  `yaml:"default_duration_minutes"`
	MaxDurationMinutes     int  `yaml:"max_duration_minutes"`
	EnforceCapacity        bool `yaml:"enforce_capacity"`
	// Lock is one of none, local or redis.
	Lock           string `yaml:"lock"`
	LockTTLSeconds int    `yaml:"lock_ttl_seconds"`
	LockWaitMillis int    `yaml:"lock_wait_millis"`
	// ReloadSeconds is how often the file is polled for booking rule changes; zero disables.
	ReloadSeconds int `yaml:"reload_seconds"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console or json
}

// Path resolves the config file location from the flag value, the
// environment and finally the default.
func Path(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if p := os.Getenv(EnvPath); p != "" {
		return p
	}
	return DefaultPath
}

// Load reads .env when present, expands ${VAR} placeholders in the YAML
// file and applies defaults.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if path == "" {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	c.Database = c.Database.WithDefaults()

	if c.Booking.DefaultDurationMinutes <= 0 {
		c.Booking.DefaultDurationMinutes = 120
	}
	if c.Booking.Lock == "" {
		c.Booking.Lock = lock.ModeLocal
	}
	c.Booking.Lock = strings.ToLower(c.Booking.Lock)
	if c.Booking.LockTTLSeconds <= 0 {
		c.Booking.LockTTLSeconds = 10
	}
	if c.Booking.LockWaitMillis <= 0 {
		c.Booking.LockWaitMillis = 5000
	}

	if c.Backup.Path == "" {
		c.Backup.Path = "data/backups"
	}
	if c.Monitoring.HealthCheckPort == 0 {
		c.Monitoring.HealthCheckPort = 8090
	}
	if c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
}

// Validate rejects combinations the process cannot start with.
func (c *Config) Validate() error {
	if _, err := database.DialectFor(c.Database.Driver); err != nil {
		return err
	}
	switch c.Booking.Lock {
	case lock.ModeNone, lock.ModeLocal:
	case lock.ModeRedis:
		if c.Redis.Address == "" {
			return fmt.Errorf("booking.lock is redis but redis.address is empty")
		}
	default:
		return fmt.Errorf("unknown booking.lock %q", c.Booking.Lock)
	}
	if c.Booking.MaxDurationMinutes > 0 && c.Booking.MaxDurationMinutes < c.Booking.DefaultDurationMinutes {
		return fmt.Errorf("booking.max_duration_minutes (%d) is below the default duration (%d)",
			c.Booking.MaxDurationMinutes, c.Booking.DefaultDurationMinutes)
	}
	return nil
}

func (b BookingConfig) LockTTL() time.Duration {
	return time.Duration(b.LockTTLSeconds) * time.Second
}

func (b BookingConfig) LockWait() time.Duration {
	return time.Duration(b.LockWaitMillis) * time.Millisecond
}
