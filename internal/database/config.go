package database

import (
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// Config is the explicit engine configuration. Nothing is read from the
// process environment here; callers resolve values before constructing it.
type Config struct {
	Driver   string `yaml:"driver"`
	Path     string `yaml:"path"` // sqlite file
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`

	MaxOpenConns           int `yaml:"max_open_conns"`
	MinIdleConns           int `yaml:"min_idle_conns"`
	ConnMaxLifetimeMinutes int `yaml:"conn_max_lifetime_minutes"`
	// OpTimeoutSeconds bounds each operation, including the wait for a pooled connection.
	OpTimeoutSeconds int `yaml:"op_timeout_seconds"`
}

// WithDefaults fills unset pool bounds and connection settings.
func (c Config) WithDefaults() Config {
	if c.Driver == "" {
		c.Driver = DriverSQLite
	}
	if c.Path == "" {
		c.Path = "data/tablebook.db"
	}
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 5432
	}
	if c.Name == "" {
		c.Name = "postgres"
	}
	if c.User == "" {
		c.User = "postgres"
	}
	if c.SSLMode == "" {
		c.SSLMode = "disable"
	}
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = 10
	}
	if c.MinIdleConns <= 0 {
		c.MinIdleConns = 1
	}
	if c.MinIdleConns > c.MaxOpenConns {
		c.MinIdleConns = c.MaxOpenConns
	}
	if c.ConnMaxLifetimeMinutes <= 0 {
		c.ConnMaxLifetimeMinutes = 60
	}
	return c
}

func (c Config) ConnMaxLifetime() time.Duration {
	return time.Duration(c.ConnMaxLifetimeMinutes) * time.Minute
}

func (c Config) OpTimeout() time.Duration {
	if c.OpTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.OpTimeoutSeconds) * time.Second
}

// DSN renders the driver-specific connection string.
func (c Config) DSN() (string, error) {
	d, err := DialectFor(c.Driver)
	if err != nil {
		return "", err
	}
	switch d.(type) {
	case sqliteDialect:
		return c.Path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on", nil
	case postgresDialect:
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(c.User, c.Password),
			Host:     c.Host + ":" + strconv.Itoa(c.Port),
			Path:     "/" + c.Name,
			RawQuery: "sslmode=" + url.QueryEscape(c.SSLMode),
		}
		return u.String(), nil
	default:
		return "", fmt.Errorf("no dsn for dialect %s", d.Name())
	}
}
