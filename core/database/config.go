package database

import (
	"fmt"
	"net/url"
	"time"
)

// Config holds the state store connection settings.
type Config struct {
	// Driver is mysql or sqlite.
	Driver   string `mapstructure:"driver" default:"sqlite"`
	Host     string `mapstructure:"host" default:"localhost"`
	Port     int    `mapstructure:"port" default:"3306"`
	User     string `mapstructure:"user" default:"root"`
	Password string `mapstructure:"password" default:""`
	// Name is the database name, or the file path for sqlite.
	Name string `mapstructure:"name" default:"crm_bridge.db"`
	// TimeoutSeconds bounds connection setup and I/O.
	TimeoutSeconds int `mapstructure:"timeout_seconds" default:"30"`
	// MaxOpenConns caps the MySQL pool. sqlite always uses one connection.
	MaxOpenConns int `mapstructure:"max_open_conns" default:"25"`
	// Tracing installs the OpenTelemetry gorm plugin.
	Tracing bool `mapstructure:"tracing" default:"false"`
}

// Timeout returns TimeoutSeconds, defaulting to 30s.
func (c Config) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// DSN returns the driver connection string.
func (c Config) DSN() string {
	if c.Driver == "sqlite" {
		if c.Name == "" || c.Name == ":memory:" {
			return "file::memory:?cache=shared"
		}
		return c.Name
	}
	secs := int(c.Timeout() / time.Second)
	// url.UserPassword escapes special characters in the password.
	return fmt.Sprintf("%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC&timeout=%ds&readTimeout=%ds&writeTimeout=%ds",
		url.UserPassword(c.User, c.Password).String(), c.Host, c.Port, c.Name, secs, secs, secs)
}
