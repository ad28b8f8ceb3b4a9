package crm

import (
	"time"

	"crm-bridge/core/remote"
)

// Config holds the CRM connection settings.
type Config struct {
	// BaseURL is the API root.
	BaseURL string `mapstructure:"base_url" default:"https://api.hubapi.com"`
	// Token is the private app access token.
	Token string `mapstructure:"token" default:""`
	// TimeoutSeconds bounds connection setup and response headers.
	TimeoutSeconds int `mapstructure:"timeout_seconds" default:"30"`
	// Limits configures rate limiting and retries.
	Limits remote.Config `mapstructure:"limits"`
}

func (c Config) timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}
