package server

import "strings"

// Config holds configuration for the HTTP server.
type Config struct {
	// Port is the port where the server will listen.
	Port string `mapstructure:"port" default:"8080"`
	// ApiKey is the secret key required to access the API.
	ApiKey string `mapstructure:"api_key" default:""`
	// PublicPaths are served without the API key, matched by prefix.
	PublicPaths []string `mapstructure:"public_paths" default:"/swagger,/metrics"`
}

// IsPublic reports whether a request path skips authentication.
func (c Config) IsPublic(path string) bool {
	for _, p := range c.PublicPaths {
		p = strings.TrimSpace(p)
		if p != "" && strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// Address returns the listen address.
func (c Config) Address() string {
	if c.Port == "" {
		return ":8080"
	}
	return ":" + c.Port
}
