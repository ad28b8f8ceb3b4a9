package lock

import "time"

// Config configures the redis connection used for the cycle lock.
// An empty Addr disables the distributed lock.
type Config struct {
	Addr     string `mapstructure:"addr" default:""`
	Password string `mapstructure:"password" default:""`
	DB       int    `mapstructure:"db" default:"0"`
	// Key is the redis key of the cycle lock.
	Key string `mapstructure:"key" default:"crm-bridge:cycle"`
	// TTL bounds how long a crashed holder keeps the lock. It should exceed
	// the cycle timeout.
	TTL time.Duration `mapstructure:"ttl" default:"1h"`
}

// Enabled reports whether a redis address is configured.
func (c Config) Enabled() bool {
	return c.Addr != ""
}
