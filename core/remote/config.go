package remote

import "time"

// Config holds rate limit and retry settings for one remote system.
type Config struct {
	// RatePerSecond is the sustained request rate. Zero or less disables limiting.
	RatePerSecond float64 `mapstructure:"rate_per_second" default:"5"`
	// Burst is the token bucket capacity.
	Burst int `mapstructure:"burst" default:"5"`
	// MaxAttempts is the total number of attempts for a transient failure.
	MaxAttempts int `mapstructure:"max_attempts" default:"6"`
	// BaseBackoffMS is the first retry delay in milliseconds.
	BaseBackoffMS int `mapstructure:"base_backoff_ms" default:"500"`
	// MaxBackoffMS caps a single retry delay, server hints included.
	MaxBackoffMS int `mapstructure:"max_backoff_ms" default:"30000"`
	// CallTimeoutSeconds bounds a single attempt.
	CallTimeoutSeconds int `mapstructure:"call_timeout_seconds" default:"30"`
}

func (c Config) maxAttempts() int {
	if c.MaxAttempts <= 0 {
		return 1
	}
	return c.MaxAttempts
}

func (c Config) baseBackoff() time.Duration {
	if c.BaseBackoffMS <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(c.BaseBackoffMS) * time.Millisecond
}

func (c Config) maxBackoff() time.Duration {
	if c.MaxBackoffMS <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.MaxBackoffMS) * time.Millisecond
}

func (c Config) callTimeout() time.Duration {
	if c.CallTimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.CallTimeoutSeconds) * time.Second
}
