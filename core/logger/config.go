package logger

// Config holds logger settings.
type Config struct {
	// Level is one of debug, info, warn, error.
	Level string `mapstructure:"level" default:"info"`
	// Format is json or console.
	Format string `mapstructure:"format" default:"json"`
	// Service is attached to every entry as the service field. Empty omits it.
	Service string `mapstructure:"service" default:"crm-bridge"`
	// Sampling drops repeated entries in production mode when true.
	Sampling bool `mapstructure:"sampling" default:"false"`
}
