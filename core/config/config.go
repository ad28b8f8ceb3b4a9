package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"strings"

	"crm-bridge/core/database"
	"crm-bridge/core/lock"
	"crm-bridge/core/logger"
	"crm-bridge/core/server"
	"crm-bridge/core/storage"
	"crm-bridge/feature/crm"
	"crm-bridge/feature/projectsystem"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
)

// Config is the full service configuration. Each section maps to an env
// prefix: server.port is read from SERVER_PORT.
type Config struct {
	Server   server.Config        `mapstructure:"server"`
	Storage  storage.Config       `mapstructure:"storage"`
	Log      logger.Config        `mapstructure:"log"`
	Database database.Config      `mapstructure:"database"`
	// Redis backs the distributed cycle lock.
	Redis    lock.Config          `mapstructure:"redis"`
	Sync     Sync                 `mapstructure:"sync"`
	Project  projectsystem.Config `mapstructure:"project"`
	CRM      crm.Config           `mapstructure:"crm"`
}

// LoadConfig reads dir/.env when present, then the process environment, and
// validates the result. Values from .env override the environment.
func LoadConfig(dir string) (*Config, error) {
	_ = godotenv.Overload(filepath.Join(dir, ".env"))

	v := viper.New()
	registerDefaults(v, reflect.TypeOf(Config{}), "")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every setting that would make a cycle impossible to run.
func (c *Config) Validate() error {
	var err error
	if _, typeErr := c.Sync.Types(); typeErr != nil {
		err = multierr.Append(err, typeErr)
	}
	if c.Sync.Workers < 1 {
		err = multierr.Append(err, errors.New("sync.workers must be at least 1"))
	}
	if c.Sync.EntityConcurrency < 1 {
		err = multierr.Append(err, errors.New("sync.entity_concurrency must be at least 1"))
	}
	if c.Sync.Interval < 0 || c.Sync.CycleTimeout < 0 {
		err = multierr.Append(err, errors.New("sync durations must not be negative"))
	}
	if c.Storage.Enabled && c.Storage.Bucket == "" {
		err = multierr.Append(err, errors.New("storage.bucket is required when storage is enabled"))
	}
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// registerDefaults walks the struct tree and registers every leaf key with its
// default tag. AutomaticEnv only resolves keys viper already knows.
func registerDefaults(v *viper.Viper, t reflect.Type, prefix string) {
	for i := range t.NumField() {
		field := t.Field(i)
		name := field.Tag.Get("mapstructure")
		if name == "" {
			continue
		}
		key := name
		if prefix != "" {
			key = prefix + "." + name
		}
		if field.Type.Kind() == reflect.Struct && field.Type.PkgPath() != "time" {
			registerDefaults(v, field.Type, key)
			continue
		}
		v.SetDefault(key, field.Tag.Get("default"))
	}
}
