package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/noahxzhu/medtracker/internal/storage"
	"github.com/noahxzhu/medtracker/internal/timing"
)

type Config struct {
	Storage   storage.Config   `mapstructure:"storage"`
	Pushover  PushoverConfig   `mapstructure:"pushover"`
	Reminders RemindersConfig  `mapstructure:"reminders"`
	Metrics   MetricsConfig    `mapstructure:"metrics"`
	Log       LogConfig        `mapstructure:"log"`
	Timing    timing.Overrides `mapstructure:"timing"`
}

type PushoverConfig struct {
	Token    string `mapstructure:"token"`
	User     string `mapstructure:"user"`
	Endpoint string `mapstructure:"endpoint"`
}

type RemindersConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"` // empty disables the endpoint
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or text
}

// LoadConfig reads path, applying defaults and MEDTRACKER_* environment
// overrides (MEDTRACKER_STORAGE_DRIVER, MEDTRACKER_PUSHOVER_TOKEN, ...).
// A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("medtracker")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("storage.driver", string(storage.DriverJSON))
	v.SetDefault("storage.file_path", "data/medtracker.json")
	v.SetDefault("storage.sqlite_path", "data/medtracker.db")
	v.SetDefault("storage.postgres_dsn", "")
	v.SetDefault("storage.s3.region", "us-east-1")
	v.SetDefault("storage.s3.bucket", "")
	v.SetDefault("storage.s3.prefix", "medtracker/")
	v.SetDefault("storage.s3.endpoint", "")
	v.SetDefault("storage.s3.access_key_id", "")
	v.SetDefault("storage.s3.secret_access_key", "")
	v.SetDefault("storage.s3.path_style", false)

	v.SetDefault("pushover.token", "")
	v.SetDefault("pushover.user", "")
	v.SetDefault("pushover.endpoint", "https://api.pushover.net/1/messages.json")
	v.SetDefault("reminders.enabled", false)
	v.SetDefault("reminders.poll_interval", time.Minute)

	v.SetDefault("metrics.addr", ":9464")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}
