// Package config loads service settings from an optional uastudio.yaml and
// the environment. Keys are dotted; the environment variable for a key is
// its upper-case form with dots replaced by underscores (database.path is
// DATABASE_PATH).
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/neomorfeo/uastudio/internal/adapter/otel"
	"github.com/neomorfeo/uastudio/internal/idgen"
	"github.com/neomorfeo/uastudio/internal/logging"
)

// Config is the full service configuration.
type Config struct {
	Port     string         `mapstructure:"port"`
	Persist  bool           `mapstructure:"persist"`
	Seed     uint64         `mapstructure:"seed"`
	Database DatabaseConfig `mapstructure:"database"`
	Session  SessionConfig  `mapstructure:"session"`
	River    RiverConfig    `mapstructure:"river"`
	Log      logging.Config `mapstructure:"log"`
	OTel     otel.Config    `mapstructure:"otel"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type SessionConfig struct {
	IDStrategy idgen.Strategy `mapstructure:"id_strategy"`
}

type RiverConfig struct {
	Workers int `mapstructure:"workers"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("persist", true)
	v.SetDefault("seed", 0)
	v.SetDefault("database.path", "uastudio.db")
	v.SetDefault("session.id_strategy", string(idgen.ULID))
	v.SetDefault("river.workers", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("log.service_name", "uastudio")
	v.SetDefault("otel.service_name", "uastudio")
	v.SetDefault("otel.service_version", "0.1.0")
	v.SetDefault("otel.environment", "development")
	v.SetDefault("otel.exporter", "stdout")
	v.SetDefault("otel.metric_interval", "30s")
}

// Load reads uastudio.yaml from "." or "./config" when present, then applies
// environment overrides. A missing file is not an error.
func Load() (Config, error) {
	return load(".", "./config")
}

func load(paths ...string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("uastudio")
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if !v.IsSet("otel.insecure") {
		cfg.OTel.Insecure = cfg.OTel.Environment == "development"
	}

	if _, err := idgen.New(cfg.Session.IDStrategy); err != nil {
		return Config{}, fmt.Errorf("session.id_strategy: %w", err)
	}
	return cfg, nil
}
