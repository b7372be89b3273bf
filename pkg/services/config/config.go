package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const envPrefix = "SECBOARD"

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"omitempty,oneof=trace debug info warn error"`
	Format string `mapstructure:"format" validate:"omitempty,oneof=console json"`
	File   string `mapstructure:"file"`
}

type CacheConfig struct {
	FetchTimeout time.Duration `mapstructure:"fetch_timeout" validate:"gte=0"`
}

type MutationConfig struct {
	Timeout     time.Duration `mapstructure:"timeout" validate:"gte=0"`
	LongTimeout time.Duration `mapstructure:"long_timeout" validate:"gte=0"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port" validate:"min=1,max=65535"`
}

// Config is the application configuration. Zero timeouts fall back to the
// selected profile, then to the built-in defaults.
type Config struct {
	Host     string         `mapstructure:"host" validate:"omitempty,url"`
	Log      LogConfig      `mapstructure:"log"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Mutation MutationConfig `mapstructure:"mutation"`
	Server   ServerConfig   `mapstructure:"server"`
}

// LoadConfig reads path, if given, and SECBOARD_* environment variables on
// top of it, e.g. SECBOARD_LOG_LEVEL for log.level.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetDefault("host", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.file", "")
	v.SetDefault("cache.fetch_timeout", 0)
	v.SetDefault("mutation.timeout", 0)
	v.SetDefault("mutation.long_timeout", 0)
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// ApplyProfile fills what the config leaves unset from profile.
func (c *Config) ApplyProfile(profile *Profile) {
	if profile == nil {
		return
	}
	if c.Host == "" {
		c.Host = profile.Host
	}
	if c.Mutation.Timeout == 0 {
		c.Mutation.Timeout = profile.Timeout
	}
	if c.Mutation.LongTimeout == 0 {
		c.Mutation.LongTimeout = profile.LongTimeout
	}
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
