/*
config.go - Server configuration

SOURCES (later wins):
  1. Defaults below
  2. Optional config file (yaml, json or toml, by extension)
  3. Environment variables prefixed LEAVE_, with "." replaced by "_"
     e.g. LEAVE_DATABASE_DRIVER=postgres, LEAVE_REDIS_ENABLED=true
*/
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Lock      LockConfig      `mapstructure:"lock"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Log       LogConfig       `mapstructure:"log"`
	CORS      CORSConfig      `mapstructure:"cors"`
	// Timezone is the IANA zone clock times are evaluated in.
	Timezone string `mapstructure:"timezone"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver string `mapstructure:"driver"`
	// DSN is a file path for sqlite and a connection URL for postgres.
	DSN string `mapstructure:"dsn"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type LockConfig struct {
	Prefix  string        `mapstructure:"prefix"`
	TTL     time.Duration `mapstructure:"ttl"`
	Backoff time.Duration `mapstructure:"backoff"`
	Retries int           `mapstructure:"retries"`
}

type NotifyConfig struct {
	// Channel is the Redis pub/sub channel events are published on.
	Channel string `mapstructure:"channel"`
}

type SchedulerConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./leave.db")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("lock.prefix", "leave-engine:")
	v.SetDefault("lock.ttl", 10*time.Second)
	v.SetDefault("lock.backoff", 50*time.Millisecond)
	v.SetDefault("lock.retries", 40)

	v.SetDefault("notify.channel", "leave-engine.events")

	v.SetDefault("scheduler.enabled", false)
	v.SetDefault("scheduler.interval", 24*time.Hour)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("timezone", "UTC")
}

// Load reads configuration from defaults, path (if non-empty) and the
// environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("LEAVE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return errors.New("database.dsn is required")
	}
	if c.Scheduler.Enabled && c.Scheduler.Interval <= 0 {
		return errors.New("scheduler.interval must be positive")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}
