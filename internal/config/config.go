package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Storage backends
const (
	StorageTypeMemory = "memory"
	StorageTypeRedis  = "redis"
	StorageTypeSQLite = "sqlite"
)

// Config is the server configuration, read from environment variables
type Config struct {
	Host     string `env:"HOST"`
	Port     int    `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	StorageType   string `env:"STORAGE_TYPE" envDefault:"memory"`
	RedisURL      string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	RedisPoolSize int    `env:"REDIS_POOL_SIZE" envDefault:"10"`
	SQLitePath    string `env:"SQLITE_PATH" envDefault:"data/missioncommand.db"`

	// AdministratorPassword is (re)applied to the Administrator at start-up
	AdministratorPassword string `env:"ADMINISTRATOR_PASSWORD,notEmpty"`

	// ScenariosPath replaces the built-in scenario catalog when set
	ScenariosPath string `env:"SCENARIOS_PATH"`

	SessionDuration         time.Duration `env:"SESSION_DURATION" envDefault:"24h"`
	CookieSecure            bool          `env:"COOKIE_SECURE" envDefault:"false"`
	RebuildCurrentGameIndex bool          `env:"REBUILD_CURRENT_GAME_INDEX" envDefault:"false"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load reads and validates the server configuration
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values the environment parser cannot
func (c Config) Validate() error {
	switch c.StorageType {
	case StorageTypeMemory, StorageTypeRedis, StorageTypeSQLite:
	default:
		return fmt.Errorf("invalid STORAGE_TYPE %q: must be memory, redis or sqlite", c.StorageType)
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT %d", c.Port)
	}
	if c.SessionDuration <= 0 {
		return fmt.Errorf("invalid SESSION_DURATION %s: must be positive", c.SessionDuration)
	}
	if c.StorageType == StorageTypeRedis && c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL required when STORAGE_TYPE=redis")
	}
	if c.StorageType == StorageTypeSQLite && c.SQLitePath == "" {
		return fmt.Errorf("SQLITE_PATH required when STORAGE_TYPE=sqlite")
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// SlogLevel returns the configured log level
func (c Config) SlogLevel() slog.Level {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, fmt.Errorf("invalid LOG_LEVEL %q", s)
	}
	return level, nil
}
