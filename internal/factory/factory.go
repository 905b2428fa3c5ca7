package factory

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/mcoot/missioncommand/internal/config"
	"github.com/mcoot/missioncommand/internal/dependencies/clock"
	"github.com/mcoot/missioncommand/internal/dependencies/random"
	"github.com/mcoot/missioncommand/internal/services/auth"
	"github.com/mcoot/missioncommand/internal/services/game"
	"github.com/mcoot/missioncommand/internal/services/scenario"
	"github.com/mcoot/missioncommand/internal/storage"
	"github.com/mcoot/missioncommand/internal/storage/memory"
	redisstorage "github.com/mcoot/missioncommand/internal/storage/redis"
	sqlitestorage "github.com/mcoot/missioncommand/internal/storage/sqlite"
)

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.Storage

	// External dependencies
	Clock  clock.Clock
	Random random.Random

	// Services
	Scenarios      *scenario.Service
	AuthService    *auth.Service
	GameController *game.Controller
}

// Config holds configuration for the application factory
type Config struct {
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// AuthConfig holds configuration for the auth service (optional)
	// If zero value, defaults to auth.DefaultConfig()
	AuthConfig auth.Config
	// StorageType selects the storage backend ("memory", "redis" or "sqlite")
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
	// SQLiteConfig holds the database location (required if StorageType is "sqlite")
	SQLiteConfig *sqlitestorage.Config
	// ScenariosPath is a YAML scenario catalog replacing the built-in one (optional)
	ScenariosPath string
	// AdministratorPassword, when set, is applied to the Administrator
	AdministratorPassword string
	// RebuildCurrentGameIndex rebuilds the current-game index from the games
	RebuildCurrentGameIndex bool
}

// ConfigFromEnv converts the environment configuration
func ConfigFromEnv(c config.Config, logger *slog.Logger) Config {
	redisCfg := redisstorage.DefaultConfig()
	redisCfg.URL = c.RedisURL
	redisCfg.PoolSize = c.RedisPoolSize

	sqliteCfg := sqlitestorage.DefaultConfig()
	sqliteCfg.Path = c.SQLitePath

	authCfg := auth.DefaultConfig()
	authCfg.SessionDuration = c.SessionDuration

	return Config{
		Logger:                  logger,
		AuthConfig:              authCfg,
		StorageType:             c.StorageType,
		RedisConfig:             &redisCfg,
		SQLiteConfig:            &sqliteCfg,
		ScenariosPath:           c.ScenariosPath,
		AdministratorPassword:   c.AdministratorPassword,
		RebuildCurrentGameIndex: c.RebuildCurrentGameIndex,
	}
}

// New creates a new application with all dependencies wired
func New(ctx context.Context, cfg Config) (*App, error) {
	// Use no-op logger if not provided
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	store, err := newStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}

	scenarios, err := newScenarios(cfg.ScenariosPath, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	// Use default auth config if not provided
	authCfg := cfg.AuthConfig
	if authCfg.SessionDuration == 0 {
		authCfg = auth.DefaultConfig()
	}

	app := newWithDependencies(store, scenarios, clock.New(), random.New(), authCfg, logger)

	if err := app.start(ctx, cfg, logger); err != nil {
		_ = store.Close()
		return nil, err
	}
	return app, nil
}

// newStorage creates storage based on type
func newStorage(ctx context.Context, cfg Config) (storage.Storage, error) {
	switch cfg.StorageType {
	case "", config.StorageTypeMemory:
		return memory.New(), nil
	case config.StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, fmt.Errorf("RedisConfig required when StorageType is redis")
		}
		store, err := redisstorage.New(*cfg.RedisConfig)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.StorageTypeSQLite:
		if cfg.SQLiteConfig == nil {
			return nil, fmt.Errorf("SQLiteConfig required when StorageType is sqlite")
		}
		store, err := sqlitestorage.New(ctx, *cfg.SQLiteConfig)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("invalid StorageType %q: must be memory, redis or sqlite", cfg.StorageType)
	}
}

func newScenarios(path string, logger *slog.Logger) (*scenario.Service, error) {
	if path == "" {
		return scenario.New(logger)
	}
	return scenario.LoadFromFile(path, logger)
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(store storage.Storage, scenarios *scenario.Service, clk clock.Clock, rnd random.Random, authCfg auth.Config, logger *slog.Logger) *App {
	return &App{
		Storage:        store,
		Clock:          clk,
		Random:         rnd,
		Scenarios:      scenarios,
		AuthService:    auth.New(store, clk, rnd, authCfg, logger),
		GameController: game.NewController(store, scenarios, clk, rnd),
	}
}

// start runs the one-off start-up tasks
func (a *App) start(ctx context.Context, cfg Config, logger *slog.Logger) error {
	if cfg.AdministratorPassword != "" {
		if err := a.AuthService.EnsureAdministrator(ctx, cfg.AdministratorPassword); err != nil {
			return fmt.Errorf("ensure administrator: %w", err)
		}
	}

	if cfg.RebuildCurrentGameIndex {
		changed, err := a.GameController.RebuildCurrentGameIndex(ctx)
		if err != nil {
			return fmt.Errorf("rebuild current game index: %w", err)
		}
		logger.Info("current game index rebuilt", slog.Int("changed", changed))
	}

	return nil
}

// Close releases the storage backend
func (a *App) Close() error {
	return a.Storage.Close()
}
