package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/rs/zerolog"

	"github.com/pitlane/kart/internal/config"
	"github.com/pitlane/kart/internal/storage"
	"github.com/pitlane/kart/internal/storage/memory"
	pgstorage "github.com/pitlane/kart/internal/storage/postgres"
	sqlitestorage "github.com/pitlane/kart/internal/storage/sqlite"
	wsstorage "github.com/pitlane/kart/internal/storage/websocket"
)

// storageEnv is what the backends need besides their own config section.
type storageEnv struct {
	SessionID string
	Started   time.Time
	Players   int
	DBLogger  zerolog.Logger
	Logger    *slog.Logger
}

// initStorage creates the configured backend and initializes it.
func initStorage(storageCfg config.StorageConfig, env storageEnv) (storage.Backend, error) {
	backend, err := createStorageBackend(storageCfg, env)
	if err != nil {
		return nil, err
	}
	if err := backend.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize %s storage backend: %w", storageCfg.Type, err)
	}
	return backend, nil
}

func createStorageBackend(storageCfg config.StorageConfig, env storageEnv) (storage.Backend, error) {
	logger := env.Logger
	if logger == nil {
		logger = slog.Default()
	}

	switch storageCfg.Type {
	case "postgres":
		logger.Info("Postgres storage backend initialized")
		return pgstorage.New(pgstorage.Dependencies{
			DSN:      config.GetDBConfig().DSN(),
			DBLogger: env.DBLogger,
			Logger:   logger,
		}), nil

	case "sqlite":
		backend, err := sqlitestorage.New(sqlitestorage.Config{
			DumpInterval: storageCfg.SQLite.DumpInterval,
			DumpPath:     storageCfg.SQLite.DumpPath,
		}, env.DBLogger, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite backend: %w", err)
		}
		logger.Info("SQLite storage backend initialized", "dumpPath", storageCfg.SQLite.DumpPath)
		return backend, nil

	case "websocket":
		apiCfg := config.GetAPIConfig()
		wsURL, err := wsstorage.HTTPToWS(apiCfg.ServerURL)
		if err != nil {
			return nil, fmt.Errorf("websocket storage: %w", err)
		}
		logger.Info("WebSocket storage backend initialized", "url", wsURL)
		return wsstorage.New(wsstorage.Config{
			URL:       wsURL,
			Secret:    apiCfg.APIKey,
			SessionID: env.SessionID,
			Started:   env.Started,
			Players:   env.Players,
			Logger:    logger,
		}), nil

	case "memory", "":
		logger.Info("Memory storage backend initialized", "outputDir", storageCfg.Memory.OutputDir)
		return memory.New(storageCfg.Memory), nil

	default:
		return nil, fmt.Errorf("unknown storage type %q", storageCfg.Type)
	}
}
