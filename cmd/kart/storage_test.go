package main

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pitlane/kart/internal/config"
	"github.com/pitlane/kart/internal/storage/memory"
	pgstorage "github.com/pitlane/kart/internal/storage/postgres"
	sqlitestorage "github.com/pitlane/kart/internal/storage/sqlite"
	wsstorage "github.com/pitlane/kart/internal/storage/websocket"
)

func TestCreateStorageBackend(t *testing.T) {
	t.Cleanup(viper.Reset)
	config.SetDefaults()
	env := storageEnv{DBLogger: zerolog.Nop()}

	tests := []struct {
		name  string
		cfg   config.StorageConfig
		check func(t *testing.T, b any)
	}{
		{"default", config.StorageConfig{}, func(t *testing.T, b any) {
			assert.IsType(t, &memory.Backend{}, b)
		}},
		{"memory", config.StorageConfig{Type: "memory"}, func(t *testing.T, b any) {
			assert.IsType(t, &memory.Backend{}, b)
		}},
		{"postgres", config.StorageConfig{Type: "postgres"}, func(t *testing.T, b any) {
			assert.IsType(t, &pgstorage.Backend{}, b)
		}},
		{"sqlite", config.StorageConfig{Type: "sqlite", SQLite: config.SQLiteConfig{DumpPath: filepath.Join(t.TempDir(), "kart.db")}}, func(t *testing.T, b any) {
			assert.IsType(t, &sqlitestorage.Backend{}, b)
		}},
		{"websocket", config.StorageConfig{Type: "websocket"}, func(t *testing.T, b any) {
			assert.IsType(t, &wsstorage.Backend{}, b)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := createStorageBackend(tt.cfg, env)
			require.NoError(t, err)
			tt.check(t, b)
			if sb, ok := b.(*sqlitestorage.Backend); ok {
				_ = sb.Close()
			}
		})
	}
}

func TestCreateStorageBackend_Unknown(t *testing.T) {
	_, err := createStorageBackend(config.StorageConfig{Type: "redis"}, storageEnv{})
	assert.Error(t, err)
}

func TestInitStorage_MemoryWithExportDir(t *testing.T) {
	dir := t.TempDir()
	b, err := initStorage(config.StorageConfig{
		Type:   "memory",
		Memory: config.MemoryConfig{OutputDir: dir, CompressOutput: true},
	}, storageEnv{})
	require.NoError(t, err)
	assert.NoError(t, b.Close())
}
