// Package database opens the gorm connections ghost runs are stored in.
package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/pitlane/kart/internal/model"
)

// ErrNotConnected is returned by operations that need an open connection.
var ErrNotConnected = errors.New("database not connected")

var sqlitePragmas = []string{
	"PRAGMA user_version = 1;",
	"PRAGMA journal_mode = MEMORY;",
	"PRAGMA synchronous = OFF;",
	"PRAGMA cache_size = -32000;",
	"PRAGMA temp_store = MEMORY;",
	"PRAGMA foreign_keys = ON;",
}

// Manager handles database connections and operations.
type Manager struct {
	DB             *gorm.DB
	SqlDB          *sql.DB
	InMemory       bool
	SqliteFilePath string
	Logger         zerolog.Logger
}

// NewManager creates a new database manager.
func NewManager(log zerolog.Logger) *Manager {
	return &Manager{
		Logger: log.With().Str("component", "database").Logger(),
	}
}

// OpenPostgres connects to Postgres and validates the connection.
func (m *Manager) OpenPostgres(dsn string) error {
	m.Logger.Debug().Msg("Connecting to Postgres DB")

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		CreateBatchSize:        10000,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return fmt.Errorf("open postgres: %w", err)
	}
	if err := m.attach(db); err != nil {
		return err
	}
	m.SqlDB.SetMaxOpenConns(10)
	m.Logger.Info().Msg("Connected to database")
	return nil
}

// OpenSqlite opens a SQLite database at path. An empty path opens a private
// in-memory database that can later be dumped with DumpMemoryToDisk.
func (m *Manager) OpenSqlite(path string) error {
	dsn := path
	if path == "" {
		// Each manager gets its own named shared-cache database so several
		// in-memory backends can coexist in one process.
		dsn = fmt.Sprintf("file:kart-%s?mode=memory&cache=shared", uuid.NewString())
		m.InMemory = true
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
		CreateBatchSize:        2000,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}

	for _, pragma := range sqlitePragmas {
		if err := db.Exec(pragma).Error; err != nil {
			return fmt.Errorf("error setting PRAGMA: %w", err)
		}
	}

	if err := m.attach(db); err != nil {
		return err
	}

	if m.InMemory {
		m.Logger.Info().Msg("Using local SQLite DB in memory with periodic disk dump")
	} else {
		m.Logger.Info().Str("path", path).Msg("Using local SQLite DB")
	}
	return nil
}

func (m *Manager) attach(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to access sql interface: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("failed to validate connection: %w", err)
	}
	m.DB = db
	m.SqlDB = sqlDB
	return nil
}

// Setup migrates the ghost run schema.
func (m *Manager) Setup() error {
	if m.DB == nil {
		return ErrNotConnected
	}
	m.Logger.Info().Msg("Migrating schema")
	if err := m.DB.AutoMigrate(model.DatabaseModels...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	m.Logger.Info().Msg("Database setup complete")
	return nil
}

// DumpMemoryToDisk vacuums the database into SqliteFilePath, replacing any
// previous dump.
func (m *Manager) DumpMemoryToDisk() error {
	if m.DB == nil {
		return ErrNotConnected
	}
	if m.SqliteFilePath == "" {
		return errors.New("sqlite file path not set")
	}
	if strings.Contains(m.SqliteFilePath, "'") {
		return fmt.Errorf("sqlite file path %q contains a quote", m.SqliteFilePath)
	}

	if dir := filepath.Dir(m.SqliteFilePath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create dump directory: %w", err)
		}
	}
	if _, err := os.Stat(m.SqliteFilePath); err == nil {
		if err := os.Remove(m.SqliteFilePath); err != nil {
			return fmt.Errorf("error removing existing DB file: %w", err)
		}
	}

	start := time.Now()
	if err := m.DB.Exec("VACUUM INTO '" + m.SqliteFilePath + "';").Error; err != nil {
		return fmt.Errorf("error dumping memory DB to disk: %w", err)
	}

	m.Logger.Debug().Dur("duration", time.Since(start)).Str("path", m.SqliteFilePath).Msg("Dumped memory DB to disk")
	return nil
}

// Close closes the underlying connection pool.
func (m *Manager) Close() error {
	if m.SqlDB == nil {
		return nil
	}
	err := m.SqlDB.Close()
	m.DB = nil
	m.SqlDB = nil
	return err
}
