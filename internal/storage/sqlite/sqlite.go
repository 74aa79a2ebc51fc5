// Package sqlitestorage implements the storage.Backend interface using an in-memory
// SQLite database with periodic disk dumps via VACUUM INTO.
// It wraps the GORM backend; the SQLite-specific concerns are creating the
// in-memory DB and the periodic disk dump.
package sqlitestorage

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pitlane/kart/internal/database"
	gormstorage "github.com/pitlane/kart/internal/storage/gorm"
)

// Config holds configuration for the SQLite storage backend.
type Config struct {
	DumpInterval time.Duration
	DumpPath     string // Path for periodic VACUUM INTO dumps
}

// Backend wraps the GORM backend for SQLite-specific behavior.
type Backend struct {
	*gormstorage.Backend
	db       *database.Manager
	cfg      Config
	log      *slog.Logger
	stopChan chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New creates a new SQLite storage backend.
func New(cfg Config, dbLog zerolog.Logger, logger *slog.Logger) (*Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db := database.NewManager(dbLog)
	if err := db.OpenSqlite(""); err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite DB: %w", err)
	}
	db.SqliteFilePath = cfg.DumpPath

	return &Backend{
		Backend:  gormstorage.New(gormstorage.Dependencies{DB: db.DB, Logger: logger}),
		db:       db,
		cfg:      cfg,
		log:      logger,
		stopChan: make(chan struct{}),
	}, nil
}

// Init initializes the embedded GORM backend and starts the dump goroutine.
func (b *Backend) Init() error {
	if err := b.Backend.Init(); err != nil {
		return err
	}

	if b.cfg.DumpPath != "" && b.cfg.DumpInterval > 0 {
		b.wg.Add(1)
		go b.dumpLoop()
	}

	return nil
}

// Dump writes a snapshot of the database to DumpPath now.
func (b *Backend) Dump() error {
	return b.db.DumpMemoryToDisk()
}

// Close stops the dump goroutine, writes a final dump when a path is
// configured, and closes the database.
func (b *Backend) Close() error {
	var err error
	b.stopOnce.Do(func() {
		close(b.stopChan)
		b.wg.Wait()
		if b.cfg.DumpPath != "" {
			if dumpErr := b.Dump(); dumpErr != nil {
				b.log.Error("Final dump failed", "error", dumpErr)
				err = dumpErr
			}
		}
		if closeErr := b.db.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	})
	return err
}

// dumpLoop periodically dumps the in-memory SQLite database to disk via VACUUM INTO.
// VACUUM INTO creates a point-in-time snapshot, so no pause mechanism is needed.
func (b *Backend) dumpLoop() {
	defer b.wg.Done()
	ticker := time.NewTicker(b.cfg.DumpInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			start := time.Now()
			if err := b.Dump(); err != nil {
				b.log.Error("Error dumping to disk", "error", err)
			} else {
				b.log.Debug("Dumped to disk", "duration", time.Since(start))
			}
		}
	}
}
