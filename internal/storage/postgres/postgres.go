// Package postgres implements the storage.Backend interface using GORM/PostgreSQL
// with an internal queue and a background DB writer goroutine.
package postgres

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/pitlane/kart/internal/database"
	"github.com/pitlane/kart/internal/queue"
	"github.com/pitlane/kart/internal/storage"
	gormstorage "github.com/pitlane/kart/internal/storage/gorm"
	"github.com/pitlane/kart/pkg/core"
)

// DefaultFlushInterval is how often queued runs are written when
// Dependencies.FlushInterval is not set.
const DefaultFlushInterval = 2 * time.Second

// Dependencies holds all dependencies for the postgres storage backend.
type Dependencies struct {
	// DB is used as is when set. Otherwise Init connects with DSN.
	DB            *gorm.DB
	DSN           string
	DBLogger      zerolog.Logger
	Logger        *slog.Logger
	FlushInterval time.Duration
}

// Backend queues saved runs and writes them from a background goroutine.
// Reads flush the queue first so they observe every accepted run.
type Backend struct {
	deps    Dependencies
	manager *database.Manager
	gorm    *gormstorage.Backend
	pending *queue.Queue[core.GhostRun]
	failed  atomic.Int64

	flushMu  sync.Mutex
	stopChan chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New creates a new postgres storage backend.
func New(deps Dependencies) *Backend {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.FlushInterval <= 0 {
		deps.FlushInterval = DefaultFlushInterval
	}
	return &Backend{
		deps:     deps,
		pending:  queue.New[core.GhostRun](),
		stopChan: make(chan struct{}),
	}
}

// Init connects if needed, runs schema migration, and starts the DB writer goroutine.
func (b *Backend) Init() error {
	db := b.deps.DB
	if db == nil {
		b.manager = database.NewManager(b.deps.DBLogger)
		if err := b.manager.OpenPostgres(b.deps.DSN); err != nil {
			return fmt.Errorf("failed to connect to postgres: %w", err)
		}
		db = b.manager.DB
	}

	b.gorm = gormstorage.New(gormstorage.Dependencies{DB: db, Logger: b.deps.Logger})
	if err := b.gorm.Init(); err != nil {
		return fmt.Errorf("failed to setup DB: %w", err)
	}

	b.wg.Add(1)
	go b.writeLoop()
	return nil
}

// Close stops the writer, flushes what is left and closes an owned
// connection.
func (b *Backend) Close() error {
	var err error
	b.stopOnce.Do(func() {
		close(b.stopChan)
		b.wg.Wait()
		if b.gorm != nil {
			err = b.Flush()
		}
		if b.manager != nil {
			err = errors.Join(err, b.manager.Close())
		}
	})
	return err
}

// SaveRun validates the run and queues a copy for the writer.
func (b *Backend) SaveRun(run *core.GhostRun) error {
	if err := storage.Validate(run); err != nil {
		return err
	}
	cp := *run
	cp.Samples = slices.Clone(run.Samples)
	b.pending.Push(cp)
	return nil
}

// LoadRun flushes queued runs and loads one.
func (b *Backend) LoadRun(id string) (*core.GhostRun, error) {
	if b.gorm == nil {
		return nil, gormstorage.ErrNoDB
	}
	if err := b.Flush(); err != nil {
		b.deps.Logger.Warn("Flush before read failed", "error", err)
	}
	return b.gorm.LoadRun(id)
}

// BestRun flushes queued runs and returns the course best.
func (b *Backend) BestRun(course string) (*core.GhostRun, error) {
	if b.gorm == nil {
		return nil, gormstorage.ErrNoDB
	}
	if err := b.Flush(); err != nil {
		b.deps.Logger.Warn("Flush before read failed", "error", err)
	}
	return b.gorm.BestRun(course)
}

// CourseRecords flushes queued runs and returns the best duration per course.
func (b *Backend) CourseRecords() (map[string]float64, error) {
	if b.gorm == nil {
		return nil, gormstorage.ErrNoDB
	}
	if err := b.Flush(); err != nil {
		b.deps.Logger.Warn("Flush before read failed", "error", err)
	}
	return b.gorm.CourseRecords()
}

// Pending is the number of runs waiting for the writer.
func (b *Backend) Pending() int {
	return b.pending.Len()
}

// Failed is the number of runs the writer could not store.
func (b *Backend) Failed() int64 {
	return b.failed.Load()
}

// Flush writes every queued run now. Runs that fail are dropped and counted.
func (b *Backend) Flush() error {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	var errs []error
	for _, run := range b.pending.Drain() {
		if err := b.gorm.SaveRun(&run); err != nil {
			b.failed.Add(1)
			b.deps.Logger.Error("Failed to write ghost run", "run", run.ID, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (b *Backend) writeLoop() {
	defer b.wg.Done()
	ticker := time.NewTicker(b.deps.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			if b.pending.Empty() {
				continue
			}
			start := time.Now()
			n := b.pending.Len()
			if err := b.Flush(); err == nil {
				b.deps.Logger.Debug("Wrote queued ghost runs", "count", n, "duration", time.Since(start))
			}
		}
	}
}
