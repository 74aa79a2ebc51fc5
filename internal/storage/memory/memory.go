// Package memory keeps ghost runs in memory and exports each saved run to a
// JSON file.
package memory

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/pitlane/kart/internal/config"
	"github.com/pitlane/kart/internal/storage"
	"github.com/pitlane/kart/pkg/core"
)

// Backend stores ghost runs in memory and exports to JSON
type Backend struct {
	cfg config.MemoryConfig

	runs  map[string]core.GhostRun
	order []string

	lastExportPath string
	lastRun        core.GhostRun
	mu             sync.RWMutex
}

// New creates a new memory backend. An empty OutputDir disables file export.
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{
		cfg:  cfg,
		runs: make(map[string]core.GhostRun),
	}
}

// Init loads previously exported runs from the output directory so BestRun
// sees them. Files that fail to decode are skipped.
func (b *Backend) Init() error {
	if b.cfg.OutputDir == "" {
		return nil
	}
	entries, err := os.ReadDir(b.cfg.OutputDir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read output directory: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, e := range entries {
		if e.IsDir() || !isExportFile(e.Name()) {
			continue
		}
		run, err := ReadExportFile(filepath.Join(b.cfg.OutputDir, e.Name()))
		if err != nil || storage.Validate(&run) != nil {
			continue
		}
		b.store(run)
	}
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// SaveRun stores a copy of run and exports it when an output directory is
// configured.
func (b *Backend) SaveRun(run *core.GhostRun) error {
	if err := storage.Validate(run); err != nil {
		return err
	}
	cp := copyRun(*run)

	b.mu.Lock()
	defer b.mu.Unlock()

	b.store(cp)
	b.lastRun = cp

	if b.cfg.OutputDir == "" {
		return nil
	}
	path, err := b.exportJSON(cp)
	if err != nil {
		return err
	}
	b.lastExportPath = path
	return nil
}

func (b *Backend) store(run core.GhostRun) {
	if _, ok := b.runs[run.ID]; !ok {
		b.order = append(b.order, run.ID)
	}
	b.runs[run.ID] = run
}

// LoadRun returns a copy of the stored run.
func (b *Backend) LoadRun(id string) (*core.GhostRun, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	run, ok := b.runs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrRunNotFound, id)
	}
	cp := copyRun(run)
	return &cp, nil
}

// BestRun returns the shortest non-empty run on course. Ties go to the run
// saved first.
func (b *Backend) BestRun(course string) (*core.GhostRun, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var best *core.GhostRun
	for _, id := range b.order {
		run := b.runs[id]
		if run.CourseName != course || len(run.Samples) == 0 {
			continue
		}
		if best == nil || run.Duration() < best.Duration() {
			r := run
			best = &r
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%w: no runs on course %q", storage.ErrRunNotFound, course)
	}
	cp := copyRun(*best)
	return &cp, nil
}

// Runs returns the number of stored runs.
func (b *Backend) Runs() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.runs)
}

// GetExportedFilePath returns the path of the most recent export.
func (b *Backend) GetExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}

// GetExportMetadata describes the most recently saved run for upload.
func (b *Backend) GetExportMetadata() core.UploadMetadata {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return core.UploadMetadata{
		RunID:      b.lastRun.ID,
		CourseName: b.lastRun.CourseName,
		Duration:   b.lastRun.Duration(),
	}
}

func copyRun(run core.GhostRun) core.GhostRun {
	run.Samples = slices.Clone(run.Samples)
	run.Tuning = maps.Clone(run.Tuning)
	return run
}
