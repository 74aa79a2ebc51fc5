// Package storage defines the interface every ghost run store implements.
package storage

import (
	"errors"

	"github.com/pitlane/kart/pkg/core"
)

var (
	// ErrRunNotFound is returned when no run matches a lookup.
	ErrRunNotFound = errors.New("ghost run not found")
	// ErrNotSupported is returned by write-only backends for lookups.
	ErrNotSupported = errors.New("operation not supported by backend")
	// ErrInvalidRun is returned when a run cannot be stored as given.
	ErrInvalidRun = errors.New("invalid ghost run")
)

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// SaveRun persists a finished run. The run's ID must be set.
	SaveRun(run *core.GhostRun) error
	// LoadRun returns the run with the given ID, samples in track order.
	LoadRun(id string) (*core.GhostRun, error)
	// BestRun returns the shortest non-empty run recorded on a course.
	BestRun(course string) (*core.GhostRun, error)
}

// Uploadable is an optional interface for storage backends that produce
// files suitable for upload to the leaderboard server.
type Uploadable interface {
	GetExportedFilePath() string
	GetExportMetadata() core.UploadMetadata
}

// Validate reports whether run can be stored.
func Validate(run *core.GhostRun) error {
	switch {
	case run == nil:
		return errors.Join(ErrInvalidRun, errors.New("run is nil"))
	case run.ID == "":
		return errors.Join(ErrInvalidRun, errors.New("run has no ID"))
	}
	for i := 1; i < len(run.Samples); i++ {
		if run.Samples[i].Timestamp < run.Samples[i-1].Timestamp {
			return errors.Join(ErrInvalidRun, errors.New("sample timestamps are not ordered"))
		}
	}
	return nil
}
