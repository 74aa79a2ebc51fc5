// Package gormstorage implements storage.Backend on any gorm dialect. The
// sqlite and postgres backends embed it.
package gormstorage

import (
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/pitlane/kart/internal/geo"
	"github.com/pitlane/kart/internal/model"
	"github.com/pitlane/kart/internal/model/convert"
	"github.com/pitlane/kart/internal/storage"
	"github.com/pitlane/kart/pkg/core"
)

// sampleBatchSize bounds each INSERT of ghost samples.
const sampleBatchSize = 500

// ErrNoDB is returned when the backend was built without a connection.
var ErrNoDB = errors.New("gorm backend has no database")

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB     *gorm.DB
	Logger *slog.Logger
}

// Backend implements storage.Backend using GORM.
type Backend struct {
	deps Dependencies
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Backend{deps: deps}
}

// DB returns the underlying connection.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// Init migrates the schema.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		return ErrNoDB
	}
	if err := b.deps.DB.AutoMigrate(model.DatabaseModels...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// Close is a no-op; the connection belongs to whoever opened it.
func (b *Backend) Close() error {
	return nil
}

// SaveRun writes the run row and its samples in one transaction.
func (b *Backend) SaveRun(run *core.GhostRun) error {
	if b.deps.DB == nil {
		return ErrNoDB
	}
	if err := storage.Validate(run); err != nil {
		return err
	}

	row, err := convert.CoreToGhostRun(*run)
	if err != nil {
		return err
	}
	row.PathLength = geo.PathLength(run.Samples)
	samples := row.Samples
	row.Samples = nil

	err = b.deps.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("insert run: %w", err)
		}
		if len(samples) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(samples, sampleBatchSize).Error; err != nil {
			return fmt.Errorf("insert samples: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save run %s: %w", run.ID, err)
	}

	b.deps.Logger.Debug("Saved ghost run", "run", run.ID, "course", run.CourseName, "samples", len(samples))
	return nil
}

// LoadRun loads a run with its samples.
func (b *Backend) LoadRun(id string) (*core.GhostRun, error) {
	if b.deps.DB == nil {
		return nil, ErrNoDB
	}
	return b.first(b.deps.DB.Where("id = ?", id), id)
}

// BestRun loads the shortest non-empty run on course.
func (b *Backend) BestRun(course string) (*core.GhostRun, error) {
	if b.deps.DB == nil {
		return nil, ErrNoDB
	}
	q := b.deps.DB.
		Where("course_name = ? AND sample_count > 0", course).
		Order("duration ASC").
		Order("created_at ASC")
	return b.first(q, fmt.Sprintf("course %q", course))
}

func (b *Backend) first(q *gorm.DB, what string) (*core.GhostRun, error) {
	var row model.GhostRun
	err := q.Preload("Samples", func(db *gorm.DB) *gorm.DB {
		return db.Order("seq ASC")
	}).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", storage.ErrRunNotFound, what)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", what, err)
	}

	run, err := convert.GhostRunToCore(row)
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// CourseRecords returns each course's best duration.
func (b *Backend) CourseRecords() (map[string]float64, error) {
	if b.deps.DB == nil {
		return nil, ErrNoDB
	}
	var rows []struct {
		CourseName string
		Best       float64
	}
	err := b.deps.DB.Model(&model.GhostRun{}).
		Select("course_name, MIN(duration) AS best").
		Where("sample_count > 0").
		Group("course_name").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query course records: %w", err)
	}

	records := make(map[string]float64, len(rows))
	for _, r := range rows {
		records[r.CourseName] = r.Best
	}
	return records, nil
}
