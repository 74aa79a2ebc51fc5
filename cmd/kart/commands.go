package main

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"github.com/pitlane/kart/internal/api"
	"github.com/pitlane/kart/internal/config"
	"github.com/pitlane/kart/internal/dispatcher"
	"github.com/pitlane/kart/internal/logging"
	"github.com/pitlane/kart/internal/sim"
	"github.com/pitlane/kart/internal/storage"
	"github.com/pitlane/kart/internal/storage/memory"
	"github.com/pitlane/kart/internal/telemetry"
	"github.com/pitlane/kart/pkg/core"
)

const simInstrumentation = "github.com/pitlane/kart/internal/sim"

// courseRecorder is implemented by the database backed stores.
type courseRecorder interface {
	CourseRecords() (map[string]float64, error)
}

func (a *app) openStorage() (storage.Backend, error) {
	return initStorage(config.GetStorageConfig(), storageEnv{
		SessionID: a.session.ID(),
		Started:   a.session.Started(),
		Players:   config.GetRaceConfig().Players,
		DBLogger:  a.zlog,
		Logger:    a.logger,
	})
}

func (a *app) closeStorage(b storage.Backend) {
	if err := b.Close(); err != nil {
		a.logger.Error("Failed to close storage backend", "error", err)
	}
}

func (a *app) loadCourses(raceCfg config.RaceConfig) ([]sim.CourseSpec, error) {
	if raceCfg.CoursesFile == "" {
		return sim.DefaultCourses(), nil
	}
	return sim.LoadCourses(raceCfg.CoursesFile)
}

func (a *app) openTelemetry(ctx context.Context) *telemetry.Writer {
	telCfg := config.GetTelemetryConfig()
	if !telCfg.Enabled {
		return nil
	}
	w := telemetry.NewWriter(telCfg, telemetry.BackupFileName(telCfg.BackupDir, a.session.Started()), a.zlog)
	if err := w.Connect(ctx); err != nil {
		a.logger.Error("Failed to set up telemetry", "error", err)
		return nil
	}
	return w
}

func (a *app) runScript(ctx context.Context, path string) error {
	raceCfg := config.GetRaceConfig()
	script, err := sim.LoadScript(path, raceCfg.TickRate)
	if err != nil {
		return err
	}
	courses, err := a.loadCourses(raceCfg)
	if err != nil {
		return err
	}

	backend, err := a.openStorage()
	if err != nil {
		return err
	}
	defer a.closeStorage(backend)

	deps := sim.Dependencies{
		Vehicle:        config.GetVehicleConfig(),
		Ghost:          config.GetGhostConfig(),
		Race:           raceCfg,
		Courses:        courses,
		Storage:        backend,
		Session:        a.session,
		Logger:         a.logger,
		OnRunPersisted: func(*core.GhostRun) { a.flushOTel() },
	}
	if w := a.openTelemetry(ctx); w != nil {
		defer func() {
			if err := w.Close(); err != nil {
				a.logger.Error("Failed to close telemetry", "error", err)
			}
		}()
		deps.Telemetry = w
	}
	if a.otelProvider != nil {
		deps.Meter = a.otelProvider.Meter(simInstrumentation)
	}
	deps.Dispatcher, err = dispatcher.New(logging.NewDispatcherLogger(a.zlog))
	if err != nil {
		return fmt.Errorf("creating dispatcher: %w", err)
	}

	engine, err := sim.New(deps)
	if err != nil {
		return err
	}

	runErr := engine.Run(ctx, script.Ticks(), script.Step(), script.Events)
	engine.WaitForSaves()
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}

	fmt.Printf("session %s: %d ticks, %.2fs simulated, %d ghost runs, course %q\n",
		a.session.ID(), engine.Ticks(), engine.Clock(), a.session.Runs(), a.session.Course())

	if up, ok := backend.(storage.Uploadable); ok {
		a.uploadLatest(up)
	}
	return nil
}

// uploadLatest sends the last exported run when an API key is configured.
func (a *app) uploadLatest(up storage.Uploadable) {
	apiCfg := config.GetAPIConfig()
	path := up.GetExportedFilePath()
	if apiCfg.APIKey == "" || path == "" {
		return
	}
	client := api.New(apiCfg.ServerURL, apiCfg.APIKey)
	if err := client.Healthcheck(); err != nil {
		a.logger.Warn("Leaderboard server not reachable, skipping upload", "error", err)
		return
	}
	if err := client.Upload(path, up.GetExportMetadata()); err != nil {
		a.logger.Error("Failed to upload ghost run", "path", path, "error", err)
		return
	}
	a.logger.Info("Uploaded ghost run", "path", path)
}

func (a *app) exportRuns(ids []string) error {
	backend, err := a.openStorage()
	if err != nil {
		return err
	}
	defer a.closeStorage(backend)

	memCfg := config.GetStorageConfig().Memory
	if err := os.MkdirAll(memCfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}

	for _, id := range ids {
		run, err := backend.LoadRun(id)
		if err != nil {
			return fmt.Errorf("loading run %s: %w", id, err)
		}
		path := filepath.Join(memCfg.OutputDir, memory.ExportFileName(*run, memCfg.CompressOutput))
		if err := writeExportFile(path, *run, memCfg.CompressOutput); err != nil {
			return err
		}
		a.logger.Info("Exported ghost run", "run", id, "path", path)
		fmt.Println(path)
	}
	return nil
}

func writeExportFile(path string, run core.GhostRun, compress bool) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating export file: %w", err)
	}
	if err := memory.WriteExport(f, run, compress); err != nil {
		f.Close()
		return fmt.Errorf("writing export file: %w", err)
	}
	return f.Close()
}

func (a *app) uploadFiles(paths []string) error {
	apiCfg := config.GetAPIConfig()
	client := api.New(apiCfg.ServerURL, apiCfg.APIKey)
	if err := client.Healthcheck(); err != nil {
		return err
	}

	for _, path := range paths {
		run, err := memory.ReadExportFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		meta := core.UploadMetadata{
			RunID:      run.ID,
			CourseName: run.CourseName,
			Duration:   run.Duration(),
		}
		if err := client.Upload(path, meta); err != nil {
			return fmt.Errorf("uploading %s: %w", path, err)
		}
		a.logger.Info("Uploaded ghost run", "run", run.ID, "path", path)
		fmt.Println("uploaded", path)
	}
	return nil
}

func (a *app) printRecords() error {
	backend, err := a.openStorage()
	if err != nil {
		return err
	}
	defer a.closeStorage(backend)

	cr, ok := backend.(courseRecorder)
	if !ok {
		return fmt.Errorf("storage type %q does not keep course records", config.GetStorageConfig().Type)
	}
	records, err := cr.CourseRecords()
	if err != nil {
		return err
	}
	for _, name := range slices.Sorted(maps.Keys(records)) {
		fmt.Printf("%-24s %8.3fs\n", name, records[name])
	}
	return nil
}
