package sqlitestorage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pitlane/kart/internal/database"
	"github.com/pitlane/kart/internal/storage"
	"github.com/pitlane/kart/pkg/core"
)

// Compile-time interface check
var _ storage.Backend = (*Backend)(nil)

func run(id string) *core.GhostRun {
	return &core.GhostRun{
		ID:         id,
		CourseName: "Harbor",
		StartTime:  time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC),
		Samples: []core.MotionSample{
			{Timestamp: 0.1, Position: mgl64.Vec3{0, 0, 1}, Rotation: mgl64.QuatIdent()},
			{Timestamp: 0.2, Position: mgl64.Vec3{0, 0, 2}, Rotation: mgl64.QuatIdent()},
		},
	}
}

func TestSaveLoadWithoutDump(t *testing.T) {
	b, err := New(Config{}, zerolog.Nop(), nil)
	require.NoError(t, err)
	require.NoError(t, b.Init())

	require.NoError(t, b.SaveRun(run("r1")))
	got, err := b.LoadRun("r1")
	require.NoError(t, err)
	assert.Len(t, got.Samples, 2)

	require.NoError(t, b.Close())
	require.NoError(t, b.Close(), "second close is a no-op")
}

func TestClose_WritesFinalDump(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kart.db")
	b, err := New(Config{DumpPath: path}, zerolog.Nop(), nil)
	require.NoError(t, err)
	require.NoError(t, b.Init())
	require.NoError(t, b.SaveRun(run("r1")))
	require.NoError(t, b.Close())

	disk := database.NewManager(zerolog.Nop())
	require.NoError(t, disk.OpenSqlite(path))
	t.Cleanup(func() { _ = disk.Close() })

	var count int64
	require.NoError(t, disk.DB.Table("ghost_samples").Where("run_id = ?", "r1").Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestDumpLoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kart.db")
	b, err := New(Config{DumpPath: path, DumpInterval: 20 * time.Millisecond}, zerolog.Nop(), nil)
	require.NoError(t, err)
	require.NoError(t, b.Init())
	t.Cleanup(func() { _ = b.Close() })

	require.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
}
