package course

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pitlane/kart/pkg/core"
)

func threeCheckpoints() []Checkpoint {
	return []Checkpoint{
		{Position: mgl64.Vec3{0, 0, 10}, Radius: 2},
		{Position: mgl64.Vec3{10, 0, 10}, Radius: 2},
		{Position: mgl64.Vec3{10, 0, 0}, Radius: 2},
	}
}

func newTestCourse(t *testing.T, name string) *Course {
	t.Helper()
	c, err := New(name, core.IdentityPose(), threeCheckpoints(), 2)
	require.NoError(t, err)
	return c
}

func TestNew_Errors(t *testing.T) {
	_, err := New("a", core.IdentityPose(), threeCheckpoints(), 0)
	require.ErrorIs(t, err, ErrNoPlayers)

	cps := threeCheckpoints()
	cps[1].Radius = 0
	_, err = New("a", core.IdentityPose(), cps, 1)
	require.ErrorIs(t, err, ErrInvalidCheckpoint)
}

func TestNew_ReindexesCheckpoints(t *testing.T) {
	cps := threeCheckpoints()
	cps[0].Index = 7
	c, err := New("a", core.IdentityPose(), cps, 1)
	require.NoError(t, err)

	for i, cp := range c.Checkpoints {
		assert.Equal(t, i, cp.Index)
	}
	assert.Equal(t, 7, cps[0].Index, "caller slice must not be modified")
}

func TestCourse_ReachedEnforcesOrder(t *testing.T) {
	c := newTestCourse(t, "oval")
	var cleared []int
	c.OnCheckpoint = func(player, index int) { cleared = append(cleared, index) }

	c.Reached(0, 1)
	assert.Equal(t, 0, c.Progress(0))

	c.Reached(0, 0)
	c.Reached(0, 0)
	c.Reached(0, 2)
	assert.Equal(t, 1, c.Progress(0))

	c.Reached(0, 1)
	assert.Equal(t, 2, c.Progress(0))
	assert.Equal(t, []int{0, 1}, cleared)
	assert.Equal(t, 0, c.Progress(1), "players progress independently")
}

func TestCourse_WinFiresOnce(t *testing.T) {
	c := newTestCourse(t, "oval")
	var winners []int
	c.OnWin = func(player int) { winners = append(winners, player) }

	for i := 0; i < 3; i++ {
		c.Reached(1, i)
	}
	c.Reached(1, 2)
	c.Reached(1, 0)

	assert.Equal(t, []int{1}, winners)
	assert.True(t, c.Finished(1))
	assert.False(t, c.Finished(0))
}

func TestCourse_ProgressUnknownPlayer(t *testing.T) {
	c := newTestCourse(t, "oval")
	assert.Equal(t, -1, c.Progress(2))
	assert.Equal(t, -1, c.Progress(-1))

	c.Reached(5, 0)
	c.Observe(5, mgl64.Vec3{0, 0, 10})
}

func TestCourse_ObserveFiresOnEnterOnly(t *testing.T) {
	c := newTestCourse(t, "oval")
	entered := 0
	c.OnCheckpoint = func(player, index int) { entered++ }

	c.Observe(0, mgl64.Vec3{0, 0, 5})
	c.Observe(0, mgl64.Vec3{0, 0, 9})
	c.Observe(0, mgl64.Vec3{0, 0, 10})
	assert.Equal(t, 1, entered)
	assert.Equal(t, 1, c.Progress(0))

	// leave and re-enter the first checkpoint: it is no longer the next one
	c.Observe(0, mgl64.Vec3{0, 0, 5})
	c.Observe(0, mgl64.Vec3{0, 0, 10})
	assert.Equal(t, 1, entered)
}

func TestCourse_ObserveDrivesWin(t *testing.T) {
	c := newTestCourse(t, "oval")
	won := -1
	c.OnWin = func(player int) { won = player }

	path := []mgl64.Vec3{
		{0, 0, 0}, {0, 0, 10}, {5, 0, 10}, {10, 0, 10}, {10, 0, 5}, {10, 0, 0},
	}
	for _, p := range path {
		c.Observe(0, p)
	}

	assert.Equal(t, 0, won)
	assert.Equal(t, 3, c.Progress(0))
}

func TestCourse_Reset(t *testing.T) {
	c := newTestCourse(t, "oval")
	c.Observe(0, mgl64.Vec3{0, 0, 10})
	require.Equal(t, 1, c.Progress(0))

	c.Reset()
	assert.Equal(t, 0, c.Progress(0))

	// still parked on the checkpoint: counts as a fresh entry after a reset
	c.Observe(0, mgl64.Vec3{0, 0, 10})
	assert.Equal(t, 1, c.Progress(0))
}

func TestCheckpoint_Contains(t *testing.T) {
	cp := Checkpoint{Position: mgl64.Vec3{1, 1, 1}, Radius: 1}
	assert.True(t, cp.Contains(mgl64.Vec3{1, 1, 2}))
	assert.False(t, cp.Contains(mgl64.Vec3{1, 1, 2.01}))
}
