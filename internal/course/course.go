package course

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/pitlane/kart/pkg/core"
)

var (
	ErrNoPlayers         = errors.New("course needs at least one player")
	ErrInvalidCheckpoint = errors.New("invalid checkpoint")
)

// Course holds the ordered checkpoints of one track and each player's
// progress through them.
type Course struct {
	Name        string
	Spawn       core.Pose
	Checkpoints []Checkpoint

	progress []int
	inside   [][]bool

	// OnCheckpoint fires when a player clears the checkpoint it was due at.
	OnCheckpoint func(player, index int)
	// OnWin fires once when a player has cleared every checkpoint.
	OnWin func(player int)
}

// New creates a course for the given number of players. Checkpoints are
// re-indexed by position in the slice.
func New(name string, spawn core.Pose, checkpoints []Checkpoint, players int) (*Course, error) {
	if players < 1 {
		return nil, fmt.Errorf("new course %q: %w", name, ErrNoPlayers)
	}
	cps := make([]Checkpoint, len(checkpoints))
	for i, cp := range checkpoints {
		if !(cp.Radius > 0) {
			return nil, fmt.Errorf("new course %q: %w: checkpoint %d radius %v", name, ErrInvalidCheckpoint, i, cp.Radius)
		}
		cp.Index = i
		cps[i] = cp
	}

	c := &Course{
		Name:        name,
		Spawn:       spawn,
		Checkpoints: cps,
		progress:    make([]int, players),
		inside:      make([][]bool, players),
	}
	for p := range c.inside {
		c.inside[p] = make([]bool, len(cps))
	}
	return c, nil
}

// Players is the number of players the course tracks.
func (c *Course) Players() int { return len(c.progress) }

// Progress returns how many checkpoints the player has cleared, or -1 for an
// unknown player.
func (c *Course) Progress(player int) int {
	if player < 0 || player >= len(c.progress) {
		return -1
	}
	return c.progress[player]
}

// Finished reports whether the player cleared every checkpoint.
func (c *Course) Finished(player int) bool {
	return c.Progress(player) == len(c.Checkpoints) && len(c.Checkpoints) > 0
}

// Reached records that the player entered checkpoint index. Only the next
// expected checkpoint advances progress.
func (c *Course) Reached(player, index int) {
	total := len(c.Checkpoints)
	if player < 0 || player >= len(c.progress) || c.progress[player] >= total {
		return
	}
	if index != c.progress[player] {
		return
	}
	c.progress[player]++
	if c.OnCheckpoint != nil {
		c.OnCheckpoint(player, index)
	}
	if c.progress[player] == total && c.OnWin != nil {
		c.OnWin(player)
	}
}

// Observe feeds a player's position and fires Reached for every checkpoint
// the player has just entered.
func (c *Course) Observe(player int, pos mgl64.Vec3) {
	if player < 0 || player >= len(c.inside) {
		return
	}
	flags := c.inside[player]
	for i, cp := range c.Checkpoints {
		in := cp.Contains(pos)
		entered := in && !flags[i]
		flags[i] = in
		if entered {
			c.Reached(player, i)
		}
	}
}

// Reset clears progress and trigger state for every player.
func (c *Course) Reset() {
	for p := range c.progress {
		c.progress[p] = 0
		for i := range c.inside[p] {
			c.inside[p][i] = false
		}
	}
}
