package ghost

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/pitlane/kart/pkg/core"
)

// Player replays the ghost's track on a target transform while the ghost is
// replaying.
type Player struct {
	ghost  *Ghost
	target Transform

	elapsed   float64
	hint      int
	active    bool
	session   int
	completed bool

	listeners []listener
	nextID    int
}

type listener struct {
	id int
	fn func()
}

func NewPlayer(g *Ghost, target Transform) (*Player, error) {
	if g == nil {
		return nil, fmt.Errorf("new player: %w", ErrNilGhost)
	}
	if target == nil {
		return nil, fmt.Errorf("new player: %w", ErrNilTransform)
	}
	return &Player{ghost: g, target: target}, nil
}

// Elapsed is the playback time of the current replay session.
func (p *Player) Elapsed() float64 { return p.elapsed }

// Completed reports whether the current replay session reached the end.
func (p *Player) Completed() bool { return p.completed }

// OnReplayComplete registers fn to run once per replay session when playback
// reaches the end of the track. The returned func removes the listener.
func (p *Player) OnReplayComplete(fn func()) (remove func()) {
	p.nextID++
	id := p.nextID
	p.listeners = append(p.listeners, listener{id: id, fn: fn})
	return func() {
		for i, l := range p.listeners {
			if l.id == id {
				p.listeners = append(p.listeners[:i], p.listeners[i+1:]...)
				return
			}
		}
	}
}

// Update advances playback and writes the interpolated pose to the target.
// Entering the replaying state, or a BeginReplay while already replaying,
// starts a new session from time zero.
func (p *Player) Update(dt float64) {
	if p.ghost.State != StateReplaying {
		p.active = false
		return
	}
	if !p.active || p.session != p.ghost.session {
		p.active = true
		p.session = p.ghost.session
		p.elapsed = 0
		p.hint = 0
		p.completed = false
	}
	p.elapsed += dt

	track := p.ghost.Track
	n := track.Len()
	if n == 0 {
		p.complete()
		return
	}

	i, j := bracket(track, p.elapsed, p.hint)
	if i < n-1 {
		p.hint = i
	}
	pose := interpolate(track, i, j, p.elapsed)
	p.target.SetPose(pose.Position, pose.Rotation)

	if i == n-1 && j == n-1 {
		p.complete()
	}
}

// PoseAt returns the pose the player would show at the given playback time.
// The second result is false for an empty track.
func (p *Player) PoseAt(elapsed float64) (core.Pose, bool) {
	if p.ghost.Track.Len() == 0 {
		return core.Pose{}, false
	}
	i, j := bracket(p.ghost.Track, elapsed, 0)
	return interpolate(p.ghost.Track, i, j, elapsed), true
}

func (p *Player) complete() {
	if p.completed {
		return
	}
	p.completed = true
	// listeners may remove themselves
	fns := make([]func(), len(p.listeners))
	for i, l := range p.listeners {
		fns[i] = l.fn
	}
	for _, fn := range fns {
		fn()
	}
}

// bracket finds the first adjacent pair with ts[i] <= elapsed <= ts[i+1],
// scanning forward from hint. At or past the end, or on a track shorter than
// two samples, both indices are the last one. Before the first sample both are
// zero.
func bracket(track *Track, elapsed float64, hint int) (int, int) {
	n := track.Len()
	last := n - 1
	if n < 2 {
		return last, last
	}
	if elapsed >= track.At(last).Timestamp {
		return last, last
	}
	if hint <= 0 && elapsed < track.At(0).Timestamp {
		return 0, 0
	}
	if hint < 0 || hint >= last {
		hint = 0
	}
	for i := hint; i < last; i++ {
		if track.At(i).Timestamp <= elapsed && elapsed <= track.At(i+1).Timestamp {
			return i, i + 1
		}
	}
	return last, last
}

func interpolate(track *Track, i, j int, elapsed float64) core.Pose {
	a := track.At(i)
	if i == j {
		return a.Pose()
	}
	b := track.At(j)
	span := b.Timestamp - a.Timestamp
	if span <= 0 {
		return a.Pose()
	}
	t := (elapsed - a.Timestamp) / span
	return core.Pose{
		Position: Lerp(a.Position, b.Position, t),
		Rotation: Slerp(a.Rotation, b.Rotation, t),
	}
}

// Lerp interpolates linearly between a and b. The endpoints are returned
// exactly for t <= 0 and t >= 1.
func Lerp(a, b mgl64.Vec3, t float64) mgl64.Vec3 {
	switch {
	case t <= 0:
		return a
	case t >= 1:
		return b
	}
	return a.Add(b.Sub(a).Mul(t))
}

// Slerp interpolates rotations along the shorter arc. The endpoints are
// returned exactly for t <= 0 and t >= 1.
func Slerp(a, b mgl64.Quat, t float64) mgl64.Quat {
	switch {
	case t <= 0:
		return a
	case t >= 1:
		return b
	}
	if a.Dot(b) < 0 {
		b = b.Scale(-1)
	}
	return mgl64.QuatSlerp(a, b, t).Normalize()
}
