package ghost

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/pitlane/kart/pkg/core"
)

var (
	ErrNilGhost     = errors.New("ghost is nil")
	ErrNilTransform = errors.New("transform is nil")
	ErrBadFrequency = errors.New("record frequency must be positive")
)

// sampleEpsilon absorbs float drift when accumulated deltas should land
// exactly on the sampling interval.
const sampleEpsilon = 1e-9

// Transform is a position and rotation that can be read and overwritten.
type Transform interface {
	Position() mgl64.Vec3
	Rotation() mgl64.Quat
	SetPose(pos mgl64.Vec3, rot mgl64.Quat)
}

// Recorder samples a transform into the ghost's track while the ghost is
// recording.
type Recorder struct {
	ghost    *Ghost
	target   Transform
	interval float64

	elapsed float64
	timer   float64
}

// NewRecorder validates its collaborators. The sampling interval is fixed
// from the ghost's record frequency at construction.
func NewRecorder(g *Ghost, target Transform) (*Recorder, error) {
	if g == nil {
		return nil, fmt.Errorf("new recorder: %w", ErrNilGhost)
	}
	if target == nil {
		return nil, fmt.Errorf("new recorder: %w", ErrNilTransform)
	}
	if !(g.RecordFrequency > 0) || math.IsInf(g.RecordFrequency, 0) {
		return nil, fmt.Errorf("new recorder: %w, got %v", ErrBadFrequency, g.RecordFrequency)
	}
	return &Recorder{
		ghost:    g,
		target:   target,
		interval: 1 / g.RecordFrequency,
	}, nil
}

// Start begins a recording session. The track is cleared once, here, before
// any sample of the new session is taken. Calling Start while already
// recording does nothing.
func (r *Recorder) Start() {
	if r.ghost.State == StateRecording {
		return
	}
	r.ghost.Track.Reset()
	r.elapsed = 0
	r.timer = 0
	r.ghost.State = StateRecording
}

// Stop ends the session and leaves the track untouched.
func (r *Recorder) Stop() {
	if r.ghost.State == StateRecording {
		r.ghost.State = StateIdle
	}
}

// Elapsed is the length of the current or last recording session.
func (r *Recorder) Elapsed() float64 { return r.elapsed }

// Interval is the sampling period in seconds.
func (r *Recorder) Interval() float64 { return r.interval }

// Update advances the session clock and appends a sample each time the
// interval timer reaches the sampling period. The timer keeps the remainder
// so the sampling rate does not drift with uneven deltas.
func (r *Recorder) Update(dt float64) {
	switch r.ghost.State {
	case StateRecording:
		r.record(dt)
	case StateIdle, StateReplaying:
	default:
		panic(fmt.Sprintf("ghost: unknown state %v", r.ghost.State))
	}
}

func (r *Recorder) record(dt float64) {
	if dt <= 0 {
		return
	}
	r.elapsed += dt
	r.timer += dt
	if r.timer+sampleEpsilon < r.interval {
		return
	}

	r.ghost.Track.Append(core.MotionSample{
		Timestamp: r.elapsed,
		Position:  r.target.Position(),
		Rotation:  r.target.Rotation(),
	})

	r.timer -= r.interval
	if r.timer+sampleEpsilon >= r.interval {
		// a single long frame only yields one sample
		r.timer = math.Mod(r.timer, r.interval)
	}
	if r.timer < 0 {
		r.timer = 0
	}
}
