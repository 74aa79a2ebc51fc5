package ghost

import (
	"github.com/pitlane/kart/pkg/core"
)

// Track is an append-only, insertion-ordered list of motion samples.
type Track struct {
	samples []core.MotionSample
}

func NewTrack() *Track {
	return &Track{samples: make([]core.MotionSample, 0, 256)}
}

// Append adds a sample at the end of the track.
func (t *Track) Append(s core.MotionSample) {
	t.samples = append(t.samples, s)
}

func (t *Track) Len() int {
	return len(t.samples)
}

// At returns the i-th sample. It panics when i is out of range.
func (t *Track) At(i int) core.MotionSample {
	return t.samples[i]
}

// Duration is the timestamp of the last sample, or zero for an empty track.
func (t *Track) Duration() float64 {
	if len(t.samples) == 0 {
		return 0
	}
	return t.samples[len(t.samples)-1].Timestamp
}

// Reset drops all samples and keeps the allocated capacity.
func (t *Track) Reset() {
	t.samples = t.samples[:0]
}

// Snapshot returns a copy of the samples that stays valid after Reset.
func (t *Track) Snapshot() []core.MotionSample {
	out := make([]core.MotionSample, len(t.samples))
	copy(out, t.samples)
	return out
}

// Load replaces the track content, used to replay a stored run.
func (t *Track) Load(samples []core.MotionSample) {
	t.samples = append(t.samples[:0], samples...)
}
