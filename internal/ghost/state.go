// Package ghost records a vehicle's transform over time and replays it on
// another transform with interpolation.
package ghost

import "fmt"

// State is the shared record/replay state of a Ghost.
type State int

const (
	StateIdle State = iota
	StateRecording
	StateReplaying
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateReplaying:
		return "replaying"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Ghost is the resource shared by one Recorder and any number of Players.
// All access happens on the simulation goroutine.
type Ghost struct {
	State           State
	RecordFrequency float64
	Track           *Track

	session int
}

// New returns an idle ghost with an empty track.
func New(recordFrequency float64) *Ghost {
	return &Ghost{
		State:           StateIdle,
		RecordFrequency: recordFrequency,
		Track:           NewTrack(),
	}
}

// BeginReplay switches the ghost to Replaying and starts a new replay
// session. Players restart from time zero on their next Update even if they
// never saw the ghost leave the previous session.
func (g *Ghost) BeginReplay() {
	g.State = StateReplaying
	g.session++
}
