package ghost

import (
	"fmt"

	"github.com/pitlane/kart/pkg/core"
)

// Toggle cycles a ghost through Idle -> Recording -> Replaying -> Idle, the
// last step happening when the player finishes the replay.
type Toggle struct {
	ghost    *Ghost
	recorder *Recorder
	player   *Player

	label        string
	interactable bool
	unsubscribe  func()
	loaded       bool

	// OnRunFinished receives a copy of the recorded track once its replay
	// has completed.
	OnRunFinished func(samples []core.MotionSample)
}

func NewToggle(g *Ghost, recorder *Recorder, player *Player) (*Toggle, error) {
	if g == nil || recorder == nil || player == nil {
		return nil, fmt.Errorf("new toggle: %w", ErrNilGhost)
	}
	return &Toggle{
		ghost:        g,
		recorder:     recorder,
		player:       player,
		label:        "Start Recording",
		interactable: true,
	}, nil
}

func (t *Toggle) Label() string { return t.label }
func (t *Toggle) Interactable() bool { return t.interactable }

// Toggle starts a recording when idle and stops it into a replay when
// recording. Presses during a replay are ignored.
func (t *Toggle) Toggle() {
	switch t.ghost.State {
	case StateIdle:
		t.recorder.Start()
		t.label = "Stop Recording"
		t.interactable = true
	case StateRecording:
		t.recorder.Stop()
		t.label = "Replaying..."
		t.interactable = false
		t.unsubscribe = t.player.OnReplayComplete(t.replayComplete)
		t.ghost.BeginReplay()
	case StateReplaying:
	default:
		panic(fmt.Sprintf("ghost: unknown state %v", t.ghost.State))
	}
}

// Replay loads a stored run into the track and replays it. It only works
// while idle and reports whether playback started. Stored runs are not
// reported through OnRunFinished.
func (t *Toggle) Replay(samples []core.MotionSample) bool {
	if t.ghost.State != StateIdle {
		return false
	}
	t.ghost.Track.Load(samples)
	t.loaded = true
	t.label = "Replaying..."
	t.interactable = false
	t.unsubscribe = t.player.OnReplayComplete(t.replayComplete)
	t.ghost.BeginReplay()
	return true
}

func (t *Toggle) replayComplete() {
	loaded := t.loaded
	t.loaded = false
	t.ghost.State = StateIdle
	t.label = "Start Recording"
	t.interactable = true
	if t.unsubscribe != nil {
		t.unsubscribe()
		t.unsubscribe = nil
	}
	if !loaded && t.OnRunFinished != nil {
		t.OnRunFinished(t.ghost.Track.Snapshot())
	}
}
