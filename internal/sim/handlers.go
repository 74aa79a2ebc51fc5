package sim

import (
	"fmt"
	"time"

	"github.com/pitlane/kart/internal/dispatcher"
	"github.com/pitlane/kart/internal/geo"
	"github.com/pitlane/kart/internal/ghost"
	"github.com/pitlane/kart/pkg/core"
)

// Input and engine commands.
const (
	CmdAccelerate  = ":ACCELERATE:"
	CmdReverse     = ":REVERSE:"
	CmdSteer       = ":STEER:"
	CmdCollide     = ":COLLIDE:"
	CmdReset       = ":RESET:"
	CmdGhostToggle = ":GHOST:TOGGLE:"
	CmdGhostBest   = ":GHOST:BEST:"
	CmdCheckpoint  = ":CHECKPOINT:"

	cmdGhostSave = ":GHOST:SAVE:"
)

// saveBuffer is how many finished runs may wait for storage.
const saveBuffer = 16

// registerHandlers wires input commands as queued handlers so they run on
// the tick goroutine, and run persistence as a buffered one so storage I/O
// never blocks a tick.
func (e *Engine) registerHandlers() {
	d := e.dispatcher

	d.Register(CmdAccelerate, func(ev dispatcher.Event) (any, error) {
		in, err := e.parser.ParsePedal(ev.Args)
		if err != nil {
			return nil, err
		}
		e.controllers[in.Player].OnAccelerateInput(in.Pressed)
		return "ok", nil
	}, dispatcher.Queued())

	d.Register(CmdReverse, func(ev dispatcher.Event) (any, error) {
		in, err := e.parser.ParsePedal(ev.Args)
		if err != nil {
			return nil, err
		}
		e.controllers[in.Player].OnReverseInput(in.Pressed)
		return "ok", nil
	}, dispatcher.Queued())

	d.Register(CmdSteer, func(ev dispatcher.Event) (any, error) {
		in, err := e.parser.ParseSteer(ev.Args)
		if err != nil {
			return nil, err
		}
		e.controllers[in.Player].OnSteerInput(in.Axis)
		return "ok", nil
	}, dispatcher.Queued())

	d.Register(CmdCollide, func(ev dispatcher.Event) (any, error) {
		in, err := e.parser.ParseCollision(ev.Args)
		if err != nil {
			return nil, err
		}
		e.controllers[in.Player].OnCollision(in.Normal)
		return "ok", nil
	}, dispatcher.Queued())

	d.Register(CmdReset, func(ev dispatcher.Event) (any, error) {
		player, err := e.parser.ParsePlayer(ev.Args)
		if err != nil {
			return nil, err
		}
		e.controllers[player].ResetToSpawn(e.race.Current().Spawn)
		return "ok", nil
	}, dispatcher.Queued())

	d.Register(CmdCheckpoint, func(ev dispatcher.Event) (any, error) {
		in, err := e.parser.ParseCheckpoint(ev.Args)
		if err != nil {
			return nil, err
		}
		if !e.detecting() {
			return "paused", nil
		}
		e.race.Current().Reached(in.Player, in.Index)
		return "ok", nil
	}, dispatcher.Queued())

	d.Register(CmdGhostToggle, func(ev dispatcher.Event) (any, error) {
		prev := e.ghost.State
		e.toggle.Toggle()
		if prev == ghost.StateIdle && e.ghost.State == ghost.StateRecording {
			e.recordStart = ev.Timestamp.UTC()
		}
		e.logger.Debug("ghost toggled", "state", e.ghost.State.String(), "label", e.toggle.Label())
		return e.toggle.Label(), nil
	}, dispatcher.Queued())

	d.Register(CmdGhostBest, e.handleGhostBest, dispatcher.Queued())

	d.Register(cmdGhostSave, e.handleGhostSave,
		dispatcher.Buffered(saveBuffer), dispatcher.Blocking(), dispatcher.Logged())
}

// handleGhostBest replays the fastest stored run of the active course.
func (e *Engine) handleGhostBest(ev dispatcher.Event) (any, error) {
	if e.deps.Storage == nil {
		return nil, ErrNoStorage
	}
	name := e.race.Current().Name
	run, err := e.deps.Storage.BestRun(name)
	if err != nil {
		return nil, fmt.Errorf("best run for %s: %w", name, err)
	}
	if !e.toggle.Replay(run.Samples) {
		return "busy", nil
	}
	e.logger.Info("replaying best run", "run", run.ID, "course", name, "duration", run.Duration())
	return run.ID, nil
}

// handleGhostSave runs on the dispatcher's buffer goroutine.
func (e *Engine) handleGhostSave(ev dispatcher.Event) (any, error) {
	defer e.saves.Done()
	run, ok := ev.Payload.(*core.GhostRun)
	if !ok {
		return nil, fmt.Errorf("ghost save: unexpected payload %T", ev.Payload)
	}
	if e.deps.Storage == nil {
		return nil, ErrNoStorage
	}
	if run.StartTime.IsZero() {
		run.StartTime = time.Now().UTC()
	}
	if err := e.deps.Storage.SaveRun(run); err != nil {
		return nil, fmt.Errorf("saving ghost run %s: %w", run.ID, err)
	}

	summary := geo.Summarize(run.Samples)
	e.logger.Info("ghost run saved",
		"run", run.ID,
		"course", run.CourseName,
		"samples", summary.SampleCount,
		"duration", summary.Duration,
		"pathLength", summary.PathLength,
		"meanSpeed", summary.MeanSpeed,
		"maxSpeed", summary.MaxSpeed,
	)
	if e.deps.OnRunPersisted != nil {
		e.deps.OnRunPersisted(run)
	}
	return run.ID, nil
}
