package sim

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/pitlane/kart/internal/dispatcher"
)

var ErrBadScript = errors.New("invalid script")

// ScriptEvent is an input command fired at a simulated time.
type ScriptEvent struct {
	At      float64  `json:"at"`
	Command string   `json:"command"`
	Args    []string `json:"args"`
}

// Script is a recorded input session for headless runs.
type Script struct {
	TickRate float64       `json:"tickRate"`
	Duration float64       `json:"duration"`
	Events   []ScriptEvent `json:"events"`
}

// LoadScript reads a script file. A zero tick rate falls back to
// defaultTickRate.
func LoadScript(path string, defaultTickRate float64) (Script, error) {
	var s Script
	data, err := os.ReadFile(path)
	if err != nil {
		return s, fmt.Errorf("reading script: %w", err)
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("parsing script %s: %w", path, err)
	}
	if s.TickRate == 0 {
		s.TickRate = defaultTickRate
	}
	if !(s.TickRate > 0) {
		return s, fmt.Errorf("%w: tick rate %v", ErrBadScript, s.TickRate)
	}
	if s.Duration < 0 {
		return s, fmt.Errorf("%w: negative duration %v", ErrBadScript, s.Duration)
	}
	return s, nil
}

// Ticks is the number of fixed steps covering the script's duration.
func (s Script) Ticks() int {
	return int(s.Duration*s.TickRate + 0.5)
}

// Step is the fixed time step.
func (s Script) Step() float64 {
	return 1 / s.TickRate
}

// Run steps the engine ticks times with a fixed dt. Before each tick every
// event whose time has come is dispatched, in time order. Dispatch errors
// are logged and the run continues. Run stops early when ctx is done.
func (e *Engine) Run(ctx context.Context, ticks int, dt float64, events []ScriptEvent) error {
	pending := slices.Clone(events)
	slices.SortStableFunc(pending, func(a, b ScriptEvent) int {
		switch {
		case a.At < b.At:
			return -1
		case a.At > b.At:
			return 1
		}
		return 0
	})

	e.logger.Info("run started", "ticks", ticks, "dt", dt, "events", len(pending))
	for i := 0; i < ticks; i++ {
		if err := ctx.Err(); err != nil {
			e.logger.Warn("run interrupted", "tick", i, "error", err)
			return err
		}
		for len(pending) > 0 && pending[0].At <= e.clock+dt*1e-6 {
			ev := pending[0]
			pending = pending[1:]
			_, err := e.dispatcher.Dispatch(dispatcher.Event{
				Command:   ev.Command,
				Args:      ev.Args,
				Timestamp: e.started.Add(time.Duration(ev.At * float64(time.Second))),
			})
			if err != nil {
				e.logger.Error("script event failed", "at", ev.At, "command", ev.Command, "error", err)
			}
		}
		e.Step(dt)
	}
	e.logger.Info("run finished", "ticks", e.ticks, "clock", e.clock, "course", e.session.Course(), "raceDone", e.race.Done())
	return nil
}
