// Package sim runs the kart simulation: input dispatch, vehicle control,
// physics, checkpoint detection, ghost record/replay and race flow, all on a
// single tick goroutine.
package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/pitlane/kart/internal/config"
	"github.com/pitlane/kart/internal/course"
	"github.com/pitlane/kart/internal/dispatcher"
	"github.com/pitlane/kart/internal/ghost"
	"github.com/pitlane/kart/internal/parser"
	"github.com/pitlane/kart/internal/physics"
	"github.com/pitlane/kart/internal/session"
	"github.com/pitlane/kart/internal/storage"
	"github.com/pitlane/kart/internal/telemetry"
	"github.com/pitlane/kart/internal/vehicle"
	"github.com/pitlane/kart/pkg/core"
)

const instrumentationName = "github.com/pitlane/kart/internal/sim"

var (
	ErrNoPlayers     = errors.New("simulation needs at least one player")
	ErrTrackedPlayer = errors.New("tracked player out of range")
	ErrNoStorage     = errors.New("no storage backend configured")
)

// TelemetrySink receives one kinematics sample per player per tick.
type TelemetrySink interface {
	Write(s telemetry.Sample, ts time.Time) error
}

// Dependencies holds everything the engine needs. Storage, Telemetry and
// OnRunPersisted are optional.
type Dependencies struct {
	Vehicle    config.VehicleConfig
	Ghost      config.GhostConfig
	Race       config.RaceConfig
	Courses    []CourseSpec
	Dispatcher *dispatcher.Dispatcher
	Storage    storage.Backend
	Telemetry  TelemetrySink
	Session    *session.Context
	Logger     *slog.Logger
	Meter      metric.Meter

	// OnRunPersisted runs on the storage goroutine after a ghost run is saved.
	OnRunPersisted func(run *core.GhostRun)
}

// Engine owns every simulated object.
type Engine struct {
	deps       Dependencies
	logger     *slog.Logger
	dispatcher *dispatcher.Dispatcher
	parser     *parser.Parser
	session    *session.Context

	bodies      []*physics.RigidBody
	controllers []*vehicle.Controller

	ghost     *ghost.Ghost
	ghostBody *physics.RigidBody
	recorder  *ghost.Recorder
	player    *ghost.Player
	toggle    *ghost.Toggle

	race *course.Manager

	started     time.Time
	clock       float64
	ticks       int
	recordStart time.Time

	telemetryFailures int
	saves             sync.WaitGroup

	tickCounter metric.Int64Counter
	runCounter  metric.Int64Counter
}

// New builds the engine, registers its input commands and loads the first
// course.
func New(deps Dependencies) (*Engine, error) {
	players := deps.Race.Players
	if players < 1 {
		return nil, fmt.Errorf("new engine: %w, got %d", ErrNoPlayers, players)
	}
	if deps.Ghost.TrackedPlayer < 0 || deps.Ghost.TrackedPlayer >= players {
		return nil, fmt.Errorf("new engine: %w: %d", ErrTrackedPlayer, deps.Ghost.TrackedPlayer)
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Session == nil {
		deps.Session = session.NewContext()
	}
	if len(deps.Courses) == 0 {
		deps.Courses = DefaultCourses()
	}

	e := &Engine{
		deps:    deps,
		logger:  deps.Logger.With("component", "sim"),
		parser:  parser.NewParser(players),
		session: deps.Session,
		started: deps.Session.Started(),
	}

	e.dispatcher = deps.Dispatcher
	if e.dispatcher == nil {
		d, err := dispatcher.New(e.logger)
		if err != nil {
			return nil, fmt.Errorf("new engine: %w", err)
		}
		e.dispatcher = d
	}

	if err := e.buildVehicles(players); err != nil {
		return nil, err
	}
	if err := e.buildGhost(); err != nil {
		return nil, err
	}
	if err := e.buildRace(players); err != nil {
		return nil, err
	}
	if err := e.setupMetrics(); err != nil {
		return nil, err
	}

	e.registerHandlers()
	e.race.Start()
	return e, nil
}

func (e *Engine) buildVehicles(players int) error {
	mass := e.deps.Vehicle.Mass
	if mass == 0 {
		mass = 1
	}
	for i := 0; i < players; i++ {
		body, err := physics.NewRigidBody(mass, core.IdentityPose())
		if err != nil {
			return fmt.Errorf("new engine: player %d body: %w", i, err)
		}
		ctrl, err := vehicle.NewController(body, e.deps.Vehicle.Tuning, i)
		if err != nil {
			return fmt.Errorf("new engine: %w", err)
		}
		e.bodies = append(e.bodies, body)
		e.controllers = append(e.controllers, ctrl)
	}
	return nil
}

func (e *Engine) buildGhost() error {
	var err error
	e.ghost = ghost.New(e.deps.Ghost.RecordFrequency)
	e.ghostBody, err = physics.NewRigidBody(1, core.IdentityPose())
	if err != nil {
		return fmt.Errorf("new engine: ghost body: %w", err)
	}
	if e.recorder, err = ghost.NewRecorder(e.ghost, e.bodies[e.deps.Ghost.TrackedPlayer]); err != nil {
		return fmt.Errorf("new engine: %w", err)
	}
	if e.player, err = ghost.NewPlayer(e.ghost, e.ghostBody); err != nil {
		return fmt.Errorf("new engine: %w", err)
	}
	if e.toggle, err = ghost.NewToggle(e.ghost, e.recorder, e.player); err != nil {
		return fmt.Errorf("new engine: %w", err)
	}
	e.toggle.OnRunFinished = e.runFinished
	return nil
}

func (e *Engine) buildRace(players int) error {
	courses, err := BuildCourses(e.deps.Courses, players)
	if err != nil {
		return fmt.Errorf("new engine: %w", err)
	}
	for _, c := range courses {
		name := c.Name
		c.OnCheckpoint = func(player, index int) {
			e.logger.Debug("checkpoint reached", "course", name, "player", player, "checkpoint", index)
		}
	}
	e.race, err = course.NewManager(courses, e.deps.Race.VictoryMessageDuration, e.logger)
	if err != nil {
		return fmt.Errorf("new engine: %w", err)
	}
	e.race.OnLoadCourse = e.loadCourse
	return nil
}

func (e *Engine) setupMetrics() error {
	m := e.deps.Meter
	if m == nil {
		m = otel.Meter(instrumentationName)
	}
	var err error
	e.tickCounter, err = m.Int64Counter("sim.ticks",
		metric.WithDescription("Simulation ticks run"))
	if err != nil {
		return fmt.Errorf("creating tick counter: %w", err)
	}
	e.runCounter, err = m.Int64Counter("sim.ghost.runs",
		metric.WithDescription("Ghost runs handed to storage"))
	if err != nil {
		return fmt.Errorf("creating run counter: %w", err)
	}
	return nil
}

// loadCourse respawns every player at the new course's spawn.
func (e *Engine) loadCourse(c *course.Course) {
	e.session.SetCourse(c.Name)
	for _, ctrl := range e.controllers {
		ctrl.ResetToSpawn(c.Spawn)
	}
}

func (e *Engine) Dispatcher() *dispatcher.Dispatcher  { return e.dispatcher }
func (e *Engine) Controller(i int) *vehicle.Controller { return e.controllers[i] }
func (e *Engine) Body(i int) *physics.RigidBody        { return e.bodies[i] }
func (e *Engine) Ghost() *ghost.Ghost                  { return e.ghost }
func (e *Engine) GhostBody() *physics.RigidBody        { return e.ghostBody }
func (e *Engine) Toggle() *ghost.Toggle                { return e.toggle }
func (e *Engine) Race() *course.Manager                { return e.race }
func (e *Engine) Players() int                         { return len(e.controllers) }

// Clock is the simulated time in seconds.
func (e *Engine) Clock() float64 { return e.clock }

// Ticks is the number of steps run.
func (e *Engine) Ticks() int { return e.ticks }

// Step runs one tick: queued input, then per player the controller, the
// body and checkpoint detection, then the ghost, then the race countdown,
// then telemetry.
func (e *Engine) Step(dt float64) {
	e.dispatcher.Drain()

	for i, ctrl := range e.controllers {
		ctrl.Update(dt)
		e.bodies[i].Integrate(dt)
		// a win earlier in this loop pauses detection for the rest of it
		if e.detecting() {
			e.race.Current().Observe(i, e.bodies[i].Position())
		}
	}

	e.recorder.Update(dt)
	e.player.Update(dt)
	e.race.Update(dt)

	e.clock += dt
	e.ticks++
	e.tickCounter.Add(context.Background(), 1)

	e.writeTelemetry()
}

// detecting reports whether checkpoints count right now. They do not while
// the victory message shows or after the last course.
func (e *Engine) detecting() bool {
	_, showing := e.race.VictoryMessage()
	return !showing && !e.race.Done()
}

func (e *Engine) writeTelemetry() {
	if e.deps.Telemetry == nil {
		return
	}
	ts := e.started.Add(time.Duration(e.clock * float64(time.Second)))
	for i, ctrl := range e.controllers {
		body := e.bodies[i]
		err := e.deps.Telemetry.Write(telemetry.Sample{
			Player:          i,
			State:           ctrl.State().String(),
			Speed:           ctrl.Speed(),
			ForwardVelocity: ctrl.ForwardVelocity(),
			AngularVelocity: body.AngularVelocity().Y(),
			Position:        body.Position(),
		}, ts)
		if err != nil {
			e.telemetryFailures++
			if e.telemetryFailures == 1 {
				e.logger.Warn("telemetry write failed", "error", err)
			}
		}
	}
}

// runFinished hands a finished recording to the storage goroutine.
func (e *Engine) runFinished(samples []core.MotionSample) {
	count := e.session.RunRecorded()
	if len(samples) == 0 {
		e.logger.Info("ghost run has no samples, not saving", "run", count)
		return
	}
	run := &core.GhostRun{
		ID:              uuid.NewString(),
		CourseName:      e.session.Course(),
		PlayerIndex:     e.deps.Ghost.TrackedPlayer,
		RecordFrequency: e.ghost.RecordFrequency,
		StartTime:       e.recordStart,
		Samples:         samples,
		Tuning:          e.deps.Vehicle.Tuning.AsMap(),
	}
	e.runCounter.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("course", run.CourseName)))

	e.saves.Add(1)
	if _, err := e.dispatcher.Dispatch(dispatcher.Event{Command: cmdGhostSave, Payload: run}); err != nil {
		e.saves.Done()
		e.logger.Error("failed to queue ghost run", "run", run.ID, "error", err)
	}
}

// WaitForSaves blocks until every finished run has been handed to storage.
func (e *Engine) WaitForSaves() {
	e.saves.Wait()
}
