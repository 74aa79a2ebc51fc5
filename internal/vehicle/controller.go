// Package vehicle turns pedal and steering input into forces on a physical
// body. Input callbacks only record state; forces are applied by Update once
// per simulation tick.
package vehicle

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/pitlane/kart/internal/physics"
	"github.com/pitlane/kart/pkg/core"
)

// RestThreshold is the speed below which velocity snaps to zero and steering
// is ignored.
const RestThreshold = 0.1

// ErrNilBody is returned when a controller is created without a body.
var ErrNilBody = errors.New("vehicle body is nil")

// Body is the physical body a Controller drives.
type Body interface {
	Position() mgl64.Vec3
	Rotation() mgl64.Quat
	Forward() mgl64.Vec3
	Velocity() mgl64.Vec3
	SetVelocity(v mgl64.Vec3)
	AngularVelocity() mgl64.Vec3
	SetAngularVelocity(w mgl64.Vec3)
	AddForce(f mgl64.Vec3, mode physics.ForceMode)
	AddTorque(t mgl64.Vec3, mode physics.ForceMode)
	SetPose(pos mgl64.Vec3, rot mgl64.Quat)
}

// Controller is the per-player drive state machine.
type Controller struct {
	body        Body
	tuning      Tuning
	playerIndex int

	acceleratePressed bool
	reversePressed    bool
	steer             float64
	state             State

	forwardVelocity float64
	speed           float64
}

// NewController creates a controller for the given player. A nil body or
// invalid tuning is a configuration error.
func NewController(body Body, tuning Tuning, playerIndex int) (*Controller, error) {
	if body == nil {
		return nil, fmt.Errorf("new controller for player %d: %w", playerIndex, ErrNilBody)
	}
	if err := tuning.Validate(); err != nil {
		return nil, fmt.Errorf("new controller for player %d: %w", playerIndex, err)
	}
	return &Controller{
		body:        body,
		tuning:      tuning,
		playerIndex: playerIndex,
		state:       StateIdle,
	}, nil
}

func (c *Controller) State() State { return c.state }
func (c *Controller) Steer() float64 { return c.steer }
func (c *Controller) PlayerIndex() int { return c.playerIndex }
func (c *Controller) Tuning() Tuning { return c.tuning }
func (c *Controller) Body() Body { return c.body }

// ForwardVelocity is the velocity projected on the body's forward axis, as of
// the last Update.
func (c *Controller) ForwardVelocity() float64 { return c.forwardVelocity }

// Speed is the body's velocity magnitude after the last Update's clamp and
// rest snap.
func (c *Controller) Speed() float64 { return c.speed }

// OnAccelerateInput records an accelerate press or release.
func (c *Controller) OnAccelerateInput(pressed bool) {
	c.acceleratePressed = pressed
	c.state = StateFor(c.acceleratePressed, c.reversePressed)
}

// OnReverseInput records a reverse press or release.
func (c *Controller) OnReverseInput(pressed bool) {
	c.reversePressed = pressed
	c.state = StateFor(c.acceleratePressed, c.reversePressed)
}

// OnSteerInput stores the steer axis, clamped to [-1, 1]. It is applied on
// the next Update.
func (c *Controller) OnSteerInput(axis float64) {
	if math.IsNaN(axis) {
		axis = 0
	}
	c.steer = mgl64.Clamp(axis, -1, 1)
}

// Update applies one tick of drive forces, the speed clamp, the rest snap and
// steering torque.
func (c *Controller) Update(dt float64) {
	forward := c.body.Forward()
	velocity := c.body.Velocity()
	c.forwardVelocity = velocity.Dot(forward)
	speed := velocity.Len()
	scale := dt * c.tuning.ForceScale

	switch c.state {
	case StateIdle:
		if c.forwardVelocity > 0 {
			c.push(velocity.Mul(-1/speed), c.tuning.DecelerationRate*scale)
		}
	case StateAccelerating:
		if speed < c.tuning.MaxSpeed {
			c.push(forward, c.tuning.AccelerationForce*scale)
		}
	case StateReversing:
		if c.forwardVelocity > 0 {
			c.push(velocity.Mul(-1/speed), c.tuning.BrakeForce*scale)
		} else {
			c.push(forward.Mul(-1), c.tuning.ReverseForce*scale)
		}
	default:
		panic(fmt.Sprintf("vehicle: unknown state %v", c.state))
	}

	if speed > c.tuning.MaxSpeed {
		velocity = velocity.Mul(c.tuning.MaxSpeed / speed)
		speed = c.tuning.MaxSpeed
		c.body.SetVelocity(velocity)
	}
	if speed < RestThreshold {
		speed = 0
		c.body.SetVelocity(mgl64.Vec3{})
	}
	c.speed = speed

	if c.steer != 0 && c.speed >= RestThreshold {
		torque := c.steer * c.tuning.SteerSpeed
		if SteerAllowed(c.body.AngularVelocity().Y(), torque, c.tuning.MaxAngularVelocity) {
			c.body.AddTorque(core.AxisUp.Mul(torque), physics.ForceModeAcceleration)
		}
	}
}

func (c *Controller) push(dir mgl64.Vec3, magnitude float64) {
	if magnitude == 0 {
		return
	}
	c.body.AddForce(dir.Mul(magnitude), physics.ForceModeAcceleration)
}

// SteerAllowed decides whether a yaw torque may be applied given the current
// yaw rate. Torque that keeps the rate within the cap is allowed, and so is
// torque that brings the rate closer to zero, so counter-steer works at the
// cap. Counter-steer that would overshoot past the opposite cap, leaving a
// larger magnitude than before (current 1, torque -10), is rejected.
func SteerAllowed(current, torque, maxAngularVelocity float64) bool {
	next := current + torque
	if math.Abs(next) <= maxAngularVelocity {
		return true
	}
	return math.Abs(next) < math.Abs(current)
}

// OnCollision reflects the velocity off the contact surface and scales it by
// the bounce factor.
func (c *Controller) OnCollision(contactNormal mgl64.Vec3) {
	n := contactNormal.Len()
	if n == 0 {
		return
	}
	c.body.SetVelocity(Reflect(c.body.Velocity(), contactNormal.Mul(-1/n)).Mul(c.tuning.BounceFactor))
}

// Reflect mirrors v about the plane with unit normal n.
func Reflect(v, n mgl64.Vec3) mgl64.Vec3 {
	return v.Sub(n.Mul(2 * v.Dot(n)))
}

// ResetToSpawn stops the vehicle, clears input and moves it to the spawn
// pose. Players after the first are offset along the spawn's right axis so
// shared spawns do not overlap.
func (c *Controller) ResetToSpawn(spawn core.Pose) {
	c.acceleratePressed = false
	c.reversePressed = false
	c.steer = 0
	c.state = StateIdle
	c.forwardVelocity = 0
	c.speed = 0

	rot := spawn.Rotation.Normalize()
	pos := spawn.Position
	if c.playerIndex > 0 {
		right := rot.Rotate(core.AxisRight)
		pos = pos.Add(right.Mul(c.tuning.LateralSpawnOffset * float64(c.playerIndex)))
	}

	c.body.SetVelocity(mgl64.Vec3{})
	c.body.SetAngularVelocity(mgl64.Vec3{})
	c.body.SetPose(pos, rot)
}
