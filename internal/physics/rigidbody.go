package physics

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/pitlane/kart/pkg/core"
)

// ErrInvalidMass is returned when a body is created with a non-positive mass.
var ErrInvalidMass = errors.New("mass must be positive")

// RigidBody is a semi-implicit Euler integrator for a single body. Forces and
// torques added during a tick are accumulated and applied by Integrate.
type RigidBody struct {
	mass float64

	position        mgl64.Vec3
	rotation        mgl64.Quat
	velocity        mgl64.Vec3
	angularVelocity mgl64.Vec3

	// accumulated per tick, already converted to accelerations
	linearAccel  mgl64.Vec3
	angularAccel mgl64.Vec3
}

// NewRigidBody creates a body at the given pose.
func NewRigidBody(mass float64, pose core.Pose) (*RigidBody, error) {
	if mass <= 0 {
		return nil, fmt.Errorf("new rigid body: %w", ErrInvalidMass)
	}
	rot := pose.Rotation
	if rot.Len() == 0 {
		rot = mgl64.QuatIdent()
	}
	return &RigidBody{
		mass:     mass,
		position: pose.Position,
		rotation: rot.Normalize(),
	}, nil
}

func (b *RigidBody) Mass() float64 { return b.mass }
func (b *RigidBody) Position() mgl64.Vec3 { return b.position }
func (b *RigidBody) Rotation() mgl64.Quat { return b.rotation }
func (b *RigidBody) Velocity() mgl64.Vec3 { return b.velocity }
func (b *RigidBody) AngularVelocity() mgl64.Vec3 { return b.angularVelocity }
func (b *RigidBody) SetVelocity(v mgl64.Vec3) { b.velocity = v }
func (b *RigidBody) SetAngularVelocity(w mgl64.Vec3) { b.angularVelocity = w }

// Forward returns the body's +Z axis in world space.
func (b *RigidBody) Forward() mgl64.Vec3 {
	return b.rotation.Rotate(core.AxisForward)
}

// SetPose teleports the body and discards any accumulated forces.
func (b *RigidBody) SetPose(pos mgl64.Vec3, rot mgl64.Quat) {
	b.position = pos
	b.rotation = rot.Normalize()
	b.linearAccel = mgl64.Vec3{}
	b.angularAccel = mgl64.Vec3{}
}

// AddForce applies f according to mode. Impulse and velocity change modes
// take effect immediately; the others are applied on the next Integrate.
func (b *RigidBody) AddForce(f mgl64.Vec3, mode ForceMode) {
	switch mode {
	case ForceModeForce:
		b.linearAccel = b.linearAccel.Add(f.Mul(1 / b.mass))
	case ForceModeAcceleration:
		b.linearAccel = b.linearAccel.Add(f)
	case ForceModeImpulse:
		b.velocity = b.velocity.Add(f.Mul(1 / b.mass))
	case ForceModeVelocityChange:
		b.velocity = b.velocity.Add(f)
	default:
		panic(fmt.Sprintf("physics: unknown force mode %v", mode))
	}
}

// AddTorque applies t according to mode. The body is treated as having unit
// moment of inertia per unit mass.
func (b *RigidBody) AddTorque(t mgl64.Vec3, mode ForceMode) {
	switch mode {
	case ForceModeForce:
		b.angularAccel = b.angularAccel.Add(t.Mul(1 / b.mass))
	case ForceModeAcceleration:
		b.angularAccel = b.angularAccel.Add(t)
	case ForceModeImpulse:
		b.angularVelocity = b.angularVelocity.Add(t.Mul(1 / b.mass))
	case ForceModeVelocityChange:
		b.angularVelocity = b.angularVelocity.Add(t)
	default:
		panic(fmt.Sprintf("physics: unknown force mode %v", mode))
	}
}

// Integrate advances the body by dt seconds and clears the accumulators.
func (b *RigidBody) Integrate(dt float64) {
	if dt <= 0 {
		return
	}

	b.velocity = b.velocity.Add(b.linearAccel.Mul(dt))
	b.angularVelocity = b.angularVelocity.Add(b.angularAccel.Mul(dt))
	b.linearAccel = mgl64.Vec3{}
	b.angularAccel = mgl64.Vec3{}

	b.position = b.position.Add(b.velocity.Mul(dt))

	if w := b.angularVelocity.Len(); w > 0 {
		step := mgl64.QuatRotate(w*dt, b.angularVelocity.Mul(1/w))
		b.rotation = step.Mul(b.rotation).Normalize()
	}
}
