// Package physics provides the force-mode convention shared by the vehicle
// controller and the body it drives, plus a small rigid body integrator used
// when the simulation runs without a host engine.
package physics

import "fmt"

// ForceMode selects how a force or torque vector is interpreted.
type ForceMode int

const (
	// ForceModeForce is a continuous force, divided by mass and scaled by dt.
	ForceModeForce ForceMode = iota
	// ForceModeAcceleration is a continuous acceleration, independent of mass and scaled by dt.
	ForceModeAcceleration
	// ForceModeImpulse is an instant change in momentum, divided by mass.
	ForceModeImpulse
	// ForceModeVelocityChange is an instant change in velocity, independent of mass.
	ForceModeVelocityChange
)

func (m ForceMode) String() string {
	switch m {
	case ForceModeForce:
		return "force"
	case ForceModeAcceleration:
		return "acceleration"
	case ForceModeImpulse:
		return "impulse"
	case ForceModeVelocityChange:
		return "velocity_change"
	default:
		return fmt.Sprintf("ForceMode(%d)", int(m))
	}
}
