package core

import "github.com/go-gl/mathgl/mgl64"

// Axes in body space. Forward is +Z and up is +Y, matching the engine the
// course assets are authored in.
var (
	AxisForward = mgl64.Vec3{0, 0, 1}
	AxisRight   = mgl64.Vec3{1, 0, 0}
	AxisUp      = mgl64.Vec3{0, 1, 0}
)

// Pose is a position plus orientation.
type Pose struct {
	Position mgl64.Vec3 `json:"position"`
	Rotation mgl64.Quat `json:"rotation"`
}

// IdentityPose returns a pose at the origin with no rotation.
func IdentityPose() Pose {
	return Pose{Rotation: mgl64.QuatIdent()}
}

// Forward returns the pose's forward axis in world space.
func (p Pose) Forward() mgl64.Vec3 {
	return p.Rotation.Rotate(AxisForward)
}

// Right returns the pose's right axis in world space.
func (p Pose) Right() mgl64.Vec3 {
	return p.Rotation.Rotate(AxisRight)
}
