package vehicle

import (
	"math"
	"math/rand"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pitlane/kart/internal/physics"
	"github.com/pitlane/kart/pkg/core"
)

type appliedForce struct {
	vec  mgl64.Vec3
	mode physics.ForceMode
}

// fakeBody records forces instead of integrating them.
type fakeBody struct {
	pos      mgl64.Vec3
	rot      mgl64.Quat
	vel      mgl64.Vec3
	angVel   mgl64.Vec3
	forces   []appliedForce
	torques  []appliedForce
	setPoses int
}

func newFakeBody() *fakeBody {
	return &fakeBody{rot: mgl64.QuatIdent()}
}

func (b *fakeBody) Position() mgl64.Vec3 { return b.pos }
func (b *fakeBody) Rotation() mgl64.Quat { return b.rot }
func (b *fakeBody) Forward() mgl64.Vec3 { return b.rot.Rotate(core.AxisForward) }
func (b *fakeBody) Velocity() mgl64.Vec3 { return b.vel }
func (b *fakeBody) SetVelocity(v mgl64.Vec3) { b.vel = v }
func (b *fakeBody) AngularVelocity() mgl64.Vec3 { return b.angVel }
func (b *fakeBody) SetAngularVelocity(w mgl64.Vec3) { b.angVel = w }

func (b *fakeBody) AddForce(f mgl64.Vec3, m physics.ForceMode) {
	b.forces = append(b.forces, appliedForce{f, m})
}

func (b *fakeBody) AddTorque(t mgl64.Vec3, m physics.ForceMode) {
	b.torques = append(b.torques, appliedForce{t, m})
}

func (b *fakeBody) SetPose(pos mgl64.Vec3, rot mgl64.Quat) {
	b.pos, b.rot = pos, rot
	b.setPoses++
}

func newTestController(t *testing.T, body Body, playerIndex int) *Controller {
	t.Helper()
	c, err := NewController(body, DefaultTuning(), playerIndex)
	require.NoError(t, err)
	return c
}

// =============================================================================
// State transitions
// =============================================================================

func TestStateFor(t *testing.T) {
	tests := []struct {
		accelerate, reverse bool
		want                State
	}{
		{true, true, StateIdle},
		{true, false, StateAccelerating},
		{false, true, StateReversing},
		{false, false, StateIdle},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StateFor(tt.accelerate, tt.reverse), "accelerate=%v reverse=%v", tt.accelerate, tt.reverse)
	}
}

func TestController_StateDependsOnlyOnCurrentFlags(t *testing.T) {
	c := newTestController(t, newFakeBody(), 0)
	rng := rand.New(rand.NewSource(7))

	var accel, reverse bool
	for i := 0; i < 500; i++ {
		pressed := rng.Intn(2) == 1
		if rng.Intn(2) == 0 {
			accel = pressed
			c.OnAccelerateInput(pressed)
		} else {
			reverse = pressed
			c.OnReverseInput(pressed)
		}
		require.Equal(t, StateFor(accel, reverse), c.State(), "step %d", i)
	}
}

func TestController_InputDoesNotApplyForces(t *testing.T) {
	body := newFakeBody()
	c := newTestController(t, body, 0)

	c.OnAccelerateInput(true)
	c.OnSteerInput(1)

	assert.Empty(t, body.forces)
	assert.Empty(t, body.torques)
}

func TestController_SteerIsClamped(t *testing.T) {
	c := newTestController(t, newFakeBody(), 0)

	c.OnSteerInput(3)
	assert.Equal(t, 1.0, c.Steer())
	c.OnSteerInput(-7)
	assert.Equal(t, -1.0, c.Steer())
	c.OnSteerInput(math.NaN())
	assert.Equal(t, 0.0, c.Steer())
}

// =============================================================================
// Force model
// =============================================================================

func TestController_IdleDeceleratesWhileMovingForward(t *testing.T) {
	body := newFakeBody()
	body.vel = mgl64.Vec3{0, 0, 10}
	c := newTestController(t, body, 0)

	c.Update(0.01)

	require.Len(t, body.forces, 1)
	assert.Equal(t, physics.ForceModeAcceleration, body.forces[0].mode)
	// dt * forceScale == 1 at 100 Hz
	assert.True(t, body.forces[0].vec.ApproxEqual(mgl64.Vec3{0, 0, -DefaultTuning().DecelerationRate}), "got %v", body.forces[0].vec)
	assert.InDelta(t, 10, c.ForwardVelocity(), 1e-12)
}

func TestController_IdleCoastsWhenNotMovingForward(t *testing.T) {
	body := newFakeBody()
	body.vel = mgl64.Vec3{0, 0, -5}
	c := newTestController(t, body, 0)

	c.Update(0.01)

	assert.Empty(t, body.forces)
	assert.Equal(t, mgl64.Vec3{0, 0, -5}, body.vel)
}

func TestController_AcceleratingBelowMaxSpeed(t *testing.T) {
	body := newFakeBody()
	c := newTestController(t, body, 0)
	c.OnAccelerateInput(true)

	c.Update(0.02)

	require.Len(t, body.forces, 1)
	want := mgl64.Vec3{0, 0, DefaultTuning().AccelerationForce * 2}
	assert.True(t, body.forces[0].vec.ApproxEqual(want), "got %v", body.forces[0].vec)
}

func TestController_AcceleratingAtMaxSpeedAppliesNoForce(t *testing.T) {
	body := newFakeBody()
	body.vel = mgl64.Vec3{0, 0, DefaultTuning().MaxSpeed}
	c := newTestController(t, body, 0)
	c.OnAccelerateInput(true)

	c.Update(0.01)

	assert.Empty(t, body.forces)
}

func TestController_ReversingBrakesWhileMovingForward(t *testing.T) {
	body := newFakeBody()
	body.vel = mgl64.Vec3{3, 0, 4}
	c := newTestController(t, body, 0)
	c.OnReverseInput(true)

	c.Update(0.01)

	require.Len(t, body.forces, 1)
	brake := DefaultTuning().BrakeForce
	want := mgl64.Vec3{-0.6 * brake, 0, -0.8 * brake}
	assert.True(t, body.forces[0].vec.ApproxEqual(want), "got %v", body.forces[0].vec)
}

func TestController_ReversingPushesBackwardWhenStopped(t *testing.T) {
	body := newFakeBody()
	c := newTestController(t, body, 0)
	c.OnReverseInput(true)

	c.Update(0.01)

	require.Len(t, body.forces, 1)
	want := mgl64.Vec3{0, 0, -DefaultTuning().ReverseForce}
	assert.True(t, body.forces[0].vec.ApproxEqual(want), "got %v", body.forces[0].vec)
}

func TestController_ClampsToMaxSpeed(t *testing.T) {
	body := newFakeBody()
	body.vel = mgl64.Vec3{0, 30, 40}
	c := newTestController(t, body, 0)

	c.Update(0.01)

	assert.InDelta(t, DefaultTuning().MaxSpeed, body.vel.Len(), 1e-9)
	assert.True(t, body.vel.Normalize().ApproxEqual(mgl64.Vec3{0, 0.6, 0.8}))
	assert.InDelta(t, DefaultTuning().MaxSpeed, c.Speed(), 1e-9)
}

func TestController_RestSnap(t *testing.T) {
	body := newFakeBody()
	body.vel = mgl64.Vec3{0.05, 0, -0.05}
	c := newTestController(t, body, 0)

	c.Update(0.01)

	assert.Equal(t, mgl64.Vec3{}, body.vel)
	assert.Equal(t, 0.0, c.Speed())
}

func TestController_SpeedInvariantsHoldForRandomInput(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	maxSpeed := DefaultTuning().MaxSpeed

	for i := 0; i < 1000; i++ {
		body, err := physics.NewRigidBody(1, core.IdentityPose())
		require.NoError(t, err)
		body.SetVelocity(mgl64.Vec3{rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64()}.Mul(rng.Float64() * 80))
		c := newTestController(t, body, 0)
		c.OnAccelerateInput(rng.Intn(2) == 1)
		c.OnReverseInput(rng.Intn(2) == 1)
		c.OnSteerInput(rng.Float64()*2 - 1)

		c.Update(0.001 + rng.Float64()*0.05)

		speed := body.Velocity().Len()
		require.LessOrEqual(t, speed, maxSpeed+1e-9)
		if speed < RestThreshold {
			require.Equal(t, mgl64.Vec3{}, body.Velocity())
		}
	}
}

// =============================================================================
// Steering
// =============================================================================

func TestController_NoSteeringWhileStationary(t *testing.T) {
	body := newFakeBody()
	c := newTestController(t, body, 0)
	c.OnSteerInput(1)

	c.Update(0.01)

	assert.Empty(t, body.torques)
}

func TestController_SteeringAppliesYawTorque(t *testing.T) {
	body := newFakeBody()
	body.vel = mgl64.Vec3{0, 0, 5}
	c := newTestController(t, body, 0)
	c.OnSteerInput(-0.5)

	c.Update(0.01)

	require.Len(t, body.torques, 1)
	assert.Equal(t, physics.ForceModeAcceleration, body.torques[0].mode)
	assert.True(t, body.torques[0].vec.ApproxEqual(mgl64.Vec3{0, -0.5 * DefaultTuning().SteerSpeed, 0}))
}

func TestController_SteeringRespectsCapButAllowsCounterSteer(t *testing.T) {
	body := newFakeBody()
	body.vel = mgl64.Vec3{0, 0, 5}
	body.angVel = mgl64.Vec3{0, DefaultTuning().MaxAngularVelocity, 0}
	c := newTestController(t, body, 0)

	c.OnSteerInput(1)
	c.Update(0.01)
	assert.Empty(t, body.torques, "steering further into the cap must be rejected")

	c.OnSteerInput(-1)
	c.Update(0.01)
	assert.Len(t, body.torques, 1, "counter-steer must be applied at the cap")
}

func TestSteerAllowed(t *testing.T) {
	tests := []struct {
		name    string
		current float64
		torque  float64
		want    bool
	}{
		{"within cap", 0, 1, true},
		{"exactly at cap", 1, 1, true},
		{"past cap same direction", 1.5, 1, false},
		{"past cap negative direction", -1.5, -1, false},
		{"counter-steer at cap", 2, -1, true},
		{"counter-steer from beyond cap", 3, -0.5, true},
		{"counter-steer overshooting past opposite cap", 1, -10, false},
		{"zero torque at rest", 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SteerAllowed(tt.current, tt.torque, 2))
		})
	}
}

func TestSteerAllowed_NeverGrowsMagnitudePastCap(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	const maxAV = 2.5
	for i := 0; i < 5000; i++ {
		current := (rng.Float64()*2 - 1) * 6
		torque := (rng.Float64()*2 - 1) * 4
		next := math.Abs(current + torque)
		if SteerAllowed(current, torque, maxAV) {
			require.True(t, next <= maxAV || next < math.Abs(current), "current=%v torque=%v", current, torque)
		} else {
			require.True(t, next > maxAV && next >= math.Abs(current), "current=%v torque=%v", current, torque)
		}
	}
}

// =============================================================================
// Collision and spawn
// =============================================================================

func TestController_OnCollisionHeadOn(t *testing.T) {
	body := newFakeBody()
	body.vel = mgl64.Vec3{0, 0, 10}
	c := newTestController(t, body, 0)

	// wall facing the kart
	c.OnCollision(mgl64.Vec3{0, 0, -1})

	assert.True(t, body.vel.ApproxEqual(mgl64.Vec3{0, 0, -5}), "got %v", body.vel)
	assert.InDelta(t, 5, body.vel.Len(), 1e-12)
}

func TestController_OnCollisionGlancing(t *testing.T) {
	body := newFakeBody()
	body.vel = mgl64.Vec3{4, 0, 4}
	c := newTestController(t, body, 0)

	// unnormalized normal must behave like its unit vector
	c.OnCollision(mgl64.Vec3{-2, 0, 0})

	assert.True(t, body.vel.ApproxEqual(mgl64.Vec3{-2, 0, 2}), "got %v", body.vel)
}

func TestController_OnCollisionZeroNormalIsNoop(t *testing.T) {
	body := newFakeBody()
	body.vel = mgl64.Vec3{1, 2, 3}
	c := newTestController(t, body, 0)

	c.OnCollision(mgl64.Vec3{})

	assert.Equal(t, mgl64.Vec3{1, 2, 3}, body.vel)
}

func TestReflect(t *testing.T) {
	v := mgl64.Vec3{1, -1, 0}
	n := mgl64.Vec3{0, 1, 0}
	assert.Equal(t, mgl64.Vec3{1, 1, 0}, Reflect(v, n))
	assert.Equal(t, Reflect(v, n), Reflect(v, n.Mul(-1)))
}

func TestController_ResetToSpawn(t *testing.T) {
	spawn := core.Pose{
		Position: mgl64.Vec3{10, 0, 20},
		Rotation: mgl64.QuatRotate(math.Pi/2, core.AxisUp),
	}

	body := newFakeBody()
	body.vel = mgl64.Vec3{5, 0, 5}
	body.angVel = mgl64.Vec3{0, 1, 0}
	c := newTestController(t, body, 0)
	c.OnAccelerateInput(true)
	c.OnReverseInput(true)
	c.OnSteerInput(0.7)

	c.ResetToSpawn(spawn)

	assert.Equal(t, StateIdle, c.State())
	assert.Equal(t, 0.0, c.Steer())
	assert.Equal(t, mgl64.Vec3{}, body.vel)
	assert.Equal(t, mgl64.Vec3{}, body.angVel)
	assert.Equal(t, spawn.Position, body.pos)
	assert.True(t, body.rot.ApproxEqual(spawn.Rotation))

	// flags were cleared: a single release must not leave the other pedal held
	c.OnAccelerateInput(false)
	assert.Equal(t, StateIdle, c.State())
}

func TestController_ResetToSpawnOffsetsSecondPlayer(t *testing.T) {
	spawn := core.Pose{
		Position: mgl64.Vec3{10, 0, 20},
		Rotation: mgl64.QuatRotate(math.Pi/2, core.AxisUp),
	}
	body := newFakeBody()
	c := newTestController(t, body, 1)

	c.ResetToSpawn(spawn)

	// right axis of a +90 degree yaw is -Z
	want := mgl64.Vec3{10, 0, 20 - DefaultTuning().LateralSpawnOffset}
	assert.True(t, body.pos.ApproxEqualThreshold(want, 1e-9), "got %v", body.pos)
}

func TestNewController_Errors(t *testing.T) {
	_, err := NewController(nil, DefaultTuning(), 0)
	require.ErrorIs(t, err, ErrNilBody)

	bad := DefaultTuning()
	bad.BounceFactor = 2
	_, err = NewController(newFakeBody(), bad, 0)
	require.ErrorIs(t, err, ErrInvalidTuning)
}

func TestController_UnknownStatePanics(t *testing.T) {
	c := newTestController(t, newFakeBody(), 0)
	c.state = State(99)
	assert.Panics(t, func() { c.Update(0.01) })
}
