package vehicle

import (
	"errors"
	"fmt"
)

// ErrInvalidTuning is returned when a Tuning value is out of range.
var ErrInvalidTuning = errors.New("invalid vehicle tuning")

// Tuning holds the controller's force model constants.
//
// Force magnitudes are authored against a 100 Hz step and multiplied by
// dt * ForceScale each tick.
type Tuning struct {
	MaxSpeed           float64 `json:"maxSpeed" mapstructure:"maxSpeed"`
	AccelerationForce  float64 `json:"accelerationForce" mapstructure:"accelerationForce"`
	DecelerationRate   float64 `json:"decelerationRate" mapstructure:"decelerationRate"`
	BrakeForce         float64 `json:"brakeForce" mapstructure:"brakeForce"`
	ReverseForce       float64 `json:"reverseForce" mapstructure:"reverseForce"`
	SteerSpeed         float64 `json:"steerSpeed" mapstructure:"steerSpeed"`
	MaxAngularVelocity float64 `json:"maxAngularVelocity" mapstructure:"maxAngularVelocity"`
	BounceFactor       float64 `json:"bounceFactor" mapstructure:"bounceFactor"`
	ForceScale         float64 `json:"forceScale" mapstructure:"forceScale"`
	LateralSpawnOffset float64 `json:"lateralSpawnOffset" mapstructure:"lateralSpawnOffset"`
}

// DefaultTuning returns the constants the courses were tuned with.
func DefaultTuning() Tuning {
	return Tuning{
		MaxSpeed:           30,
		AccelerationForce:  12,
		DecelerationRate:   4,
		BrakeForce:         20,
		ReverseForce:       6,
		SteerSpeed:         3,
		MaxAngularVelocity: 2.5,
		BounceFactor:       0.5,
		ForceScale:         100,
		LateralSpawnOffset: 3,
	}
}

// Validate reports the first out-of-range constant.
func (t Tuning) Validate() error {
	switch {
	case t.MaxSpeed <= 0:
		return fmt.Errorf("%w: maxSpeed must be positive, got %v", ErrInvalidTuning, t.MaxSpeed)
	case t.AccelerationForce < 0, t.DecelerationRate < 0, t.BrakeForce < 0, t.ReverseForce < 0:
		return fmt.Errorf("%w: force constants must not be negative", ErrInvalidTuning)
	case t.SteerSpeed < 0:
		return fmt.Errorf("%w: steerSpeed must not be negative, got %v", ErrInvalidTuning, t.SteerSpeed)
	case t.MaxAngularVelocity <= 0:
		return fmt.Errorf("%w: maxAngularVelocity must be positive, got %v", ErrInvalidTuning, t.MaxAngularVelocity)
	case t.BounceFactor < 0 || t.BounceFactor > 1:
		return fmt.Errorf("%w: bounceFactor must be in [0, 1], got %v", ErrInvalidTuning, t.BounceFactor)
	case t.ForceScale <= 0:
		return fmt.Errorf("%w: forceScale must be positive, got %v", ErrInvalidTuning, t.ForceScale)
	}
	return nil
}

// AsMap flattens the tuning for persistence alongside recorded runs.
func (t Tuning) AsMap() map[string]float64 {
	return map[string]float64{
		"maxSpeed":           t.MaxSpeed,
		"accelerationForce":  t.AccelerationForce,
		"decelerationRate":   t.DecelerationRate,
		"brakeForce":         t.BrakeForce,
		"reverseForce":       t.ReverseForce,
		"steerSpeed":         t.SteerSpeed,
		"maxAngularVelocity": t.MaxAngularVelocity,
		"bounceFactor":       t.BounceFactor,
		"forceScale":         t.ForceScale,
		"lateralSpawnOffset": t.LateralSpawnOffset,
	}
}
