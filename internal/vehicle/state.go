package vehicle

import "fmt"

// State is the controller's drive state.
type State int

const (
	StateIdle State = iota
	StateAccelerating
	StateReversing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAccelerating:
		return "accelerating"
	case StateReversing:
		return "reversing"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// StateFor derives the drive state from the two pedal flags. Pressing both
// pedals cancels out.
func StateFor(acceleratePressed, reversePressed bool) State {
	switch {
	case acceleratePressed && !reversePressed:
		return StateAccelerating
	case reversePressed && !acceleratePressed:
		return StateReversing
	default:
		return StateIdle
	}
}
