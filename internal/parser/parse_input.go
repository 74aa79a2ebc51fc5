package parser

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/pitlane/kart/internal/util"
)

// PedalInput is an accelerate or reverse press/release.
type PedalInput struct {
	Player  int
	Pressed bool
}

// SteerInput is a steer axis value for one player.
type SteerInput struct {
	Player int
	Axis   float64
}

// CollisionInput is a contact reported for a player's vehicle.
type CollisionInput struct {
	Player int
	Normal mgl64.Vec3
}

// CheckpointInput reports that a player entered a checkpoint.
type CheckpointInput struct {
	Player int
	Index  int
}

// ParsePedal parses [player, 0|1].
func (p *Parser) ParsePedal(data []string) (PedalInput, error) {
	var in PedalInput
	data = util.CleanArgs(data)
	if err := requireArgs(data, 2, "pedal"); err != nil {
		return in, err
	}

	player, err := p.parsePlayer(data[0])
	if err != nil {
		return in, err
	}
	pressed, err := parseFlag(data[1])
	if err != nil {
		return in, fmt.Errorf("%w: pedal state: %w", ErrInvalidArgs, err)
	}

	in.Player = player
	in.Pressed = pressed
	return in, nil
}

// ParseSteer parses [player, axis]. The axis is not clamped here.
func (p *Parser) ParseSteer(data []string) (SteerInput, error) {
	var in SteerInput
	data = util.CleanArgs(data)
	if err := requireArgs(data, 2, "steer"); err != nil {
		return in, err
	}

	player, err := p.parsePlayer(data[0])
	if err != nil {
		return in, err
	}
	axis, err := parseFinite(data[1])
	if err != nil {
		return in, fmt.Errorf("%w: steer axis: %w", ErrInvalidArgs, err)
	}

	in.Player = player
	in.Axis = axis
	return in, nil
}

// ParseCollision parses [player, nx, ny, nz] or [player, "[nx,ny,nz]"].
func (p *Parser) ParseCollision(data []string) (CollisionInput, error) {
	var in CollisionInput
	data = util.CleanArgs(data)
	if err := requireArgs(data, 2, "collision"); err != nil {
		return in, err
	}

	player, err := p.parsePlayer(data[0])
	if err != nil {
		return in, err
	}

	parts := data[1:]
	if len(parts) == 1 {
		parts = util.SplitArray(parts[0])
	}
	normal, err := parseVec3(parts)
	if err != nil {
		return in, fmt.Errorf("%w: contact normal: %w", ErrInvalidArgs, err)
	}

	in.Player = player
	in.Normal = normal
	return in, nil
}

// ParsePlayer parses [player].
func (p *Parser) ParsePlayer(data []string) (int, error) {
	data = util.CleanArgs(data)
	if err := requireArgs(data, 1, "player"); err != nil {
		return 0, err
	}
	return p.parsePlayer(data[0])
}

// ParseCheckpoint parses [player, checkpointIndex].
func (p *Parser) ParseCheckpoint(data []string) (CheckpointInput, error) {
	var in CheckpointInput
	data = util.CleanArgs(data)
	if err := requireArgs(data, 2, "checkpoint"); err != nil {
		return in, err
	}

	player, err := p.parsePlayer(data[0])
	if err != nil {
		return in, err
	}
	index, err := parseIntFromFloat(data[1])
	if err != nil {
		return in, fmt.Errorf("%w: checkpoint index: %w", ErrInvalidArgs, err)
	}
	if index < 0 {
		return in, fmt.Errorf("%w: negative checkpoint index %d", ErrInvalidArgs, index)
	}

	in.Player = player
	in.Index = int(index)
	return in, nil
}

func parseVec3(parts []string) (mgl64.Vec3, error) {
	var v mgl64.Vec3
	if len(parts) != 3 {
		return v, fmt.Errorf("expected 3 components, got %d", len(parts))
	}
	for i, s := range parts {
		f, err := parseFinite(s)
		if err != nil {
			return v, err
		}
		v[i] = f
	}
	return v, nil
}
