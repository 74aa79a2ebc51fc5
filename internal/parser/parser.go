// Package parser converts raw command arguments into typed simulation input.
// It performs no side effects.
package parser

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidArgs wraps every argument error returned by the parser.
var ErrInvalidArgs = errors.New("invalid arguments")

// parseIntFromFloat parses a string that may be an integer ("2") or a float
// with no fractional part ("2.00").
func parseIntFromFloat(s string) (int64, error) {
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("parseIntFromFloat: %q is not a valid int64", s)
	}
	return int64(f), nil
}

// parseFlag accepts 0/1 in integer or float form and true/false.
func parseFlag(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	v, err := parseIntFromFloat(s)
	if err != nil {
		return false, err
	}
	switch v {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("parseFlag: %q is not 0 or 1", s)
	}
}

// parseFinite parses a float and rejects NaN and infinities.
func parseFinite(s string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("parseFinite: %q is not finite", s)
	}
	return f, nil
}

// Parser provides pure []string -> input struct conversion.
type Parser struct {
	players int
}

// NewParser creates a parser that accepts player indices in [0, players).
func NewParser(players int) *Parser {
	return &Parser{players: players}
}

func (p *Parser) Players() int { return p.players }

func (p *Parser) parsePlayer(s string) (int, error) {
	v, err := parseIntFromFloat(s)
	if err != nil {
		return 0, fmt.Errorf("%w: player index: %w", ErrInvalidArgs, err)
	}
	if v < 0 || v >= int64(p.players) {
		return 0, fmt.Errorf("%w: player index %d out of range [0, %d)", ErrInvalidArgs, v, p.players)
	}
	return int(v), nil
}

func requireArgs(data []string, n int, what string) error {
	if len(data) < n {
		return fmt.Errorf("%w: %s needs %d args, got %d", ErrInvalidArgs, what, n, len(data))
	}
	return nil
}
