// Package v1 is version 1 of the ghost export file: one run per JSON
// document, samples packed as [t, [x,y,z], [w,x,y,z]] arrays.
package v1

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/pitlane/kart/pkg/core"
)

// Version is the value of the "version" field this package reads and writes.
const Version = 1

// Export is the root JSON structure.
type Export struct {
	Version         int                `json:"version"`
	ID              string             `json:"id"`
	Course          string             `json:"course"`
	Player          int                `json:"player"`
	RecordFrequency float64            `json:"recordFrequency"`
	StartTime       time.Time          `json:"startTime"`
	Duration        float64            `json:"duration"`
	Tuning          map[string]float64 `json:"tuning,omitempty"`
	Samples         []Sample           `json:"samples"`
}

// Sample is one packed MotionSample.
type Sample struct {
	T   float64
	Pos [3]float64
	Rot [4]float64
}

// MarshalJSON writes the sample as [t, [x,y,z], [w,x,y,z]].
func (s Sample) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{s.T, s.Pos, s.Rot})
}

// UnmarshalJSON reads the packed array form.
func (s *Sample) UnmarshalJSON(data []byte) error {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return err
	}
	if len(parts) != 3 {
		return fmt.Errorf("sample has %d fields, want 3", len(parts))
	}
	if err := json.Unmarshal(parts[0], &s.T); err != nil {
		return fmt.Errorf("sample time: %w", err)
	}
	if err := json.Unmarshal(parts[1], &s.Pos); err != nil {
		return fmt.Errorf("sample position: %w", err)
	}
	if err := json.Unmarshal(parts[2], &s.Rot); err != nil {
		return fmt.Errorf("sample rotation: %w", err)
	}
	return nil
}

// FromRun packs a run for export.
func FromRun(run core.GhostRun) Export {
	samples := make([]Sample, len(run.Samples))
	for i, s := range run.Samples {
		samples[i] = Sample{
			T:   s.Timestamp,
			Pos: [3]float64{s.Position.X(), s.Position.Y(), s.Position.Z()},
			Rot: [4]float64{s.Rotation.W, s.Rotation.X(), s.Rotation.Y(), s.Rotation.Z()},
		}
	}
	return Export{
		Version:         Version,
		ID:              run.ID,
		Course:          run.CourseName,
		Player:          run.PlayerIndex,
		RecordFrequency: run.RecordFrequency,
		StartTime:       run.StartTime,
		Duration:        run.Duration(),
		Tuning:          run.Tuning,
		Samples:         samples,
	}
}

// ToRun unpacks an export. Files of another version are rejected.
func (e Export) ToRun() (core.GhostRun, error) {
	if e.Version != Version {
		return core.GhostRun{}, fmt.Errorf("unsupported export version %d", e.Version)
	}
	samples := make([]core.MotionSample, len(e.Samples))
	for i, s := range e.Samples {
		samples[i] = core.MotionSample{
			Timestamp: s.T,
			Position:  mgl64.Vec3(s.Pos),
			Rotation:  mgl64.Quat{W: s.Rot[0], V: mgl64.Vec3{s.Rot[1], s.Rot[2], s.Rot[3]}},
		}
	}
	return core.GhostRun{
		ID:              e.ID,
		CourseName:      e.Course,
		PlayerIndex:     e.Player,
		RecordFrequency: e.RecordFrequency,
		StartTime:       e.StartTime,
		Samples:         samples,
		Tuning:          e.Tuning,
	}, nil
}
