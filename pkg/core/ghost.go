// Package core holds the domain types shared by the simulation, storage and
// transport packages.
package core

import (
	"time"

	"github.com/go-gl/mathgl/mgl64"
)

// MotionSample is one recorded transform. Timestamp is seconds since the
// recording session started.
type MotionSample struct {
	Timestamp float64    `json:"t"`
	Position  mgl64.Vec3 `json:"position"`
	Rotation  mgl64.Quat `json:"rotation"`
}

// Pose returns the sample's transform.
func (s MotionSample) Pose() Pose {
	return Pose{Position: s.Position, Rotation: s.Rotation}
}

// GhostRun is a finished recording session as it is persisted.
type GhostRun struct {
	ID              string             `json:"id"`
	CourseName      string             `json:"course"`
	PlayerIndex     int                `json:"player"`
	RecordFrequency float64            `json:"recordFrequency"`
	StartTime       time.Time          `json:"startTime"`
	Samples         []MotionSample     `json:"samples"`
	Tuning          map[string]float64 `json:"tuning,omitempty"`
}

// Duration returns the timestamp of the final sample, or 0 for an empty run.
func (r *GhostRun) Duration() float64 {
	if len(r.Samples) == 0 {
		return 0
	}
	return r.Samples[len(r.Samples)-1].Timestamp
}

// RunSummary holds figures derived from a run's samples.
type RunSummary struct {
	SampleCount int     `json:"sampleCount"`
	Duration    float64 `json:"duration"`
	PathLength  float64 `json:"pathLength"`
	MeanSpeed   float64 `json:"meanSpeed"`
	MaxSpeed    float64 `json:"maxSpeed"`
}

// UploadMetadata is the form data sent alongside an uploaded ghost file.
type UploadMetadata struct {
	RunID      string
	CourseName string
	Duration   float64
}
