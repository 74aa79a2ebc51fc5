// Package convert maps ghost runs between core types and gorm models.
package convert

import (
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"

	"github.com/pitlane/kart/internal/model"
	"github.com/pitlane/kart/pkg/core"
)

// tuningToJSON converts the tuning snapshot to a JSON column value.
func tuningToJSON(tuning map[string]float64) (datatypes.JSON, error) {
	if len(tuning) == 0 {
		return datatypes.JSON("{}"), nil
	}
	data, err := json.Marshal(tuning)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(data), nil
}

// CoreToSample converts a core.MotionSample to a GORM model.GhostSample.
func CoreToSample(runID string, seq int, s core.MotionSample) model.GhostSample {
	return model.GhostSample{
		RunID:     runID,
		Seq:       seq,
		Timestamp: s.Timestamp,
		PosX:      s.Position.X(),
		PosY:      s.Position.Y(),
		PosZ:      s.Position.Z(),
		RotW:      s.Rotation.W,
		RotX:      s.Rotation.X(),
		RotY:      s.Rotation.Y(),
		RotZ:      s.Rotation.Z(),
	}
}

// CoreToGhostRun converts a core.GhostRun to a GORM model.GhostRun with its
// samples numbered in track order.
func CoreToGhostRun(r core.GhostRun) (model.GhostRun, error) {
	tuning, err := tuningToJSON(r.Tuning)
	if err != nil {
		return model.GhostRun{}, fmt.Errorf("marshal tuning for run %s: %w", r.ID, err)
	}

	samples := make([]model.GhostSample, len(r.Samples))
	for i, s := range r.Samples {
		samples[i] = CoreToSample(r.ID, i, s)
	}

	return model.GhostRun{
		ID:              r.ID,
		CourseName:      r.CourseName,
		PlayerIndex:     r.PlayerIndex,
		RecordFrequency: r.RecordFrequency,
		StartTime:       r.StartTime,
		Duration:        r.Duration(),
		SampleCount:     len(r.Samples),
		Tuning:          tuning,
		Samples:         samples,
	}, nil
}
