package convert

import (
	"cmp"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/pitlane/kart/internal/model"
	"github.com/pitlane/kart/pkg/core"
)

// SampleToCore converts a GORM GhostSample to a core.MotionSample.
func SampleToCore(s model.GhostSample) core.MotionSample {
	return core.MotionSample{
		Timestamp: s.Timestamp,
		Position:  mgl64.Vec3{s.PosX, s.PosY, s.PosZ},
		Rotation:  mgl64.Quat{W: s.RotW, V: mgl64.Vec3{s.RotX, s.RotY, s.RotZ}},
	}
}

// GhostRunToCore converts a GORM GhostRun to a core.GhostRun. Samples are
// returned in Seq order regardless of how they were loaded.
func GhostRunToCore(r model.GhostRun) (core.GhostRun, error) {
	var tuning map[string]float64
	if len(r.Tuning) > 0 {
		if err := json.Unmarshal(r.Tuning, &tuning); err != nil {
			return core.GhostRun{}, fmt.Errorf("unmarshal tuning for run %s: %w", r.ID, err)
		}
	}

	rows := slices.Clone(r.Samples)
	slices.SortStableFunc(rows, func(a, b model.GhostSample) int {
		return cmp.Compare(a.Seq, b.Seq)
	})

	samples := make([]core.MotionSample, len(rows))
	for i, s := range rows {
		samples[i] = SampleToCore(s)
	}

	return core.GhostRun{
		ID:              r.ID,
		CourseName:      r.CourseName,
		PlayerIndex:     r.PlayerIndex,
		RecordFrequency: r.RecordFrequency,
		StartTime:       r.StartTime,
		Samples:         samples,
		Tuning:          tuning,
	}, nil
}
