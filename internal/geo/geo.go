// Package geo derives geometry from recorded ghost tracks. Courses are laid
// out on the ground plane, so horizontal measures use the X and Z axes.
package geo

import (
	"github.com/go-gl/mathgl/mgl64"
	geom "github.com/peterstace/simplefeatures/geom"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/pitlane/kart/pkg/core"
)

// GroundLine projects the sample positions onto the ground plane as a
// LineString. Fewer than two samples yield an empty LineString.
func GroundLine(samples []core.MotionSample) geom.LineString {
	if len(samples) < 2 {
		return geom.LineString{}
	}
	coords := make([]float64, 0, len(samples)*2)
	for _, s := range samples {
		coords = append(coords, s.Position.X(), s.Position.Z())
	}
	return geom.NewLineString(geom.NewSequence(coords, geom.DimXY))
}

// PathLength is the horizontal distance travelled along the track.
func PathLength(samples []core.MotionSample) float64 {
	if len(samples) < 2 {
		return 0
	}
	return GroundLine(samples).Length()
}

// SegmentSpeeds returns the 3D speed between consecutive samples. Segments
// with a non-positive time step are skipped.
func SegmentSpeeds(samples []core.MotionSample) []float64 {
	if len(samples) < 2 {
		return nil
	}
	speeds := make([]float64, 0, len(samples)-1)
	for i := 1; i < len(samples); i++ {
		dt := samples[i].Timestamp - samples[i-1].Timestamp
		if dt <= 0 {
			continue
		}
		speeds = append(speeds, distance(samples[i-1].Position, samples[i].Position)/dt)
	}
	return speeds
}

// Summarize computes the RunSummary of a track.
func Summarize(samples []core.MotionSample) core.RunSummary {
	summary := core.RunSummary{SampleCount: len(samples)}
	if len(samples) == 0 {
		return summary
	}
	summary.Duration = samples[len(samples)-1].Timestamp
	summary.PathLength = PathLength(samples)

	speeds := SegmentSpeeds(samples)
	if len(speeds) > 0 {
		summary.MeanSpeed = stat.Mean(speeds, nil)
		summary.MaxSpeed = floats.Max(speeds)
	}
	return summary
}

func distance(a, b mgl64.Vec3) float64 {
	return b.Sub(a).Len()
}
