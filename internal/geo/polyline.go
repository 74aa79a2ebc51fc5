package geo

import (
	"encoding/json"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	geom "github.com/peterstace/simplefeatures/geom"
)

// ParsePolyline parses a JSON array of ground-plane coordinates into a
// geom.LineString.
// Input format: "[[x1,z1],[x2,z2],...]"
func ParsePolyline(input string) (geom.LineString, error) {
	var coords [][]float64
	if err := json.Unmarshal([]byte(input), &coords); err != nil {
		return geom.LineString{}, fmt.Errorf("failed to parse polyline JSON: %w", err)
	}

	if len(coords) < 2 {
		return geom.LineString{}, fmt.Errorf("polyline must have at least 2 points, got %d", len(coords))
	}

	flatCoords := make([]float64, 0, len(coords)*2)
	for i, coord := range coords {
		if len(coord) < 2 {
			return geom.LineString{}, fmt.Errorf("coordinate %d has insufficient values", i)
		}
		flatCoords = append(flatCoords, coord[0], coord[1])
	}

	return geom.NewLineString(geom.NewSequence(flatCoords, geom.DimXY)), nil
}

// Vertices lifts the LineString's vertices back into world space at height y.
func Vertices(ls geom.LineString, y float64) []mgl64.Vec3 {
	seq := ls.Coordinates()
	out := make([]mgl64.Vec3, seq.Length())
	for i := range out {
		xy := seq.GetXY(i)
		out[i] = mgl64.Vec3{xy.X, y, xy.Y}
	}
	return out
}
