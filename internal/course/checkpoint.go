// Package course tracks checkpoint progress on a course and rotates through
// the courses of a race.
package course

import "github.com/go-gl/mathgl/mgl64"

// Checkpoint is a spherical trigger volume.
type Checkpoint struct {
	Index    int        `json:"index"`
	Position mgl64.Vec3 `json:"position"`
	Radius   float64    `json:"radius"`
}

// Contains reports whether p is inside the trigger volume.
func (c Checkpoint) Contains(p mgl64.Vec3) bool {
	return p.Sub(c.Position).Len() <= c.Radius
}
