package sim

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/pitlane/kart/internal/course"
	"github.com/pitlane/kart/internal/geo"
	"github.com/pitlane/kart/pkg/core"
)

// DefaultCheckpointRadius applies to checkpoints generated from a path.
const DefaultCheckpointRadius = 5.0

var ErrNoCheckpoints = errors.New("course has no checkpoints")

// SpawnSpec is a spawn point on the ground plane. Yaw is in degrees around
// the up axis, zero facing +Z.
type SpawnSpec struct {
	Position mgl64.Vec3 `json:"position"`
	Yaw      float64    `json:"yaw"`
}

// Pose converts the spawn to a world pose.
func (s SpawnSpec) Pose() core.Pose {
	return core.Pose{
		Position: s.Position,
		Rotation: mgl64.QuatRotate(mgl64.DegToRad(s.Yaw), core.AxisUp),
	}
}

// CourseSpec describes a course as read from the courses file. Checkpoints
// are given explicitly or as a ground polyline, "[[x,z],...]", whose
// vertices become checkpoints at the spawn height.
type CourseSpec struct {
	Name             string              `json:"name"`
	Spawn            SpawnSpec           `json:"spawn"`
	Checkpoints      []course.Checkpoint `json:"checkpoints,omitempty"`
	Path             json.RawMessage     `json:"path,omitempty"`
	CheckpointRadius float64             `json:"checkpointRadius,omitempty"`
}

// DefaultCourses is the race used when no courses file is configured.
func DefaultCourses() []CourseSpec {
	return []CourseSpec{
		{
			Name:  "Sprint",
			Spawn: SpawnSpec{},
			Checkpoints: []course.Checkpoint{
				{Position: mgl64.Vec3{0, 0, 20}, Radius: 5},
				{Position: mgl64.Vec3{0, 0, 40}, Radius: 5},
			},
		},
		{
			Name:  "Harbor Loop",
			Spawn: SpawnSpec{Position: mgl64.Vec3{100, 0, 0}},
			Path:  json.RawMessage(`[[100,30],[130,60],[100,90],[70,60],[100,30]]`),
		},
	}
}

// LoadCourses reads a JSON array of course specs.
func LoadCourses(path string) ([]CourseSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading courses file: %w", err)
	}
	var specs []CourseSpec
	if err := json.Unmarshal(data, &specs); err != nil {
		return nil, fmt.Errorf("parsing courses file %s: %w", path, err)
	}
	return specs, nil
}

// Build creates the course for the given number of players.
func (s CourseSpec) Build(players int) (*course.Course, error) {
	checkpoints := s.Checkpoints
	if len(s.Path) > 0 {
		line, err := geo.ParsePolyline(string(s.Path))
		if err != nil {
			return nil, fmt.Errorf("course %q path: %w", s.Name, err)
		}
		radius := s.CheckpointRadius
		if radius == 0 {
			radius = DefaultCheckpointRadius
		}
		for _, v := range geo.Vertices(line, s.Spawn.Position.Y()) {
			checkpoints = append(checkpoints, course.Checkpoint{Position: v, Radius: radius})
		}
	}
	if len(checkpoints) == 0 {
		return nil, fmt.Errorf("course %q: %w", s.Name, ErrNoCheckpoints)
	}
	return course.New(s.Name, s.Spawn.Pose(), checkpoints, players)
}

// BuildCourses builds every CourseSpec in order.
func BuildCourses(specs []CourseSpec, players int) ([]*course.Course, error) {
	courses := make([]*course.Course, 0, len(specs))
	for _, s := range specs {
		c, err := s.Build(players)
		if err != nil {
			return nil, err
		}
		courses = append(courses, c)
	}
	return courses, nil
}
