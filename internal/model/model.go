// Package model holds the gorm table structs for persisted ghost runs.
package model

import (
	"time"

	"gorm.io/datatypes"
)

// DatabaseModels is every table the schema migration creates, in dependency
// order.
var DatabaseModels = []interface{}{
	&GhostRun{},
	&GhostSample{},
}

// GhostRun is one finished recording session.
type GhostRun struct {
	ID              string    `json:"id" gorm:"primaryKey;size:36"`
	CreatedAt       time.Time `json:"createdAt" gorm:"autoCreateTime"`
	CourseName      string    `json:"courseName" gorm:"size:128;index:idx_course_duration,priority:1"`
	PlayerIndex     int       `json:"playerIndex"`
	RecordFrequency float64   `json:"recordFrequency"`
	StartTime       time.Time `json:"startTime" gorm:"type:timestamptz;"`
	Duration        float64   `json:"duration" gorm:"index:idx_course_duration,priority:2"`
	SampleCount     int       `json:"sampleCount"`
	PathLength      float64   `json:"pathLength"`
	// Tuning is the vehicle tuning the run was driven with.
	Tuning  datatypes.JSON `json:"tuning"`
	Samples []GhostSample  `json:"samples" gorm:"foreignKey:RunID;constraint:OnDelete:CASCADE"`
}

func (*GhostRun) TableName() string {
	return "ghost_runs"
}

// GhostSample is one recorded transform of a run. Seq preserves insertion
// order.
type GhostSample struct {
	ID        uint    `json:"id" gorm:"primaryKey;autoIncrement"`
	RunID     string  `json:"runId" gorm:"size:36;index:idx_run_seq,priority:1"`
	Seq       int     `json:"seq" gorm:"index:idx_run_seq,priority:2"`
	Timestamp float64 `json:"timestamp"`
	PosX      float64 `json:"posX"`
	PosY      float64 `json:"posY"`
	PosZ      float64 `json:"posZ"`
	RotW      float64 `json:"rotW"`
	RotX      float64 `json:"rotX"`
	RotY      float64 `json:"rotY"`
	RotZ      float64 `json:"rotZ"`
}

func (*GhostSample) TableName() string {
	return "ghost_samples"
}
