package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTableNames(t *testing.T) {
	tests := []struct {
		name     string
		model    interface{ TableName() string }
		expected string
	}{
		{"GhostRun", &GhostRun{}, "ghost_runs"},
		{"GhostSample", &GhostSample{}, "ghost_samples"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.model.TableName())
		})
	}
}

func TestDatabaseModelsOrder(t *testing.T) {
	assert.Len(t, DatabaseModels, 2)
	assert.IsType(t, &GhostRun{}, DatabaseModels[0])
	assert.IsType(t, &GhostSample{}, DatabaseModels[1])
}
