package mapping

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsChainedParameter(t *testing.T) {
	tests := []struct {
		resourceType string
		name         string
		want         bool
	}{
		{"Patient", "family", false},
		{"Patient", "family:exact", false},
		{"Patient", "_has:Observation:subject:status", true},
		{"Observation", "subject:Patient.name", true},
		{"Observation", "subject.name", true},
		{"Observation", "patient.family:exact", true},
		{"Encounter", "subject.name", true},
		{"Observation", "valueQuantity.value", false},
		{"Patient", "name.family", false},
		{"Patient", "_profile.name", true},
	}
	for _, tt := range tests {
		t.Run(tt.resourceType+" "+tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsChainedParameter(tt.resourceType, tt.name))
		})
	}
}
