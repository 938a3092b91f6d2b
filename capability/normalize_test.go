package capability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected any
	}{
		{"operational string", "operational", float64(1)},
		{"degraded string", "degraded", float64(0)},
		{"empty string", "", float64(0)},
		{"true bool", true, true},
		{"false bool", false, false},
		{"positive number", float64(12), float64(12)},
		{"zero number", float64(0), float64(0)},
		{"negative number", float64(-3), float64(-3)},
		{"nil", nil, float64(0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.input))
		})
	}
}

func TestTruthy(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected bool
	}{
		{"zero", float64(0), false},
		{"false", false, false},
		{"nil", nil, false},
		{"one", float64(1), true},
		{"negative", float64(-1), true},
		{"true", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Truthy(tt.input))
		})
	}
}

func TestParseObservation(t *testing.T) {
	obs, err := ParseObservation(`{"value":"operational","observationTime":"2026-03-01T10:15:00Z"}`)
	require.NoError(t, err)
	assert.Equal(t, float64(1), obs.Value)
	assert.Equal(t, time.Date(2026, 3, 1, 10, 15, 0, 0, time.UTC), obs.ObservationTime)
}

func TestParseObservationNumeric(t *testing.T) {
	obs, err := ParseObservation(`{"value":17,"observationTime":"2026-03-01T10:15:00Z"}`)
	require.NoError(t, err)
	assert.Equal(t, float64(17), obs.Value)
}

func TestParseObservationBadTimestampTolerated(t *testing.T) {
	obs, err := ParseObservation(`{"value":true,"observationTime":"not-a-time"}`)
	require.NoError(t, err)
	assert.Equal(t, true, obs.Value)
	assert.True(t, obs.ObservationTime.IsZero())
}

func TestParseObservationMalformed(t *testing.T) {
	_, err := ParseObservation(`{"value":`)
	require.Error(t, err)
}
