package timeseries

import (
	"context"
	"sync"
	"time"
)

// MemoryRecorder keeps samples in memory for tests and local runs
type MemoryRecorder struct {
	mu      sync.Mutex
	samples map[string][]Sample
}

// NewMemoryRecorder creates an empty recorder
func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{samples: make(map[string][]Sample)}
}

// Append records one sample for the endpoint
func (r *MemoryRecorder) Append(_ context.Context, endpointID string, value any, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if at.IsZero() {
		at = time.Now().UTC()
	}
	r.samples[endpointID] = append(r.samples[endpointID], Sample{
		EndpointID: endpointID,
		Value:      value,
		Timestamp:  at,
	})
	return nil
}

// Samples returns the recorded history for an endpoint
func (r *MemoryRecorder) Samples(endpointID string) []Sample {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Sample(nil), r.samples[endpointID]...)
}
