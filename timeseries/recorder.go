// Package timeseries records historical endpoint samples. Samples are
// published to a retention-bounded JetStream stream, one subject per
// endpoint, so history survives connector restarts without an external
// database.
package timeseries

import (
	"context"
	"time"
)

// Sample is one historical endpoint reading
type Sample struct {
	EndpointID string    `json:"endpointId"`
	Value      any       `json:"value"`
	Timestamp  time.Time `json:"timestamp"`
}

// Recorder appends samples to an endpoint's history
type Recorder interface {
	// Append records one sample for the endpoint. The caller decides
	// whether a value is worth recording; Append stores unconditionally.
	Append(ctx context.Context, endpointID string, value any, at time.Time) error
}
