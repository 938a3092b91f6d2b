package capability

import (
	"encoding/json"
	"time"

	"github.com/spinalcom/spinal-organ-connector-azur/errors"
)

// Observation is one normalized capability reading. Value is always a
// float64 or a bool after ParseObservation.
type Observation struct {
	Value           any
	ObservationTime time.Time
}

type rawObservation struct {
	Value           any    `json:"value"`
	ObservationTime string `json:"observationTime"`
}

// ParseObservation decodes the JSON-encoded observation payload and applies
// the value coercion rules: the literal string "operational" becomes 1, any
// other string becomes 0, numbers and booleans pass through unchanged.
func ParseObservation(raw string) (Observation, error) {
	var ro rawObservation
	if err := json.Unmarshal([]byte(raw), &ro); err != nil {
		return Observation{}, errors.WrapInvalid(err, "Observation", "ParseObservation", "unmarshal payload")
	}

	obs := Observation{Value: Normalize(ro.Value)}
	if ro.ObservationTime != "" {
		// Timestamp is provenance only; a malformed one does not fail the event
		if ts, err := time.Parse(time.RFC3339, ro.ObservationTime); err == nil {
			obs.ObservationTime = ts
		}
	}

	return obs, nil
}

// Normalize coerces a raw observation value into a numeric or boolean form
func Normalize(v any) any {
	switch val := v.(type) {
	case string:
		if val == "operational" {
			return float64(1)
		}
		return float64(0)
	case bool:
		return val
	case float64:
		return val
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return float64(0)
		}
		return f
	case nil:
		return float64(0)
	default:
		return v
	}
}

// Truthy reports whether a normalized value should be recorded as a
// historical sample. Zero and false are the only falsy values; negative
// numbers are truthy.
func Truthy(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case float64:
		return val != 0
	case nil:
		return false
	default:
		return true
	}
}
