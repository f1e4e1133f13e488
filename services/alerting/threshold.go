package alerting

import "encoding/json"

// Threshold is a configured bound pair for one measurement type. A nil Min
// or Max means that bound is not checked.
type Threshold struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// Thresholds maps a measurement type name to its configured bounds.
type Thresholds map[string]Threshold

// ParseThresholds interprets the raw thresholds mapping stored on a pot.
// The blob is operator-supplied jsonb and may be corrupt; anything that does
// not round-trip into the expected shape yields nil so that a broken pot
// config never blocks measurement ingestion.
func ParseThresholds(raw map[string]any) Thresholds {
	if len(raw) == 0 {
		return nil
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return nil
	}

	var parsed Thresholds
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil
	}
	return parsed
}
