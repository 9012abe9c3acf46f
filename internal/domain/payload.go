package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ThrottleMessage is the literal the API gateway puts in "message" when the
// caller has exceeded its quota.
const ThrottleMessage = "Message throttled out"

// RawPayload is a decoded provider response. Numbers are kept as json.Number
// so integer and decimal literals stay distinguishable. A nil RawPayload means
// the document was valid JSON but not an object.
type RawPayload map[string]any

// ObservationRecord is one entry of the forecast time series.
type ObservationRecord map[string]any

// DecodePayload parses a provider response body.
func DecodePayload(data []byte) (RawPayload, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, nil
	}
	return RawPayload(obj), nil
}

// Verdict is the classification of a provider response.
type Verdict int

const (
	Invalid Verdict = iota
	Valid
	Throttled
)

// String returns the lowercase verdict name used in logs and metric labels.
func (v Verdict) String() string {
	switch v {
	case Valid:
		return "valid"
	case Throttled:
		return "throttled"
	default:
		return "invalid"
	}
}

// Outcome is the result of Validate. Only the fields matching Verdict are set.
type Outcome struct {
	Verdict Verdict

	// RetryAt is the verbatim nextAccessTime of a throttle notice, empty when
	// absent or not a string.
	RetryAt string

	// Reason describes why the payload was rejected.
	Reason string

	// TimeSeries holds the non-empty series of a valid payload.
	TimeSeries []ObservationRecord
}

// Validate classifies a provider response as throttled, invalid or valid.
// The throttle notice is checked first, so a payload carrying both a notice
// and a series is throttled. Validate has no side effects.
func Validate(raw RawPayload) Outcome {
	if raw == nil {
		return invalid("payload is not a JSON object")
	}

	if msg, ok := raw["message"].(string); ok && msg == ThrottleMessage {
		retryAt, _ := raw["nextAccessTime"].(string)
		return Outcome{Verdict: Throttled, RetryAt: retryAt}
	}

	features, ok := raw["features"].([]any)
	if !ok {
		return invalid("features: expected array, got " + describe(raw["features"]))
	}
	if len(features) == 0 {
		return invalid("features: empty array")
	}

	feature, ok := features[0].(map[string]any)
	if !ok {
		return invalid("features[0]: expected object, got " + describe(features[0]))
	}
	props, ok := feature["properties"].(map[string]any)
	if !ok {
		return invalid("features[0].properties: expected object, got " + describe(feature["properties"]))
	}
	series, ok := props["timeSeries"].([]any)
	if !ok {
		return invalid("features[0].properties.timeSeries: expected array, got " + describe(props["timeSeries"]))
	}
	if len(series) == 0 {
		return invalid("features[0].properties.timeSeries: empty array")
	}

	records := make([]ObservationRecord, len(series))
	for i, entry := range series {
		rec, ok := entry.(map[string]any)
		if !ok {
			return invalid(fmt.Sprintf("features[0].properties.timeSeries[%d]: expected object, got %s", i, describe(entry)))
		}
		records[i] = ObservationRecord(rec)
	}

	return Outcome{Verdict: Valid, TimeSeries: records}
}

func invalid(reason string) Outcome {
	return Outcome{Verdict: Invalid, Reason: reason}
}

// describe names the JSON type of a decoded value for diagnostics.
func describe(v any) string {
	switch v.(type) {
	case nil:
		return "null or missing"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	case json.Number, float64:
		return "number"
	default:
		return fmt.Sprintf("%T", v)
	}
}
