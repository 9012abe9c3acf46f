package domain

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// MeasurementName is both the measurement and the "name" tag of every point.
const MeasurementName = "met_weather"

const timeField = "time"

// observationTimeLayouts are tried in order when parsing a record's time.
var observationTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04Z07:00",
}

// MeasurementPoint is one timestamped set of fields destined for the sink.
// Fields never contain the "time" key or nested values.
type MeasurementPoint struct {
	Name      string            `json:"measurement"`
	Tags      map[string]string `json:"tags"`
	Timestamp time.Time         `json:"time"`
	Fields    map[string]any    `json:"fields"`
}

// Batch is an ordered set of points written in one sink call.
type Batch []MeasurementPoint

// WithFields splits off points that have no fields, which the sink cannot
// store, and returns the rest in order along with the number dropped.
func (b Batch) WithFields() (Batch, int) {
	kept := make(Batch, 0, len(b))
	for _, p := range b {
		if len(p.Fields) > 0 {
			kept = append(kept, p)
		}
	}
	return kept, len(b) - len(kept)
}

// Normalize converts a validated time series into a batch, one point per
// record, in the same order. Integer values are widened to float64, other
// scalars are kept as they are, and nulls and nested values are dropped.
// The input records are not modified.
//
// A record without a readable time keeps a zero Timestamp; the sink then
// stamps the point with its own clock.
func Normalize(series []ObservationRecord) Batch {
	batch := make(Batch, 0, len(series))
	for _, rec := range series {
		batch = append(batch, normalizeRecord(rec))
	}
	return batch
}

func normalizeRecord(rec ObservationRecord) MeasurementPoint {
	p := MeasurementPoint{
		Name:   MeasurementName,
		Tags:   map[string]string{"name": MeasurementName},
		Fields: make(map[string]any, len(rec)),
	}

	for k, v := range rec {
		if k == timeField {
			if s, ok := v.(string); ok {
				p.Timestamp = parseObservationTime(s)
			}
			continue
		}
		if f, ok := normalizeField(v); ok {
			p.Fields[k] = f
		}
	}
	return p
}

// normalizeField returns the sink representation of a scalar value and false
// for values that cannot be stored as a field.
func normalizeField(v any) (any, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := strconv.ParseFloat(n.String(), 64)
		if err != nil {
			return nil, false
		}
		return f, true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64, string, bool:
		return n, true
	default:
		return nil, false
	}
}

func parseObservationTime(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range observationTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
