package domain

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadPayload(t *testing.T, name string) RawPayload {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	raw, err := DecodePayload(data)
	require.NoError(t, err)
	return raw
}

func mustDecode(t *testing.T, s string) RawPayload {
	t.Helper()
	raw, err := DecodePayload([]byte(s))
	require.NoError(t, err)
	return raw
}

func TestDecodePayload(t *testing.T) {
	t.Run("keeps number literals", func(t *testing.T) {
		raw := mustDecode(t, `{"a": 12, "b": 12.0}`)
		assert.Equal(t, json.Number("12"), raw["a"])
		assert.Equal(t, json.Number("12.0"), raw["b"])
	})

	t.Run("non-object document", func(t *testing.T) {
		raw, err := DecodePayload([]byte(`[1, 2, 3]`))
		require.NoError(t, err)
		assert.Nil(t, raw)
	})

	t.Run("malformed JSON", func(t *testing.T) {
		_, err := DecodePayload([]byte(`{"features": [`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "decode payload")
	})
}

func TestValidate_Throttled(t *testing.T) {
	t.Run("fixture", func(t *testing.T) {
		out := Validate(loadPayload(t, "api-throttle.json"))
		assert.Equal(t, Throttled, out.Verdict)
		assert.Equal(t, "2099-Jan-01 00:00:00+0000 GMT", out.RetryAt)
	})

	t.Run("throttle wins over a valid series", func(t *testing.T) {
		raw := mustDecode(t, `{
			"message": "Message throttled out",
			"nextAccessTime": "2099-Jan-01 00:00:00+0000 GMT",
			"features": [{"properties": {"timeSeries": [{"time": "2024-01-01T00:00Z", "uvIndex": 1}]}}]
		}`)
		out := Validate(raw)
		assert.Equal(t, Throttled, out.Verdict)
		assert.Nil(t, out.TimeSeries)
	})

	t.Run("missing nextAccessTime", func(t *testing.T) {
		out := Validate(mustDecode(t, `{"message": "Message throttled out"}`))
		assert.Equal(t, Throttled, out.Verdict)
		assert.Empty(t, out.RetryAt)
	})

	t.Run("non-string nextAccessTime", func(t *testing.T) {
		out := Validate(mustDecode(t, `{"message": "Message throttled out", "nextAccessTime": 1700000000}`))
		assert.Equal(t, Throttled, out.Verdict)
		assert.Empty(t, out.RetryAt)
	})

	t.Run("other message is not a throttle", func(t *testing.T) {
		out := Validate(mustDecode(t, `{"message": "Invalid client id or secret"}`))
		assert.Equal(t, Invalid, out.Verdict)
	})
}

func TestValidate_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		reason string
	}{
		{"empty object", `{}`, "features: expected array, got null or missing"},
		{"features null", `{"features": null}`, "features: expected array"},
		{"features wrong type", `{"features": {}}`, "features: expected array, got object"},
		{"features empty", `{"features": []}`, "features: empty array"},
		{"feature not object", `{"features": [1]}`, "features[0]: expected object, got number"},
		{"properties missing", `{"features": [{}]}`, "features[0].properties"},
		{"timeSeries missing", `{"features": [{"properties": {}}]}`, "timeSeries: expected array, got null or missing"},
		{"timeSeries null", `{"features": [{"properties": {"timeSeries": null}}]}`, "timeSeries: expected array"},
		{"timeSeries wrong type", `{"features": [{"properties": {"timeSeries": "soon"}}]}`, "got string"},
		{"timeSeries empty", `{"features": [{"properties": {"timeSeries": []}}]}`, "timeSeries: empty array"},
		{"entry not object", `{"features": [{"properties": {"timeSeries": [{"time": "x"}, true]}}]}`, "timeSeries[1]: expected object, got boolean"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Validate(mustDecode(t, tt.body))
			assert.Equal(t, Invalid, out.Verdict)
			assert.Contains(t, out.Reason, tt.reason)
			assert.Nil(t, out.TimeSeries)
		})
	}

	t.Run("nil payload", func(t *testing.T) {
		out := Validate(nil)
		assert.Equal(t, Invalid, out.Verdict)
		assert.Equal(t, "payload is not a JSON object", out.Reason)
	})
}

func TestValidate_Valid(t *testing.T) {
	out := Validate(loadPayload(t, "success.json"))
	require.Equal(t, Valid, out.Verdict)
	assert.Empty(t, out.Reason)
	require.Len(t, out.TimeSeries, 3)
	assert.Equal(t, "2024-01-01T00:00Z", out.TimeSeries[0]["time"])
	assert.Equal(t, "2024-01-01T02:00Z", out.TimeSeries[2]["time"])
}

func TestVerdict_String(t *testing.T) {
	assert.Equal(t, "valid", Valid.String())
	assert.Equal(t, "throttled", Throttled.String())
	assert.Equal(t, "invalid", Invalid.String())
}
