package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testClock = clockwork.NewFakeClockAt(time.Date(2098, time.December, 31, 23, 0, 0, 0, time.UTC))

func runInspect(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := rootCmd(testClock)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestInspect_Forecast(t *testing.T) {
	out, err := runInspect(t, "--file", "testdata/success.json")
	require.NoError(t, err)

	assert.Contains(t, out, "verdict: valid\n")
	assert.Contains(t, out, "records: 3\npoints: 3\nskipped: 0\n")

	var lines []string
	for _, l := range strings.Split(out, "\n") {
		if strings.HasPrefix(l, "met_weather,") {
			lines = append(lines, l)
		}
	}
	require.Len(t, lines, 3)
	assert.True(t, strings.HasSuffix(lines[0], " 1704067200000000000"), lines[0])
	assert.Contains(t, lines[0], "name=met_weather ")
}

func TestInspect_Throttle(t *testing.T) {
	out, err := runInspect(t, "-f", "testdata/api-throttle.json")
	require.NoError(t, err)

	assert.Contains(t, out, "verdict: throttled\n")
	assert.Contains(t, out, `next access: "2099-Jan-01 00:00:00+0000 GMT"`)
	assert.Contains(t, out, "delay: 1h0m0s\n")
}

func TestInspect_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.json")
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0o600))

	out, err := runInspect(t, "--file", path)
	require.ErrorIs(t, err, errInvalidPayload)
	assert.Contains(t, out, "verdict: invalid\n")
	assert.Contains(t, out, "reason: features")
}

func TestInspect_Errors(t *testing.T) {
	corrupt := filepath.Join(t.TempDir(), "corrupt.json")
	require.NoError(t, os.WriteFile(corrupt, []byte("{nope"), 0o600))

	tests := []struct {
		name string
		args []string
	}{
		{"missing flag", nil},
		{"missing file", []string{"--file", filepath.Join(t.TempDir(), "absent.json")}},
		{"corrupt file", []string{"--file", corrupt}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runInspect(t, tt.args...)
			assert.Error(t, err)
		})
	}
}
