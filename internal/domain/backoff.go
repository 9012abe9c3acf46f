package domain

import (
	"math"
	"strings"
	"time"
)

const (
	// RetryAtLayout is the nextAccessTime format: date, time, numeric offset
	// and zone name, e.g. "2099-Jan-01 00:00:00+0000 GMT".
	RetryAtLayout = "2006-Jan-02 15:04:05-0700 MST"

	// FallbackDelay is used when nextAccessTime is missing or unreadable.
	FallbackDelay = 300 * time.Second
)

// ComputeDelay returns how long to wait before calling the provider again,
// rounded up to whole seconds. A retry time in the past yields 0 and an
// unparsable one yields FallbackDelay; it never fails.
func ComputeDelay(retryAt string, now time.Time) time.Duration {
	t, err := time.Parse(RetryAtLayout, strings.TrimSpace(retryAt))
	if err != nil {
		return FallbackDelay
	}

	gap := t.Sub(now)
	if gap <= 0 {
		return 0
	}

	secs := gap / time.Second
	if gap%time.Second != 0 && secs < math.MaxInt64/time.Second {
		secs++
	}
	return secs * time.Second
}
