package store

import (
	"math"
	"strconv"
	"sync/atomic"
	"time"
)

var lastTimestamp atomic.Uint64

// NewTimestamp returns the current wall clock time in seconds since epoch.
// Successive calls in one process return strictly increasing values, so two
// writes of the same key never share a timestamp.
func NewTimestamp() float64 {
	for {
		prevBits := lastTimestamp.Load()
		prev := math.Float64frombits(prevBits)
		now := float64(time.Now().UnixNano()) / 1e9
		if now <= prev {
			now = math.Nextafter(prev, math.Inf(1))
		}
		if lastTimestamp.CompareAndSwap(prevBits, math.Float64bits(now)) {
			return now
		}
	}
}

// FormatTimestamp encodes ts the way it is stored under the timestamp key
func FormatTimestamp(ts float64) []byte {
	return []byte(strconv.FormatFloat(ts, 'f', -1, 64))
}

// ParseTimestamp decodes a stored timestamp
func ParseTimestamp(data []byte) (float64, error) {
	ts, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return 0, Errorf(RetCInternalError, "invalid timestamp %q", data)
	}
	return ts, nil
}
