// Package clock provides ready-made implementations of the transport.Hooks
// Now hook (monotonic microseconds since an arbitrary start instant) so an
// embedder does not need to write one from scratch for a quick start.
package clock

import (
	"fmt"
	"time"

	"github.com/beevik/ntp"
)

// Monotonic returns a Now-shaped function counting microseconds since the
// call to Monotonic itself, satisfying the transport.Hooks.Now contract
// (non-negative at start, monotonically non-decreasing thereafter).
func Monotonic() func() int64 {
	start := time.Now()
	return func() int64 {
		return time.Since(start).Microseconds()
	}
}

// NTPCorrected returns a Now-shaped function like Monotonic, but first
// queries pool once via NTP and folds the measured clock offset into the
// reading. This does not feed into any protocol decision — the wire
// protocol only ever compares values returned by the same node's own
// Now() hook against its own deadlines, and the heartbeat's "uptime
// seconds" field is a difference of two such readings, so the offset
// cancels out of it — it exists purely so that Now() readings an
// embedder logs alongside heartbeats line up across nodes that care
// about log correlation.
func NTPCorrected(pool string) (func() int64, error) {
	resp, err := ntp.Query(pool)
	if err != nil {
		return nil, fmt.Errorf("clock: ntp query %s: %w", pool, err)
	}
	offset := resp.ClockOffset
	start := time.Now()
	return func() int64 {
		return time.Since(start).Microseconds() + offset.Microseconds()
	}, nil
}
