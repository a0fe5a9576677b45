// Package clock provides Hyperborea's two notions of time: wall-clock
// UTC timestamps (advisory, exchanged on the wire as auth_date/
// received_at/last_seen fields per spec.md §3) and a monotonic clock for
// measuring elapsed durations (TTL windows, liveness checks) that must
// never be confused with, or perturbed by, clock-sync issues.
//
// Grounded on the teacher's epochtime/monotime split (core/epochtime,
// core/monotime): epochtime's 20-minute Sphinx epoch windowing has no
// counterpart here (spec.md §5's TTLs are plain durations, not epoch
// boundaries — see DESIGN.md). monotime's monotonic source is folded in
// directly below rather than kept as a separate pass-through package,
// since this module only ever needs the runtime's own monotonic time.Time
// support (go1.9+, well below this module's go.mod floor) and never the
// teacher's pre-1.9 clock_gettime(2) fallback.
package clock

import (
	"time"
)

// Timestamp returns the current UTC time as seconds since the Unix epoch,
// the wire representation used throughout spec.md (auth_date, received_at,
// last_seen). These are advisory only — spec.md §1 explicitly disclaims
// strong clock synchronization.
func Timestamp() uint64 {
	return uint64(time.Now().Unix())
}

var monoBase = time.Now()

// Monotonic returns a monotonic clock reading, suitable only for measuring
// elapsed intervals (deadlines, TTL countdowns) between two readings taken
// in the same process. It is never comparable across process restarts and
// carries no relation to Timestamp's wall-clock value.
func Monotonic() time.Duration {
	return time.Since(monoBase)
}
