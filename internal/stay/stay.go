// Package stay renders elapsed visit time as a short human-readable string.
package stay

import (
	"fmt"
	"time"
)

// Elapsed renders end-start using the largest nonzero unit, floored.
// Non-positive differences render as "0 s".
func Elapsed(start, end time.Time) string {
	secs := int64(end.Sub(start) / time.Second)
	if secs <= 0 {
		return "0 s"
	}

	mins := secs / 60
	hours := mins / 60
	days := hours / 24

	switch {
	case days > 0:
		return fmt.Sprintf("%d d", days)
	case hours > 0:
		return fmt.Sprintf("%d h", hours)
	case mins > 0:
		return fmt.Sprintf("%d m", mins)
	default:
		return fmt.Sprintf("%d s", secs)
	}
}

// ElapsedSince renders the time elapsed since start, against the wall clock.
func ElapsedSince(start time.Time) string {
	return Elapsed(start, time.Now())
}
