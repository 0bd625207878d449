// ABOUTME: Injectable clock abstraction for time-dependent quota state
// ABOUTME: Keeps window and rollover logic deterministic under test

package quota

import "time"

// Clock supplies the current time. Production code uses time.Now;
// tests inject a manual clock.
type Clock func() time.Time

// orNow returns the clock, defaulting to time.Now when nil.
func orNow(c Clock) Clock {
	if c == nil {
		return time.Now
	}
	return c
}
