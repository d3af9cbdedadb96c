package clock

import "time"

// Clock is a minimal time source. Production code uses SystemClock;
// tests inject a fixed or stepping implementation so cadence math can
// be exercised without wall-clock waits.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real wall clock.
type SystemClock struct{}

// Now returns the current local time.
func (SystemClock) Now() time.Time {
	return time.Now()
}
