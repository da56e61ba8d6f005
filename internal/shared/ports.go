package shared

import "time"

// Clock supplies the current time. Production code uses RealClock;
// tests substitute a fixed implementation.
type Clock interface {
	Now() time.Time
}

// RealClock returns the wall clock in UTC.
type RealClock struct{}

// Now implements Clock.
func (RealClock) Now() time.Time {
	return time.Now().UTC()
}
