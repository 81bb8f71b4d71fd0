package data

import "time"

// TimeProvider abstracts time.Now so repositories can be tested with a fixed
// clock.
type TimeProvider interface {
	Now() time.Time
}

// RealTimeProvider uses the system clock.
type RealTimeProvider struct{}

func (RealTimeProvider) Now() time.Time { return time.Now() }

// FixedTimeProvider always returns the same instant.
type FixedTimeProvider struct{ T time.Time }

func (p FixedTimeProvider) Now() time.Time { return p.T }
