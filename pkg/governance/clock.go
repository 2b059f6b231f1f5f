package governance

import "time"

// Clock provides evaluation time. Inject a controllable clock in tests and
// simulations so grace deadlines are reproducible.
type Clock interface {
	Now() time.Time
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }
