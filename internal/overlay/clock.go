package overlay

import "time"

// Clock abstracts timer creation so the state machine is testable
// without real time.
type Clock interface {
	// AfterFunc schedules fn after d and returns a stoppable timer.
	AfterFunc(d time.Duration, fn func()) Timer
}

// Timer is a stoppable pending callback.
type Timer interface {
	// Stop cancels the timer. Returns false if it already fired.
	Stop() bool
}

// realClock backs the controller with time.AfterFunc.
type realClock struct{}

func (realClock) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}
