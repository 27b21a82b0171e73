package download

import "time"

// Clock abstracts time for backoff scheduling so retry timing can be driven
// by a virtual clock in tests.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After waits for d and then sends the current time on the channel.
	After(d time.Duration) <-chan time.Time
}

// realClock is the wall clock.
type realClock struct{}

// RealClock returns a Clock backed by the time package.
func RealClock() Clock {
	return realClock{}
}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}
