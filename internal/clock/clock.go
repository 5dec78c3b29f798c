// Package clock provides the injected source of the current time and the current-time
// service every time-dependent component subscribes to.
package clock

import (
	"time"

	"Mansoor88-6/time-targets-agent/internal/observable"
)

// Clock provides the current time. Components depend on it instead of time.Now.
type Clock interface {
	Now() time.Time
}

// RealClock returns the system time
type RealClock struct{}

func (RealClock) Now() time.Time {
	return time.Now()
}

// FixedClock always returns T
type FixedClock struct {
	T time.Time
}

func (c FixedClock) Now() time.Time {
	return c.T
}

// FuncClock wraps a function as a Clock
type FuncClock func() time.Time

func (f FuncClock) Now() time.Time {
	return f()
}

func NewReal() Clock {
	return RealClock{}
}

func NewFixed(t time.Time) Clock {
	return FixedClock{T: t}
}

func NewFunc(f func() time.Time) Clock {
	return FuncClock(f)
}

var (
	_ Clock = RealClock{}
	_ Clock = FixedClock{}
	_ Clock = FuncClock(nil)
)

// Service publishes the current time each time it is ticked
type Service struct {
	clock Clock
	now   *observable.Property[time.Time]
}

func NewService(c Clock) *Service {
	return &Service{clock: c, now: observable.NewStream[time.Time]()}
}

// Tick reads the clock and publishes the result
func (s *Service) Tick() time.Time {
	t := s.clock.Now()
	s.now.Set(t)
	return t
}

// Now returns the last published time, or false before the first tick
func (s *Service) Now() (time.Time, bool) {
	return s.now.Value()
}

func (s *Service) Subscribe(fn func(time.Time)) (cancel func()) {
	return s.now.Subscribe(fn)
}
