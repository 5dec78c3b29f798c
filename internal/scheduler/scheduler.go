// Package scheduler runs tasks repeatedly at a fixed interval after a first delay.
package scheduler

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Repeating runs a task after a first delay and then every interval until it is
// rescheduled or stopped. Rescheduling disposes the previous loop; a task already
// running is allowed to complete.
type Repeating struct {
	name   string
	task   func()
	logger *zap.Logger

	mu       sync.Mutex
	stopChan chan struct{}
	wg       sync.WaitGroup
}

func NewRepeating(name string, task func(), logger *zap.Logger) *Repeating {
	return &Repeating{
		name:   name,
		task:   task,
		logger: logger.With(zap.String("schedule", name)),
	}
}

// Schedule replaces the current loop with one firing after firstFire and then every interval
func (r *Repeating) Schedule(firstFire, interval time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopChan != nil {
		close(r.stopChan)
	}
	stop := make(chan struct{})
	r.stopChan = stop

	r.wg.Add(1)
	go r.loop(stop, firstFire, interval)

	r.logger.Debug("Task scheduled",
		zap.Duration("first_fire", firstFire),
		zap.Duration("interval", interval),
	)
}

// Stop disposes the current loop and waits for any running task to return
func (r *Repeating) Stop() {
	r.mu.Lock()
	if r.stopChan != nil {
		close(r.stopChan)
		r.stopChan = nil
	}
	r.mu.Unlock()

	r.wg.Wait()
}

func (r *Repeating) loop(stop <-chan struct{}, firstFire, interval time.Duration) {
	defer r.wg.Done()

	timer := time.NewTimer(firstFire)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-stop:
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		r.task()

		select {
		case <-stop:
			return
		default:
		}

		select {
		case <-ticker.C:
		case <-stop:
			return
		}
	}
}

// DelayUntilAligned returns how long after now the next instant falls whose position
// within an interval-aligned slot equals offset. It returns 0 when now is such an instant.
func DelayUntilAligned(now time.Time, offset, interval time.Duration) time.Duration {
	if interval <= 0 {
		return 0
	}
	offset %= interval
	if offset < 0 {
		offset += interval
	}
	elapsed := now.Sub(now.Truncate(interval))
	delay := offset - elapsed
	if delay < 0 {
		delay += interval
	}
	return delay
}

// OffsetWithin returns the position of t within its interval-aligned slot
func OffsetWithin(t time.Time, interval time.Duration) time.Duration {
	if interval <= 0 {
		return 0
	}
	return t.Sub(t.Truncate(interval))
}
