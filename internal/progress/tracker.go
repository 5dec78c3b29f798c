package progress

import (
	"sync"
	"sync/atomic"
	"time"

	"Mansoor88-6/time-targets-agent/internal/calendar"
	"Mansoor88-6/time-targets-agent/internal/models"
	"Mansoor88-6/time-targets-agent/internal/observable"
)

// Tracker recomputes a project's progress whenever one of its inputs changes and
// notifies subscribers only when the result differs from the previous one. Losing a
// required input forgets the previous result, so the next complete result is always
// delivered. Subscribers must not call the tracker's setters synchronously.
type Tracker struct {
	mu           sync.Mutex
	inputs       Inputs
	threshold    time.Duration
	available    atomic.Bool
	result       *observable.Property[Progress]
	availability *observable.Property[bool]
}

// NewTracker creates a tracker for projectID. A zero threshold uses DefaultFeasibilityThreshold.
func NewTracker(projectID int64, threshold time.Duration) *Tracker {
	if threshold <= 0 {
		threshold = DefaultFeasibilityThreshold
	}
	return &Tracker{
		inputs:    Inputs{ProjectID: projectID},
		threshold: threshold,
		result: observable.NewDedupedStream(func(a, b Progress) bool {
			return a.Equal(b)
		}),
		availability: observable.NewDedupedProperty(false, observable.Equal[bool]),
	}
}

func (t *Tracker) ProjectID() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inputs.ProjectID
}

// Progress returns the latest result, or false while inputs are incomplete
func (t *Tracker) Progress() (Progress, bool) {
	if !t.available.Load() {
		return Progress{}, false
	}
	return t.result.Value()
}

// Subscribe registers fn for every distinct result
func (t *Tracker) Subscribe(fn func(Progress)) (cancel func()) {
	return t.result.Subscribe(fn)
}

// SubscribeAvailability registers fn for every change between having a result and not
func (t *Tracker) SubscribeAvailability(fn func(available bool)) (cancel func()) {
	return t.availability.Subscribe(fn)
}

func (t *Tracker) SetTarget(target *models.TimeTarget) {
	t.update(func(in *Inputs) { in.Target = copyOf(target) })
}

func (t *Tracker) SetReport(report *models.TwoPartTimeReport) {
	t.update(func(in *Inputs) { in.Report = copyOf(report) })
}

func (t *Tracker) SetRunningEntry(entry *models.RunningEntry) {
	t.update(func(in *Inputs) { in.RunningEntry = copyOf(entry) })
}

func (t *Tracker) SetGoalPeriod(p calendar.Period) {
	t.update(func(in *Inputs) {
		in.StartGoalDay = &p.Start
		in.EndGoalDay = &p.End
	})
}

func (t *Tracker) SetStartStrategyDay(d calendar.DayComponents) {
	t.update(func(in *Inputs) { in.StartStrategyDay = &d })
}

func (t *Tracker) SetNow(now time.Time) {
	t.update(func(in *Inputs) { in.Now = &now })
}

func (t *Tracker) SetCalendar(cal calendar.Calendar) {
	t.update(func(in *Inputs) { in.Calendar = &cal })
}

func (t *Tracker) update(apply func(*Inputs)) {
	t.mu.Lock()
	defer t.mu.Unlock()

	apply(&t.inputs)
	p, ok := Compute(t.inputs, t.threshold)
	t.available.Store(ok)
	if ok {
		t.result.Set(p)
	} else {
		t.result.Reset()
	}
	t.availability.Set(ok)
}

func copyOf[T any](v *T) *T {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
