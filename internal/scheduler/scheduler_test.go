package scheduler

import (
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func TestDelayUntilAligned(t *testing.T) {
	base := time.Date(2017, time.October, 11, 9, 30, 0, 0, time.UTC)

	tests := []struct {
		name   string
		now    time.Time
		offset time.Duration
		want   time.Duration
	}{
		{"top of minute from mid minute", base.Add(20 * time.Second), 0, 40 * time.Second},
		{"already aligned", base, 0, 0},
		{"offset later in same minute", base.Add(10 * time.Second), 17 * time.Second, 7 * time.Second},
		{"offset passed this minute", base.Add(30 * time.Second), 17 * time.Second, 47 * time.Second},
		{"sub-second precision", base.Add(17*time.Second + 500*time.Millisecond), 17 * time.Second, 59*time.Second + 500*time.Millisecond},
		{"offset wider than interval", base.Add(10 * time.Second), 77 * time.Second, 7 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DelayUntilAligned(tt.now, tt.offset, time.Minute); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestOffsetWithin(t *testing.T) {
	start := time.Date(2017, time.October, 11, 8, 12, 17, 250_000_000, time.UTC)
	if got := OffsetWithin(start, time.Minute); got != 17*time.Second+250*time.Millisecond {
		t.Errorf("expected 17.25s, got %v", got)
	}
}

func TestRepeating_FiresUntilStopped(t *testing.T) {
	var count atomic.Int32
	r := NewRepeating("test", func() { count.Add(1) }, zaptest.NewLogger(t))

	r.Schedule(0, 10*time.Millisecond)
	deadline := time.Now().Add(5 * time.Second)
	for count.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	r.Stop()

	stopped := count.Load()
	if stopped < 3 {
		t.Fatalf("expected at least 3 runs, got %d", stopped)
	}
	time.Sleep(50 * time.Millisecond)
	if count.Load() != stopped {
		t.Errorf("expected no runs after Stop, got %d more", count.Load()-stopped)
	}
}

func TestRepeating_RescheduleDisposesPreviousLoop(t *testing.T) {
	var count atomic.Int32
	r := NewRepeating("test", func() { count.Add(1) }, zaptest.NewLogger(t))
	defer r.Stop()

	r.Schedule(time.Hour, time.Hour)
	r.Schedule(0, time.Hour)

	deadline := time.Now().Add(5 * time.Second)
	for count.Load() < 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	if got := count.Load(); got != 1 {
		t.Errorf("expected exactly one run from the new schedule, got %d", got)
	}
}
