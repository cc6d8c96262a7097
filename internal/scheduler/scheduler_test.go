package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/platformbuilds/recovery-core/pkg/logger"
)

func TestSchedulerRunsTasksOnInterval(t *testing.T) {
	clock := NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	s := New(clock, logger.NewNop())

	var runs int64
	s.Register(Task{
		Name:     "tick",
		Interval: 30 * time.Second,
		Run:      func(ctx context.Context) { atomic.AddInt64(&runs, 1) },
	})

	s.Start(context.Background())
	defer s.Stop()

	clock.Advance(30 * time.Second)
	waitFor(t, func() bool { return atomic.LoadInt64(&runs) == 1 })

	clock.Advance(30 * time.Second)
	waitFor(t, func() bool { return atomic.LoadInt64(&runs) == 2 })
}

func TestSchedulerStopPreventsFurtherRuns(t *testing.T) {
	clock := NewFakeClock(time.Now())
	s := New(clock, logger.NewNop())

	var runs int64
	s.Register(Task{
		Name:     "tick",
		Interval: time.Second,
		Run:      func(ctx context.Context) { atomic.AddInt64(&runs, 1) },
	})

	s.Start(context.Background())
	clock.Advance(time.Second)
	waitFor(t, func() bool { return atomic.LoadInt64(&runs) == 1 })

	s.Stop()
	before := atomic.LoadInt64(&runs)
	clock.Advance(5 * time.Second)
	time.Sleep(20 * time.Millisecond)
	if atomic.LoadInt64(&runs) != before {
		t.Error("task ran after Stop")
	}
}

func TestSchedulerRecoversFromPanic(t *testing.T) {
	clock := NewFakeClock(time.Now())
	s := New(clock, logger.NewNop())

	var runs int64
	s.Register(Task{
		Name:     "bad",
		Interval: time.Second,
		Run: func(ctx context.Context) {
			atomic.AddInt64(&runs, 1)
			panic("boom")
		},
	})

	s.Start(context.Background())
	defer s.Stop()

	clock.Advance(time.Second)
	waitFor(t, func() bool { return atomic.LoadInt64(&runs) == 1 })
	clock.Advance(time.Second)
	waitFor(t, func() bool { return atomic.LoadInt64(&runs) == 2 })
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
