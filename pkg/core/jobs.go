package core

import (
	"context"
	"sync/atomic"
	"time"
)

// Job defines a scheduled task.
type Job interface {
	Name() string
	ShouldFire(now time.Time) bool
	Run(ctx context.Context, now time.Time)
}

// BaseJob provides atomic running state to prevent re-entry.
type BaseJob struct {
	name    string
	running int32 // 1 if running, 0 otherwise
}

func NewBaseJob(name string) BaseJob {
	return BaseJob{name: name}
}

func (b *BaseJob) Name() string {
	return b.name
}

// TryLock attempts to set running to 1. Returns true if successful.
func (b *BaseJob) TryLock() bool {
	return atomic.CompareAndSwapInt32(&b.running, 0, 1)
}

func (b *BaseJob) Unlock() {
	atomic.StoreInt32(&b.running, 0)
}

// Running reports whether the job is executing.
func (b *BaseJob) Running() bool {
	return atomic.LoadInt32(&b.running) == 1
}

// TimeJob fires when the interval returned by its schedule has elapsed.
// The schedule is consulted on every tick so runtime overrides apply
// without a restart. A non-positive interval disables the job.
type TimeJob struct {
	BaseJob
	schedule  func() time.Duration
	action    func(context.Context, time.Time)
	lastTime  atomic.Int64 // unix nanos of the last run
	immediate bool
}

// NewTimeJob creates a job on a fixed interval.
func NewTimeJob(name string, interval time.Duration, action func(context.Context, time.Time)) *TimeJob {
	return NewScheduledJob(name, func() time.Duration { return interval }, action)
}

// NewScheduledJob creates a job whose interval is re-read on every tick.
func NewScheduledJob(name string, schedule func() time.Duration, action func(context.Context, time.Time)) *TimeJob {
	return &TimeJob{
		BaseJob:  NewBaseJob(name),
		schedule: schedule,
		action:   action,
	}
}

// FireImmediately makes the first tick run the job instead of waiting a
// full interval.
func (j *TimeJob) FireImmediately() *TimeJob {
	j.immediate = true
	return j
}

// MarkRun records now as the last run, restarting the interval.
func (j *TimeJob) MarkRun(now time.Time) {
	j.lastTime.Store(now.UnixNano())
}

func (j *TimeJob) ShouldFire(now time.Time) bool {
	if j.Running() {
		return false
	}
	interval := j.schedule()
	if interval <= 0 {
		return false
	}

	last := j.lastTime.Load()
	if last == 0 {
		if j.immediate {
			return true
		}
		// Start the clock on the first tick.
		j.lastTime.CompareAndSwap(0, now.UnixNano())
		return false
	}
	return now.Sub(time.Unix(0, last)) >= interval
}

func (j *TimeJob) Run(ctx context.Context, now time.Time) {
	if !j.TryLock() {
		return
	}
	defer j.Unlock()

	j.MarkRun(now)
	j.action(ctx, now)
}
