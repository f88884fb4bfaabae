package core

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

func TestScheduler_JobExecution(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	sched := NewScheduler(5 * time.Millisecond)

	var firedCount int32
	fired := make(chan struct{}, 1)
	job := NewTimeJob("TestTime", time.Millisecond, func(context.Context, time.Time) {
		if atomic.AddInt32(&firedCount, 1) == 1 {
			fired <- struct{}{}
		}
	}).FireImmediately()
	sched.AddJob(job)
	assert.Equal(t, []string{"TestTime"}, sched.Jobs())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sched.Start(ctx)
		close(done)
	}()

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not fire")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.GreaterOrEqual(t, atomic.LoadInt32(&firedCount), int32(1))
}

func TestScheduler_WaitsForRunningJobs(t *testing.T) {
	sched := NewScheduler(time.Millisecond)
	started := make(chan struct{})
	var finished atomic.Bool
	sched.AddJob(NewTimeJob("Slow", time.Hour, func(ctx context.Context, _ time.Time) {
		close(started)
		<-ctx.Done()
		time.Sleep(10 * time.Millisecond)
		finished.Store(true)
	}).FireImmediately())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sched.Start(ctx)
		close(done)
	}()

	<-started
	cancel()
	<-done
	assert.True(t, finished.Load(), "Start returned before the job finished")
}

func TestScheduler_DefaultInterval(t *testing.T) {
	assert.Equal(t, DefaultTick, NewScheduler(0).interval)
}
