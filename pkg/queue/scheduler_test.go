package queue

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ForexPulse/pkg/logger"
)

func TestSchedulerRunsImmediatelyAndOnTicks(t *testing.T) {
	var runs int32
	s := NewScheduler(logger.Nop())
	s.RegisterJob(JobFunc{JobName: "count", Every: 10 * time.Millisecond, Callback: func(context.Context) {
		atomic.AddInt32(&runs, 1)
	}})

	require.NoError(t, s.Start(context.Background()))
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&runs) >= 3 }, time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop(context.Background()))

	after := atomic.LoadInt32(&runs)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, atomic.LoadInt32(&runs))
}

func TestSchedulerIgnoresDuplicatesAndZeroInterval(t *testing.T) {
	s := NewScheduler(logger.Nop())
	noop := func(context.Context) {}
	s.RegisterJob(JobFunc{JobName: "a", Every: time.Second, Callback: noop})
	s.RegisterJob(JobFunc{JobName: "a", Every: time.Second, Callback: noop})
	s.RegisterJob(JobFunc{JobName: "b", Every: 0, Callback: noop})
	assert.Equal(t, []string{"a"}, s.order)
}

func TestSchedulerDoubleStart(t *testing.T) {
	s := NewScheduler(logger.Nop())
	require.NoError(t, s.Start(context.Background()))
	assert.Error(t, s.Start(context.Background()))
	require.NoError(t, s.Stop(context.Background()))
}
