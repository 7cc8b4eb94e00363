package reactor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoop_ScheduleAndStop(t *testing.T) {
	loop, err := New()
	require.NoError(t, err)
	defer loop.Close()

	fired := false
	loop.Schedule(NewCallback(func(Event) {
		fired = true
		loop.Stop()
	}))

	require.NoError(t, loop.Start())
	require.True(t, fired)
}

func TestLoop_TimeoutFires(t *testing.T) {
	loop, err := New()
	require.NoError(t, err)
	defer loop.Close()

	fired := false
	loop.Timeout(0, NewCallback(func(Event) {
		fired = true
		loop.Stop()
	}))

	require.NoError(t, loop.Start())
	require.True(t, fired)
}

func TestLoop_TimerDrainsBeforeReadyCallback(t *testing.T) {
	loop, err := New()
	require.NoError(t, err)
	defer loop.Close()

	var log []string
	loop.Timeout(0, NewCallback(func(Event) { log = append(log, "T") }))
	loop.Schedule(NewCallback(func(Event) { log = append(log, "S") }))

	require.NoError(t, loop.Start())
	require.Equal(t, []string{"T", "S"}, log)
}

func TestLoop_ReloadDrainsInterestBeforeReady(t *testing.T) {
	loop, err := New()
	require.NoError(t, err)
	defer loop.Close()

	var log []string
	_, err = loop.RegisterInterest(InterestReload, NewCallback(func(Event) {
		log = append(log, "R")
	}))
	require.NoError(t, err)

	loop.Reload()
	loop.Schedule(NewCallback(func(Event) { log = append(log, "S") }))

	require.NoError(t, loop.Start())
	require.Equal(t, []string{"R", "S"}, log)
	require.False(t, loop.reloadRequested.Load())
}

func TestLoop_ExitsWhenIdle(t *testing.T) {
	loop, err := New()
	require.NoError(t, err)
	defer loop.Close()

	done := make(chan error, 1)
	go func() { done <- loop.Start() }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not exit when idle")
	}
}

func TestLoop_StopDrainsInterestQueue(t *testing.T) {
	loop, err := New()
	require.NoError(t, err)
	defer loop.Close()

	stopped := false
	_, err = loop.RegisterInterest(InterestStop, NewCallback(func(Event) {
		stopped = true
	}))
	require.NoError(t, err)

	loop.Schedule(NewCallback(func(Event) { loop.Stop() }))

	require.NoError(t, loop.Start())
	require.True(t, stopped)
}

func TestLoop_ReentrantStartRejected(t *testing.T) {
	loop, err := New()
	require.NoError(t, err)
	defer loop.Close()

	var reentrantErr error
	loop.Schedule(NewCallback(func(Event) {
		reentrantErr = loop.Start()
		loop.Stop()
	}))

	require.NoError(t, loop.Start())
	require.ErrorIs(t, reentrantErr, ErrReentrantStart)
}

func TestLoop_ConcurrentStartRejected(t *testing.T) {
	loop, err := New()
	require.NoError(t, err)
	defer loop.Close()

	started := make(chan struct{})
	release := make(chan struct{})
	loop.Schedule(NewCallback(func(Event) {
		close(started)
		<-release
	}))

	go loop.Start()
	<-started

	// The first Start is held inside the callback above, so the loop is
	// still running when the second call arrives.
	err = loop.Start()
	close(release)
	require.ErrorIs(t, err, ErrLoopAlreadyRunning)

	loop.Stop()
}

func TestLoop_CloseMarksStateTerminated(t *testing.T) {
	loop, err := New()
	require.NoError(t, err)

	require.NoError(t, loop.Close())
	require.True(t, loop.state.IsTerminal())

	err = loop.Start()
	require.ErrorIs(t, err, ErrLoopTerminated)
}

func TestLoop_ScheduleAfterCloseFailsWithEvent(t *testing.T) {
	loop, err := New()
	require.NoError(t, err)
	require.NoError(t, loop.Close())

	var got Event
	loop.Schedule(NewCallback(func(e Event) { got = e }))

	require.Equal(t, EventError, got.Type)
	require.ErrorIs(t, got.Err, ErrLoopTerminated)
}

func TestLoop_PollBatchSizeOne(t *testing.T) {
	loop, err := New(WithPollBatchSize(1))
	require.NoError(t, err)
	defer loop.Close()

	var order []int
	loop.Schedule(NewCallback(func(Event) { order = append(order, 1) }))
	loop.Schedule(NewCallback(func(Event) { order = append(order, 2) }))
	loop.Schedule(NewCallback(func(Event) {
		order = append(order, 3)
		loop.Stop()
	}))

	require.NoError(t, loop.Start())
	require.Equal(t, []int{1, 2, 3}, order)
}

func TestLoop_MetricsDisabledByDefault(t *testing.T) {
	loop, err := New()
	require.NoError(t, err)
	defer loop.Close()

	loop.Schedule(NewCallback(func(Event) { loop.Stop() }))
	require.NoError(t, loop.Start())
	require.Equal(t, Snapshot{}, loop.Metrics())
}

func TestLoop_MetricsEnabled(t *testing.T) {
	loop, err := New(WithMetrics(true))
	require.NoError(t, err)
	defer loop.Close()

	loop.Schedule(NewCallback(func(Event) { loop.Stop() }))
	require.NoError(t, loop.Start())

	snap := loop.Metrics()
	require.GreaterOrEqual(t, snap.ReadyDispatched, int64(1))
}

func TestLoop_InvalidPollBatchSizeOption(t *testing.T) {
	_, err := New(WithPollBatchSize(0))
	require.Error(t, err)
}

func TestDefault_ReturnsSameLoop(t *testing.T) {
	l1, err := Default()
	require.NoError(t, err)
	l2, err := Default()
	require.NoError(t, err)
	require.Same(t, l1, l2)
}
