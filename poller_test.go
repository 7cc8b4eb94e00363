//go:build linux || darwin

package reactor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestPoller_ReadReadiness(t *testing.T) {
	loop, err := New()
	require.NoError(t, err)
	defer loop.Close()

	fds := make([]int, 2)
	require.NoError(t, unix.Pipe(fds))
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])

	var got Event
	_, perr := loop.Poll(InterestRead, fds[0], NewCallback(func(ev Event) {
		got = ev
		loop.Stop()
	}))
	require.NoError(t, perr)

	loop.Schedule(NewCallback(func(Event) {
		_, werr := unix.Write(fds[1], []byte("x"))
		require.NoError(t, werr)
	}))

	require.NoError(t, loop.Start())
	require.Equal(t, EventDone, got.Type)
}

func TestPoller_DuplicateRegistrationFails(t *testing.T) {
	loop, err := New()
	require.NoError(t, err)
	defer loop.Close()

	fds := make([]int, 2)
	require.NoError(t, unix.Pipe(fds))
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])

	first, perr := loop.Poll(InterestRead, fds[0], NewCallback(func(Event) {}))
	require.NoError(t, perr)

	var second Event
	_, perr = loop.Poll(InterestRead, fds[0], NewCallback(func(ev Event) {
		second = ev
		// Nothing is ever written to the pipe: cancel the first
		// registration so the poller goes idle and Start returns.
		first.Cancel()
		loop.Stop()
	}))
	require.NoError(t, perr)

	require.NoError(t, loop.Start())
	require.Equal(t, EventError, second.Type)
}

func TestPoller_CancelBeforeReady(t *testing.T) {
	loop, err := New()
	require.NoError(t, err)
	defer loop.Close()

	fds := make([]int, 2)
	require.NoError(t, unix.Pipe(fds))
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])

	fired := false
	action, perr := loop.Poll(InterestRead, fds[0], NewCallback(func(Event) { fired = true }))
	require.NoError(t, perr)
	action.Cancel()

	// Keep the loop alive through the cancellation window with a timer,
	// rather than letting it exit immediately because the poller is idle.
	loop.Timeout(0, NewCallback(func(Event) {
		time.Sleep(20 * time.Millisecond)
		unix.Write(fds[1], []byte("x"))
		time.Sleep(20 * time.Millisecond)
		loop.Stop()
	}))

	require.NoError(t, loop.Start())
	require.False(t, fired)
}

func TestPoller_NegativeFDRejected(t *testing.T) {
	loop, err := New()
	require.NoError(t, err)
	defer loop.Close()

	_, perr := loop.Poll(InterestRead, -1, NewCallback(func(Event) {}))
	require.Error(t, perr)
}

func TestPoller_IdleWhenNoRegistrations(t *testing.T) {
	loop, err := New()
	require.NoError(t, err)
	defer loop.Close()
	require.True(t, loop.poller.idle())
}

func TestPoller_RecordsIOMetric(t *testing.T) {
	loop, err := New(WithMetrics(true))
	require.NoError(t, err)
	defer loop.Close()

	fds := make([]int, 2)
	require.NoError(t, unix.Pipe(fds))
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])

	_, perr := loop.Poll(InterestRead, fds[0], NewCallback(func(Event) {
		loop.Stop()
	}))
	require.NoError(t, perr)

	loop.Schedule(NewCallback(func(Event) {
		unix.Write(fds[1], []byte("x"))
	}))

	require.NoError(t, loop.Start())
	require.Equal(t, int64(1), loop.Metrics().IODispatched)
}
