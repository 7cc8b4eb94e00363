package reactor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTimeoutQueue_DeadlineOrder(t *testing.T) {
	now := time.Now()
	q := newTimeoutQueue(func() time.Time { return now })

	var order []int
	q.Append(3, NewCallback(func(Event) { order = append(order, 3) }))
	q.Append(1, NewCallback(func(Event) { order = append(order, 1) }))
	q.Append(2, NewCallback(func(Event) { order = append(order, 2) }))

	now = now.Add(5 * time.Second)
	require.True(t, q.Ready())
	n := q.Perform()
	require.Equal(t, 3, n)
	require.Equal(t, []int{1, 2, 3}, order)
}

func TestTimeoutQueue_TieBreakByInsertionOrder(t *testing.T) {
	now := time.Now()
	q := newTimeoutQueue(func() time.Time { return now })

	var order []int
	q.Append(1, NewCallback(func(Event) { order = append(order, 0) }))
	q.Append(1, NewCallback(func(Event) { order = append(order, 1) }))
	q.Append(1, NewCallback(func(Event) { order = append(order, 2) }))

	now = now.Add(2 * time.Second)
	q.Perform()
	require.Equal(t, []int{0, 1, 2}, order)
}

func TestTimeoutQueue_NotReadyBeforeDeadline(t *testing.T) {
	now := time.Now()
	q := newTimeoutQueue(func() time.Time { return now })
	q.Append(10, NewCallback(func(Event) {}))
	require.False(t, q.Ready())
	require.Equal(t, 0, q.Perform())
}

func TestTimeoutQueue_Cancel(t *testing.T) {
	now := time.Now()
	q := newTimeoutQueue(func() time.Time { return now })
	fired := false
	a := q.Append(1, NewCallback(func(Event) { fired = true }))
	a.Cancel()

	now = now.Add(2 * time.Second)
	q.Perform()
	require.False(t, fired)
	require.True(t, q.Empty())
}

func TestTimeoutQueue_Interval(t *testing.T) {
	now := time.Now()
	q := newTimeoutQueue(func() time.Time { return now })
	require.Equal(t, time.Duration(0), q.Interval())

	q.Append(5, NewCallback(func(Event) {}))
	d := q.Interval()
	require.True(t, d > 4*time.Second && d <= 5*time.Second)
}
