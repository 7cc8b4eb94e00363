package reactor

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadyQueue_FIFOOrder(t *testing.T) {
	q := newReadyQueue()
	var order []int
	for i := 0; i < 5; i++ {
		i := i
		q.Append(NewCallback(func(Event) { order = append(order, i) }))
	}
	for q.Perform() {
	}
	require.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestReadyQueue_SpansMultipleChunks(t *testing.T) {
	q := newReadyQueue()
	n := chunkSize*2 + 3
	var count int
	for i := 0; i < n; i++ {
		q.Append(NewCallback(func(Event) { count++ }))
	}
	require.Equal(t, n, q.Len())
	for q.Perform() {
	}
	require.Equal(t, n, count)
	require.True(t, q.Empty())
}

func TestReadyQueue_CancelBeforePerform(t *testing.T) {
	q := newReadyQueue()
	fired := false
	a := q.Append(NewCallback(func(Event) { fired = true }))
	a.Cancel()
	for q.Perform() {
	}
	require.False(t, fired)
}

func TestReadyQueue_CancelAfterFireIsNoop(t *testing.T) {
	q := newReadyQueue()
	a := q.Append(NewCallback(func(Event) {}))
	q.Perform()
	require.NotPanics(t, func() { a.Cancel() })
}

func TestReadyQueue_Empty(t *testing.T) {
	q := newReadyQueue()
	require.True(t, q.Empty())
	require.False(t, q.Perform())
}
