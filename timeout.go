package reactor

import (
	"container/heap"
	"sync"
	"time"
)

// timerEntry is one (deadline, Callback) pair in Q_timeout. index is
// maintained by the heap implementation to allow O(log n) cancellation
// via heap.Remove.
type timerEntry struct {
	when  time.Time
	seq   uint64 // insertion order, breaks deadline ties per spec §4.C
	cb    *Callback
	index int
}

// minHeap implements container/heap.Interface, ordering by deadline then
// insertion sequence.
type minHeap []*timerEntry

func (h minHeap) Len() int { return len(h) }
func (h minHeap) Less(i, j int) bool {
	if h[i].when.Equal(h[j].when) {
		return h[i].seq < h[j].seq
	}
	return h[i].when.Before(h[j].when)
}
func (h minHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *minHeap) Push(x any) {
	e := x.(*timerEntry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *minHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// timeoutQueue is Q_timeout from spec §3/§4.C: a deadline-ordered
// min-heap of Callbacks, ties broken by insertion order.
type timeoutQueue struct {
	mu   sync.Mutex
	h    minHeap
	seq  uint64
	now  func() time.Time
}

func newTimeoutQueue(now func() time.Time) *timeoutQueue {
	if now == nil {
		now = time.Now
	}
	return &timeoutQueue{now: now}
}

// Append schedules cb to fire after secs seconds and returns its
// cancellation Action.
func (q *timeoutQueue) Append(secs uint, cb *Callback) *Action {
	q.mu.Lock()
	e := &timerEntry{
		when: q.now().Add(time.Duration(secs) * time.Second),
		seq:  q.seq,
		cb:   cb,
	}
	q.seq++
	heap.Push(&q.h, e)
	q.mu.Unlock()

	return newCancellationAction(func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		if e.index < 0 || e.index >= len(q.h) || q.h[e.index] != e {
			return
		}
		heap.Remove(&q.h, e.index)
		cb.suppress()
	})
}

// Ready reports whether the smallest deadline has passed.
func (q *timeoutQueue) Ready() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.h) > 0 && !q.h[0].when.After(q.now())
}

// Perform dispatches all currently expired entries, in deadline order
// with insertion-order tiebreaking, per spec §4.C's batching policy.
// Callbacks scheduled by dispatch land on Q_ready, never Q_timeout.
func (q *timeoutQueue) Perform() int {
	now := q.now()
	var expired []*timerEntry
	q.mu.Lock()
	for len(q.h) > 0 && !q.h[0].when.After(now) {
		e := heap.Pop(&q.h).(*timerEntry)
		expired = append(expired, e)
	}
	q.mu.Unlock()

	for _, e := range expired {
		e.cb.execute()
	}
	return len(expired)
}

// Interval returns the duration until the next deadline, never negative.
// Undefined (returns 0) when the queue is empty; callers must check
// Empty first, per spec §4.C.
func (q *timeoutQueue) Interval() time.Duration {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.h) == 0 {
		return 0
	}
	d := q.h[0].when.Sub(q.now())
	if d < 0 {
		return 0
	}
	return d
}

// Empty reports whether no timers are pending.
func (q *timeoutQueue) Empty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.h) == 0
}
