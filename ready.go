package reactor

import "sync"

// chunkSize is the number of Callbacks per node in the ready queue's
// chunked linked list. 128-entry chunks amortize allocation while
// keeping cache locality for the append-one/pop-one access pattern.
const chunkSize = 128

// chunkPool recycles exhausted chunks via sync.Pool.
var chunkPool = sync.Pool{
	New: func() any { return &readyChunk{} },
}

type readyChunk struct {
	callbacks [chunkSize]*Callback
	next      *readyChunk
	readPos   int
	writePos  int
}

func newReadyChunk() *readyChunk {
	c := chunkPool.Get().(*readyChunk)
	c.readPos = 0
	c.writePos = 0
	c.next = nil
	return c
}

func returnReadyChunk(c *readyChunk) {
	for i := 0; i < c.writePos; i++ {
		c.callbacks[i] = nil
	}
	c.readPos = 0
	c.writePos = 0
	c.next = nil
	chunkPool.Put(c)
}

// readyQueue is Q_ready from spec §3/§4.B: a FIFO of Callbacks. Append is
// O(1); perform pops the head and executes it. Safe for Append to be
// called from any goroutine; Perform/Drain must only be called from the
// loop goroutine.
type readyQueue struct {
	mu     sync.Mutex
	head   *readyChunk
	tail   *readyChunk
	length int
}

func newReadyQueue() *readyQueue {
	return &readyQueue{}
}

// Append enqueues cb and returns its cancellation Action. Cancelling the
// Action before cb is popped suppresses execution; cancelling after it
// has fired is a documented no-op (Callback.suppress fails silently).
func (q *readyQueue) Append(cb *Callback) *Action {
	q.mu.Lock()
	q.push(cb)
	q.mu.Unlock()
	return newCancellationAction(func() { cb.suppress() })
}

// push enqueues cb. Caller holds mu.
func (q *readyQueue) push(cb *Callback) {
	if q.tail == nil {
		q.tail = newReadyChunk()
		q.head = q.tail
	}
	if q.tail.writePos == chunkSize {
		next := newReadyChunk()
		q.tail.next = next
		q.tail = next
	}
	q.tail.callbacks[q.tail.writePos] = cb
	q.tail.writePos++
	q.length++
}

// pop removes and returns the head Callback. Caller holds mu.
func (q *readyQueue) pop() (*Callback, bool) {
	if q.head == nil {
		return nil, false
	}
	if q.head.readPos >= q.head.writePos {
		if q.head == q.tail {
			q.head.readPos = 0
			q.head.writePos = 0
			return nil, false
		}
		old := q.head
		q.head = q.head.next
		returnReadyChunk(old)
	}
	cb := q.head.callbacks[q.head.readPos]
	q.head.callbacks[q.head.readPos] = nil
	q.head.readPos++
	q.length--

	if q.head.readPos >= q.head.writePos && q.head == q.tail {
		q.head.readPos = 0
		q.head.writePos = 0
	}
	return cb, true
}

// Perform pops and executes the head Callback, if any. No-op if empty.
func (q *readyQueue) Perform() bool {
	q.mu.Lock()
	cb, ok := q.pop()
	q.mu.Unlock()
	if !ok {
		return false
	}
	cb.execute()
	return true
}

// Empty reports whether the queue currently holds no Callbacks.
func (q *readyQueue) Empty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.length == 0
}

// Len reports the number of pending Callbacks.
func (q *readyQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.length
}

// Drain repeatedly performs until empty, returning whether execution of
// any drained Callback appended new entries. (The interest registry does
// its own reentrancy detection in interestFIFO.drain.)
func (q *readyQueue) Drain() (appended bool) {
	for {
		before := q.Len()
		if before == 0 {
			return appended
		}
		q.Perform()
		after := q.Len()
		if after >= before {
			appended = true
		}
	}
}
