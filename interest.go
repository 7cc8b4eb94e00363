package reactor

import "sync"

// InterestName names a lifecycle interest queue, per spec §3/§4.D.
type InterestName int

const (
	// InterestStop is drained when the stop signal has been requested.
	InterestStop InterestName = iota
	// InterestReload is drained when the reload signal has been requested.
	InterestReload
)

func (n InterestName) String() string {
	switch n {
	case InterestStop:
		return "Stop"
	case InterestReload:
		return "Reload"
	default:
		return "Unknown"
	}
}

// interestFIFO is a simple FIFO of Callbacks. Unlike the ready queue,
// interest queues are drained in full rather than popped one at a time,
// so a plain slice (rather than the chunked-array structure) is the
// right fit — a lifecycle interest queue holds only as many Callbacks as
// there are active shutdown/reload hooks, typically a handful, not the
// many long-lived registrations a ring buffer would be sized for.
type interestFIFO struct {
	mu    sync.Mutex
	items []*Callback
}

func (f *interestFIFO) append(cb *Callback) *Action {
	f.mu.Lock()
	f.items = append(f.items, cb)
	f.mu.Unlock()
	return newCancellationAction(func() { cb.suppress() })
}

func (f *interestFIFO) empty() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items) == 0
}

// drain executes every Callback enqueued at the time of the call,
// returning whether draining caused new Callbacks to be appended to the
// same queue (detected by the queue, emptied before the batch runs, being
// non-empty afterwards).
// Newly-registered Callbacks are deliberately left for a subsequent
// drain rather than processed in this pass, per spec §4.D's "avoid
// unbounded recursion during shutdown" design choice.
func (f *interestFIFO) drain() (appendedDuringDrain bool) {
	f.mu.Lock()
	batch := f.items
	f.items = nil
	f.mu.Unlock()

	for _, cb := range batch {
		cb.execute()
	}

	f.mu.Lock()
	appendedDuringDrain = len(f.items) > 0
	f.mu.Unlock()
	return appendedDuringDrain
}

// interestRegistry is the Interest registry (I) of spec §3/§4.D: a
// finite map from {Stop, Reload} to an ordered queue of Callbacks.
type interestRegistry struct {
	stop   interestFIFO
	reload interestFIFO
}

func newInterestRegistry() *interestRegistry {
	return &interestRegistry{}
}

func (r *interestRegistry) queue(name InterestName) (*interestFIFO, error) {
	switch name {
	case InterestStop:
		return &r.stop, nil
	case InterestReload:
		return &r.reload, nil
	default:
		return nil, ErrUnknownInterest
	}
}

// Register appends cb to the named interest queue and returns its
// cancellation Action.
func (r *interestRegistry) Register(name InterestName, cb *Callback) (*Action, error) {
	q, err := r.queue(name)
	if err != nil {
		return nil, err
	}
	return q.append(cb), nil
}

// Drain executes every Callback currently queued under name. For
// InterestStop, a true return means stop handlers registered further
// stop handlers — a misuse the loop logs as a warning rather than
// recursively draining, per spec §4.D/§7.
func (r *interestRegistry) Drain(name InterestName) bool {
	q, err := r.queue(name)
	if err != nil {
		return false
	}
	return q.drain()
}

func (r *interestRegistry) Empty(name InterestName) bool {
	q, err := r.queue(name)
	if err != nil {
		return true
	}
	return q.empty()
}
