package reactor

import (
	"runtime/debug"
	"sync"
)

// Callback is an opaque one-shot invocable carrying a typed parameter
// slot, per spec §3/§4.A. It is bound at construction to a receiver
// closure and is executed at most once; after execution (or
// cancellation of its owning Action) it is consumed and further
// invocation is a no-op.
type Callback struct {
	mu    sync.Mutex
	fn    func(Event)
	param Event
	fired bool
}

// NewCallback binds fn as the receiver invoked when the Callback fires.
func NewCallback(fn func(Event)) *Callback {
	return &Callback{fn: fn}
}

// Param sets the parameter the next (and only) invocation will observe.
// It returns the Callback to allow chaining at the call site, e.g.
// `cb.Param(event).Schedule(loop)`.
func (c *Callback) Param(e Event) *Callback {
	c.mu.Lock()
	c.param = e
	c.mu.Unlock()
	return c
}

// Schedule is a convenience wrapper around loop.Schedule(c).
func (c *Callback) Schedule(loop *Loop) *Action {
	return loop.Schedule(c)
}

// execute invokes the bound receiver with the current parameter exactly
// once. Subsequent calls (from a duplicate dispatch, or after
// cancellation raced the dispatch) are no-ops, implementing spec §3's
// "A Callback is executed at most once."
func (c *Callback) execute() {
	c.mu.Lock()
	if c.fired {
		c.mu.Unlock()
		return
	}
	c.fired = true
	fn := c.fn
	param := c.param
	c.fn = nil
	c.mu.Unlock()

	if fn != nil {
		safeInvoke(fn, param)
	}
}

// safeInvoke recovers a panicking receiver, logging it rather than
// taking down the loop goroutine.
func safeInvoke(fn func(Event), param Event) {
	defer func() {
		if r := recover(); r != nil {
			LogCallbackPanicked(0, r, debug.Stack())
		}
	}()
	fn(param)
}

// suppress marks the Callback as fired without invoking its receiver,
// returning true if it successfully pre-empted a not-yet-fired
// Callback. Used to implement cancellation for queues (ready, timeout)
// where "remove from the queue" is equivalent in effect to "never
// invoke," letting a stale entry sit inert until it is naturally popped
// and discarded.
func (c *Callback) suppress() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fired {
		return false
	}
	c.fired = true
	c.fn = nil
	return true
}

// Action is a cancellation handle, per spec §3/§4.A. The caller owns the
// Action; cancelling one whose Callback has already fired is legal and a
// no-op. Cancellation is synchronous and must not suspend — it may
// itself schedule further cleanup work via a Loop's Schedule.
//
// Every Action is privately owned by exactly one registration (the ready
// queue, timeout queue, interest registry, and poller each mint one per
// submission); nothing shares an Action across two registrations. So the
// handle needs only to guarantee its own cancel runs at most once, not
// arbitrate among several independent entries — a mutex-guarded flag and
// closure, not a table.
type Action struct {
	mu     sync.Mutex
	fired  bool
	cancel func()
}

// newAction wraps cancel in an Action invoked at most once.
func newAction(cancel func()) *Action {
	return &Action{cancel: cancel}
}

// Cancel is idempotent: after the first call, the bound Callback is
// guaranteed not to run, and any resources it owned are released. A nil
// Action or a double-cancel is always safe.
func (a *Action) Cancel() {
	if a == nil {
		return
	}
	a.mu.Lock()
	if a.fired {
		a.mu.Unlock()
		return
	}
	a.fired = true
	cancel := a.cancel
	a.cancel = nil
	a.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// newCancellationAction wraps a user-provided cancel routine in an
// Action — the "Cancellation Action" of spec §4.A, used by composite
// operations (e.g. closing an underlying socket) whose cancel behavior is
// more than "remove from a queue."
func newCancellationAction(cancel func()) *Action {
	return newAction(cancel)
}

// NewCancellationAction is the exported form of newCancellationAction,
// for peripheral packages (e.g. net) that need to compose a Loop's own
// Action with extra teardown — such as closing an underlying socket fd —
// into a single cancellation handle, per spec §4.A's "Cancellation
// Action."
func NewCancellationAction(cancel func()) *Action {
	return newCancellationAction(cancel)
}
