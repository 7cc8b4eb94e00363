package reactor

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// Loop is the single-threaded cooperative event runtime (spec §2/§4.F):
// on each iteration it drains lifecycle interests, fires expired timers,
// performs one ready Callback, opportunistically polls for I/O, and
// blocks in the poll adapter only when there is truly nothing else to
// do. All Callback execution happens on the single goroutine that calls
// Start; every registration method (Schedule, Timeout, RegisterInterest,
// Poll) is safe to call from any goroutine, giving callers a thread-safe
// submission path over a single-threaded executor.
type Loop struct {
	id uint64

	state *FastState

	ready     *readyQueue
	timeouts  *timeoutQueue
	interests *interestRegistry
	poller    *ioPoller

	opts    *loopOptions
	metrics *Metrics

	stopRequested   atomic.Bool
	reloadRequested atomic.Bool

	loopGoroutineID atomic.Uint64

	signalCancel func()
	closeOnce    sync.Once
}

var loopIDCounter atomic.Uint64

// New constructs a Loop. The poll adapter is initialized eagerly so that
// Schedule/Timeout/RegisterInterest/Poll may be called before Start.
func New(opts ...LoopOption) (*Loop, error) {
	cfg, err := resolveLoopOptions(opts)
	if err != nil {
		return nil, err
	}

	l := &Loop{
		id:        loopIDCounter.Add(1),
		state:     NewFastState(),
		ready:     newReadyQueue(),
		timeouts:  newTimeoutQueue(time.Now),
		interests: newInterestRegistry(),
		opts:      cfg,
	}
	if cfg.metricsEnabled {
		l.metrics = newMetrics()
	}

	poller, err := newIOPoller(func(cb *Callback) {
		l.ready.Append(cb)
		if l.metrics != nil {
			l.metrics.recordIO()
		}
	})
	if err != nil {
		return nil, err
	}
	l.poller = poller

	return l, nil
}

// Schedule appends cb to Q_ready (spec §4.B). Once the loop has
// terminated, Start will never run again to drain Q_ready, so cb instead
// fires immediately with a Failure Event carrying ErrLoopTerminated —
// the same "fail via Event, not a return value" convention the poll
// adapter uses for its own closed check.
func (l *Loop) Schedule(cb *Callback) *Action {
	if !l.state.CanAcceptWork() {
		cb.Param(Failure(&OperationError{Op: "loop.schedule", Cause: ErrLoopTerminated})).execute()
		return newCancellationAction(func() {})
	}
	a := l.ready.Append(cb)
	l.wakeIfSleeping()
	return a
}

// Timeout schedules cb to fire after secs seconds via Q_timeout (spec
// §4.C). Rejected the same way as Schedule once the loop has terminated.
func (l *Loop) Timeout(secs uint, cb *Callback) *Action {
	if !l.state.CanAcceptWork() {
		cb.Param(Failure(&OperationError{Op: "loop.timeout", Cause: ErrLoopTerminated})).execute()
		return newCancellationAction(func() {})
	}
	a := l.timeouts.Append(secs, cb)
	l.wakeIfSleeping()
	return a
}

// RegisterInterest appends cb to the named lifecycle interest queue
// (spec §4.D). Rejected the same way as Schedule once the loop has
// terminated, since a terminated loop will never drain the interest
// queues either.
func (l *Loop) RegisterInterest(name InterestName, cb *Callback) (*Action, error) {
	if !l.state.CanAcceptWork() {
		cb.Param(Failure(&OperationError{Op: "loop.registerInterest", Cause: ErrLoopTerminated})).execute()
		return newCancellationAction(func() {}), nil
	}
	return l.interests.Register(name, cb)
}

// Poll registers cb against (fd, interest) in the poll adapter (spec
// §4.E). The returned error reports only programmer-usage failures (a
// negative fd); registration conflicts and I/O failures are delivered to
// cb as an Error Event, never returned synchronously, per spec's "Fails
// by firing Error on the Callback."
func (l *Loop) Poll(interest IOInterest, fd int, cb *Callback) (*Action, error) {
	if fd < 0 {
		return nil, &OperationError{Op: "poll.register", Errno: -1}
	}
	a := l.poller.register(fd, interest, cb)
	l.wakeIfSleeping()
	return a, nil
}

// requestStop implements stop() (spec §4.F): async-signal-safe in spirit
// (a single atomic store), callable from the signal-relay goroutine.
func (l *Loop) requestStop() { l.stopRequested.Store(true) }

// requestReload implements reload() (spec §4.F).
func (l *Loop) requestReload() { l.reloadRequested.Store(true) }

// Stop requests termination of the loop, draining the Stop interest
// queue on the next iteration. The request flag is set unconditionally,
// so it is observed on the very first tick even if called before Start;
// waking a blocked poller is only attempted while the loop is actually
// running or sleeping.
func (l *Loop) Stop() {
	l.requestStop()
	if l.state.IsRunning() {
		l.wakeIfSleeping()
	}
}

// Reload requests a drain of the Reload interest queue on the next
// iteration, with the same before-Start and wake semantics as Stop.
func (l *Loop) Reload() {
	l.requestReload()
	if l.state.IsRunning() {
		l.wakeIfSleeping()
	}
}

// wakeIfSleeping interrupts a blocking P.wait() if the loop is currently
// parked there, so newly submitted work is observed promptly instead of
// waiting out the current poll deadline.
func (l *Loop) wakeIfSleeping() {
	if l.state.TryTransition(StateSleeping, StateRunning) {
		l.poller.wake()
		if l.metrics != nil {
			l.metrics.recordWakeup()
		}
	}
}

func (l *Loop) wakePoller() { l.poller.wake() }

// Start runs the loop until termination, following this exact iteration
// sequence:
//
//  1. If stop requested and the Stop queue is non-empty: drain it.
//  2. If reload requested and the Reload queue is non-empty: drain it,
//     then clear the reload flag.
//  3. While Q_timeout is ready: dispatch all ripe timers.
//  4. Perform up to PollBatchSize ready Callbacks (default 1, one
//     Callback performed per tick).
//  5. If Q_ready is non-empty: poll() non-blocking, then continue — the
//     documented "poll but don't drain" quirk of spec §9.
//  6. If Q_timeout and the poller are both idle, and no requested Stop or
//     Reload drain is still pending: exit.
//  7. Otherwise wait(), bounded by the next timer deadline if any (or
//     non-blocking when a requested drain is pending).
func (l *Loop) Start() error {
	if l.isLoopThread() {
		return ErrReentrantStart
	}
	if !l.state.TryTransition(StateAwake, StateRunning) {
		if l.state.IsTerminal() {
			return ErrLoopTerminated
		}
		return ErrLoopAlreadyRunning
	}

	l.loopGoroutineID.Store(getGoroutineID())
	defer l.loopGoroutineID.Store(0)

	if l.signalCancel == nil {
		stopSignals, reloadSignals := l.opts.stopSignals, l.opts.reloadSignals
		if !l.opts.signalsConfigured {
			stopSignals = defaultStopSignals()
			reloadSignals = defaultReloadSignals()
		}
		l.signalCancel = l.watchSignals(stopSignals, reloadSignals)
	}

	batch := l.opts.pollBatchSize
	if batch <= 0 {
		batch = 1
	}

	for {
		tickStart := time.Now()

		if l.stopRequested.Load() && !l.interests.Empty(InterestStop) {
			if l.interests.Drain(InterestStop) {
				LogInterestDrainRecursion(int64(l.id), InterestStop)
			}
		}

		if l.reloadRequested.Load() && !l.interests.Empty(InterestReload) {
			l.interests.Drain(InterestReload)
			l.reloadRequested.Store(false)
		}

		for l.timeouts.Ready() {
			n := l.timeouts.Perform()
			if l.metrics != nil {
				for i := 0; i < n; i++ {
					l.metrics.recordTimeout()
				}
			}
		}

		performed := 0
		for performed < batch && l.ready.Perform() {
			performed++
			if l.metrics != nil {
				l.metrics.recordReady()
			}
		}

		if !l.ready.Empty() {
			if err := l.poller.wait(zeroDuration()); err != nil {
				LogPollError(int64(l.id), err, false)
			}
			if l.metrics != nil {
				l.metrics.recordTick(time.Since(tickStart))
			}
			continue
		}

		drainPending := (l.stopRequested.Load() && !l.interests.Empty(InterestStop)) ||
			(l.reloadRequested.Load() && !l.interests.Empty(InterestReload))
		if l.timeouts.Empty() && l.poller.idle() && !drainPending {
			break
		}

		var bound *time.Duration
		if drainPending {
			bound = zeroDuration()
		} else if !l.timeouts.Empty() {
			d := l.timeouts.Interval()
			bound = &d
		}

		l.state.TryTransition(StateRunning, StateSleeping)
		err := l.poller.wait(bound)
		l.state.TryTransition(StateSleeping, StateRunning)
		if err != nil {
			LogPollError(int64(l.id), err, true)
		}

		if l.metrics != nil {
			l.metrics.recordTick(time.Since(tickStart))
		}
	}

	l.state.Store(StateTerminated)
	return nil
}

func zeroDuration() *time.Duration {
	d := time.Duration(0)
	return &d
}

// isLoopThread reports whether the calling goroutine is the one running Start.
func (l *Loop) isLoopThread() bool {
	id := l.loopGoroutineID.Load()
	if id == 0 {
		return false
	}
	return getGoroutineID() == id
}

// getGoroutineID returns the current goroutine's ID, parsed from the
// runtime stack trace header. Used only for the reentrant-Start usage
// check, never on a hot path.
func getGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] >= '0' && buf[i] <= '9' {
			id = id*10 + uint64(buf[i]-'0')
		} else {
			break
		}
	}
	return id
}

// Metrics returns a snapshot of the loop's runtime counters. Returns the
// zero Snapshot if WithMetrics(true) was not supplied to New.
func (l *Loop) Metrics() Snapshot {
	if l.metrics == nil {
		return Snapshot{}
	}
	return l.metrics.Snapshot()
}

// Close releases the poll adapter and signal watcher, independent of
// whether Start has ever been called or has already returned. It also
// marks the loop's state machine terminated from whichever non-terminal
// state it finds it in (Awake if Start was never called, Running or
// Sleeping if called concurrently with an active Start, Terminating if a
// future caller drives that transition): a Close that left the state
// machine at StateAwake would let a later Start proceed against an
// already-closed poller, producing nothing but a tight loop of poll
// errors.
func (l *Loop) Close() error {
	var err error
	l.closeOnce.Do(func() {
		if l.signalCancel != nil {
			l.signalCancel()
		}
		err = l.poller.close()
		l.state.TransitionAny([]LoopState{StateAwake, StateRunning, StateSleeping, StateTerminating}, StateTerminated)
	})
	return err
}
