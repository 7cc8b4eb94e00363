// Package reactor implements a single-threaded, cooperative, event-driven
// I/O runtime — the core of a small user-space networking toolkit.
//
// # Architecture
//
// A [Loop] is the runtime core: a ready queue (FIFO), a timeout queue
// (deadline min-heap), a lifecycle interest registry ({Stop, Reload} ->
// ordered Callbacks), and a poll adapter over platform-native I/O
// readiness (epoll on Linux, kqueue on Darwin, WSAPoll on Windows). Work
// is represented uniformly as a [Callback] bound to an [Event] parameter
// and fired at most once; submitting work returns an [Action] that
// cancels it idempotently.
//
// # Platform Support
//
// I/O polling is implemented using platform-native mechanisms:
//   - Linux: epoll (poller_linux.go)
//   - Darwin: kqueue (poller_darwin.go)
//   - Windows: WSAPoll, socket-only (poller_windows.go)
//
// # Thread Safety
//
// [Loop.Schedule], [Loop.Timeout], [Loop.RegisterInterest], and
// [Loop.Poll] are safe to call from any goroutine. Callback *execution*
// happens exclusively on the single goroutine running [Loop.Start] — the
// loop is cooperative, not concurrent, by design.
//
// # Iteration order
//
// Each iteration of [Loop.Start]: drain due lifecycle interests, fire
// expired timers, perform one ready Callback (configurable via
// [WithPollBatchSize]), opportunistically poll for fresh I/O if the
// ready queue is still non-empty, then block in the poll adapter only
// when there is nothing left pending.
//
// # Usage
//
//	loop, err := reactor.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer loop.Close()
//
//	loop.Schedule(reactor.NewCallback(func(ev reactor.Event) {
//	    fmt.Println("hello from the ready queue")
//	    loop.Stop()
//	}))
//
//	if err := loop.Start(); err != nil {
//	    log.Fatal(err)
//	}
package reactor
