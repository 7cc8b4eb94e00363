//go:build linux

package reactor

import (
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// fdRegistration tracks the (up to) two independent interests a single fd
// may have registered — a read Callback and a write Callback — per
// SPEC_FULL.md §4.E's "keyed by (fd, interest) pairs, not by fd alone."
type fdRegistration struct {
	read, write *Callback
}

func (r *fdRegistration) empty() bool { return r.read == nil && r.write == nil }

func (r *fdRegistration) epollMask() uint32 {
	var m uint32
	if r.read != nil {
		m |= unix.EPOLLIN
	}
	if r.write != nil {
		m |= unix.EPOLLOUT
	}
	return m
}

// ioPoller is the Linux epoll backend for the poll adapter, structured
// around independent per-(fd, interest) Callbacks instead of one combined-mask
// registration per fd, and around delivering readiness by scheduling onto
// a caller-supplied ready queue rather than invoking directly.
type ioPoller struct {
	mu       sync.Mutex
	epfd     int
	fds      map[int]*fdRegistration
	eventBuf []unix.EpollEvent
	closed   bool
	schedule func(*Callback)

	wakeReadFD, wakeWriteFD int
}

func newIOPoller(schedule func(*Callback)) (*ioPoller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, &OperationError{Op: "poll.init", Cause: err}
	}
	wakeReadFD, wakeWriteFD, err := createWakeFD()
	if err != nil {
		_ = unix.Close(epfd)
		return nil, &OperationError{Op: "poll.wake.init", Cause: err}
	}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakeReadFD, &unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wakeReadFD)}); err != nil {
		_ = unix.Close(epfd)
		closeWakeFD(wakeReadFD, wakeWriteFD)
		return nil, &OperationError{Op: "poll.wake.register", Cause: err}
	}
	return &ioPoller{
		epfd:        epfd,
		fds:         make(map[int]*fdRegistration),
		eventBuf:    make([]unix.EpollEvent, 256),
		schedule:    schedule,
		wakeReadFD:  wakeReadFD,
		wakeWriteFD: wakeWriteFD,
	}, nil
}

// register records cb against (fd, interest) and arms the epoll
// registration. If the pair is already registered, cb fires EventError
// immediately (via schedule, never invoked synchronously from the
// registering goroutine) and the returned Action is inert.
func (p *ioPoller) register(fd int, interest IOInterest, cb *Callback) *Action {
	p.mu.Lock()

	if p.closed {
		p.mu.Unlock()
		cb.Param(Failure(&OperationError{Op: "poll.register", Cause: ErrPollerClosed}))
		p.schedule(cb)
		return newCancellationAction(func() {})
	}

	reg, ok := p.fds[fd]
	if !ok {
		reg = &fdRegistration{}
	}

	var slot *(*Callback)
	switch interest {
	case InterestRead:
		slot = &reg.read
	case InterestWrite:
		slot = &reg.write
	}

	if *slot != nil {
		p.mu.Unlock()
		cb.Param(Failure(&OperationError{Op: "poll.register", Cause: ErrFDAlreadyRegistered}))
		p.schedule(cb)
		return newCancellationAction(func() {})
	}

	*slot = cb
	ctlOp := unix.EPOLL_CTL_MOD
	if !ok {
		ctlOp = unix.EPOLL_CTL_ADD
	}
	mask := reg.epollMask()
	p.fds[fd] = reg
	err := unix.EpollCtl(p.epfd, ctlOp, fd, &unix.EpollEvent{Events: mask, Fd: int32(fd)})
	if err != nil {
		*slot = nil
		if reg.empty() {
			delete(p.fds, fd)
		}
	}
	p.mu.Unlock()

	if err != nil {
		cb.Param(Failure(&OperationError{Op: "poll.register", Cause: err}))
		p.schedule(cb)
		return newCancellationAction(func() {})
	}

	return newCancellationAction(func() {
		p.clearInterest(fd, interest)
	})
}

// clearInterest removes cb's registration for (fd, interest), updating or
// removing the epoll registration as appropriate. Safe to call whether or
// not the pair has already fired.
func (p *ioPoller) clearInterest(fd int, interest IOInterest) {
	p.mu.Lock()
	defer p.mu.Unlock()

	reg, ok := p.fds[fd]
	if !ok {
		return
	}
	switch interest {
	case InterestRead:
		reg.read = nil
	case InterestWrite:
		reg.write = nil
	}

	if reg.empty() {
		delete(p.fds, fd)
		if !p.closed {
			_ = unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
		}
		return
	}
	if !p.closed {
		_ = unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, &unix.EpollEvent{Events: reg.epollMask(), Fd: int32(fd)})
	}
}

// wait blocks for at most timeout (nil means indefinitely, non-nil zero
// means return immediately) until at least one registered fd is ready or
// the poller is woken via wake, dispatching fired Callbacks to schedule.
// Level-triggered: once dispatched, a Callback's registration is removed
// and the fd must be re-registered by the caller to observe it again.
func (p *ioPoller) wait(timeout *time.Duration) error {
	ms := -1
	if timeout != nil {
		ms = int(*timeout / time.Millisecond)
		if ms < 0 {
			ms = 0
		}
	}

	n, err := unix.EpollWait(p.epfd, p.eventBuf, ms)
	if err != nil {
		if err == unix.EINTR {
			return nil
		}
		return &OperationError{Op: "poll.wait", Cause: err}
	}

	for i := 0; i < n; i++ {
		ev := p.eventBuf[i]
		fd := int(ev.Fd)
		if fd == p.wakeReadFD {
			drainWakeFD(p.wakeReadFD)
			continue
		}
		p.dispatch(fd, ev.Events)
	}
	return nil
}

// dispatch delivers readiness/error events for fd and removes the fired
// interests from the registration.
func (p *ioPoller) dispatch(fd int, events uint32) {
	p.mu.Lock()
	reg, ok := p.fds[fd]
	if !ok {
		p.mu.Unlock()
		return
	}

	errored := events&(unix.EPOLLERR|unix.EPOLLHUP) != 0
	var readCB, writeCB *Callback

	if (events&unix.EPOLLIN != 0 || errored) && reg.read != nil {
		readCB = reg.read
		reg.read = nil
	}
	if (events&unix.EPOLLOUT != 0 || errored) && reg.write != nil {
		writeCB = reg.write
		reg.write = nil
	}

	if reg.empty() {
		delete(p.fds, fd)
		_ = unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	} else {
		_ = unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, &unix.EpollEvent{Events: reg.epollMask(), Fd: int32(fd)})
	}
	p.mu.Unlock()

	if readCB != nil {
		if errored {
			readCB.Param(ErrEvent(int(unix.EIO)))
		} else {
			readCB.Param(Done(nil))
		}
		p.schedule(readCB)
	}
	if writeCB != nil {
		if errored {
			writeCB.Param(ErrEvent(int(unix.EIO)))
		} else {
			writeCB.Param(Done(nil))
		}
		p.schedule(writeCB)
	}
}

// wake interrupts a blocking wait from another goroutine.
func (p *ioPoller) wake() {
	_ = wakeFD(p.wakeWriteFD)
}

// idle reports whether no fds are currently registered.
func (p *ioPoller) idle() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.fds) == 0
}

// close releases the epoll fd and wake primitive. Further register calls
// fail by firing EventError on the supplied Callback.
func (p *ioPoller) close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.fds = make(map[int]*fdRegistration)
	p.mu.Unlock()

	closeWakeFD(p.wakeReadFD, p.wakeWriteFD)
	return unix.Close(p.epfd)
}
