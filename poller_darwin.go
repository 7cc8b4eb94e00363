//go:build darwin

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

// ioPoller is the Darwin kqueue backend for the poll adapter,
// structured the same way as the epoll backend in poller_linux.go,
// adapted to kqueue's filter-per-direction model (EVFILT_READ/EVFILT_WRITE are
// independent filters on the same kq, which maps naturally onto
// per-(fd, interest) registration).
type ioPoller struct {
	mu       sync.Mutex
	kq       int
	fds      map[int]*fdRegistration
	eventBuf []unix.Kevent_t
	closed   bool
	schedule func(*Callback)

	wakeReadFD, wakeWriteFD int
}

func newIOPoller(schedule func(*Callback)) (*ioPoller, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, &OperationError{Op: "poll.init", Cause: err}
	}
	wakeReadFD, wakeWriteFD, err := createWakeFD()
	if err != nil {
		_ = unix.Close(kq)
		return nil, &OperationError{Op: "poll.wake.init", Cause: err}
	}
	wakeEv := unix.Kevent_t{
		Ident:  uint64(wakeReadFD),
		Filter: unix.EVFILT_READ,
		Flags:  unix.EV_ADD | unix.EV_CLEAR,
	}
	if _, err := unix.Kevent(kq, []unix.Kevent_t{wakeEv}, nil, nil); err != nil {
		_ = unix.Close(kq)
		closeWakeFD(wakeReadFD, wakeWriteFD)
		return nil, &OperationError{Op: "poll.wake.register", Cause: err}
	}
	return &ioPoller{
		kq:          kq,
		fds:         make(map[int]*fdRegistration),
		eventBuf:    make([]unix.Kevent_t, 256),
		schedule:    schedule,
		wakeReadFD:  wakeReadFD,
		wakeWriteFD: wakeWriteFD,
	}, nil
}

func kqueueFilter(interest IOInterest) int16 {
	if interest == InterestWrite {
		return unix.EVFILT_WRITE
	}
	return unix.EVFILT_READ
}

// register records cb against (fd, interest) and arms the kqueue filter.
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
	p.fds[fd] = reg

	ev := unix.Kevent_t{
		Ident:  uint64(fd),
		Filter: kqueueFilter(interest),
		Flags:  unix.EV_ADD | unix.EV_ONESHOT,
	}
	_, err := unix.Kevent(p.kq, []unix.Kevent_t{ev}, nil, nil)
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

	if !p.closed {
		ev := unix.Kevent_t{
			Ident:  uint64(fd),
			Filter: kqueueFilter(interest),
			Flags:  unix.EV_DELETE,
		}
		_, _ = unix.Kevent(p.kq, []unix.Kevent_t{ev}, nil, nil)
	}
	if reg.empty() {
		delete(p.fds, fd)
	}
}

// wait blocks for at most timeout (nil means indefinitely, non-nil zero
// means return immediately), dispatching fired Callbacks to schedule.
// EV_ONESHOT registrations are automatically deregistered by the kernel
// once they fire, matching epoll's level-triggered-then-removed contract
// used by the Linux backend.
func (p *ioPoller) wait(timeout *time.Duration) error {
	var ts *unix.Timespec
	if timeout != nil {
		t := unix.NsecToTimespec(timeout.Nanoseconds())
		ts = &t
	}

	n, err := unix.Kevent(p.kq, nil, p.eventBuf, ts)
	if err != nil {
		if err == unix.EINTR {
			return nil
		}
		return &OperationError{Op: "poll.wait", Cause: err}
	}

	for i := 0; i < n; i++ {
		ev := p.eventBuf[i]
		fd := int(ev.Ident)
		if fd == p.wakeReadFD {
			drainWakeFD(p.wakeReadFD)
			continue
		}
		var interest IOInterest
		if ev.Filter == unix.EVFILT_WRITE {
			interest = InterestWrite
		} else {
			interest = InterestRead
		}
		p.dispatch(fd, interest, ev.Flags&unix.EV_ERROR != 0)
	}
	return nil
}

func (p *ioPoller) dispatch(fd int, interest IOInterest, errored bool) {
	p.mu.Lock()
	reg, ok := p.fds[fd]
	if !ok {
		p.mu.Unlock()
		return
	}

	var cb *Callback
	switch interest {
	case InterestRead:
		cb = reg.read
		reg.read = nil
	case InterestWrite:
		cb = reg.write
		reg.write = nil
	}
	if reg.empty() {
		delete(p.fds, fd)
	}
	p.mu.Unlock()

	if cb == nil {
		return
	}
	if errored {
		cb.Param(ErrEvent(int(unix.EIO)))
	} else {
		cb.Param(Done(nil))
	}
	p.schedule(cb)
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

// close releases the kqueue fd and wake primitive.
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
	return unix.Close(p.kq)
}
