//go:build windows

package reactor

import (
	"sync"
	"time"

	"golang.org/x/sys/windows"
)

// fdRegistration tracks the (up to) two independent interests a single
// socket may have registered — a read Callback and a write Callback —
// per SPEC_FULL.md §4.E's "keyed by (fd, interest) pairs, not by fd
// alone."
type fdRegistration struct {
	read, write *Callback
}

func (r *fdRegistration) empty() bool { return r.read == nil && r.write == nil }

func (r *fdRegistration) pollEvents() int16 {
	var m int16
	if r.read != nil {
		m |= windows.POLLRDNORM
	}
	if r.write != nil {
		m |= windows.POLLWRNORM
	}
	return m
}

// ioPoller is the Windows backend for the poll adapter, built on
// WSAPoll. Unlike epoll/kqueue, WSAPoll only operates on sockets, so
// registering a non-socket fd fails with EventError — a documented
// limitation of this backend relative to the Linux/Darwin ones, noted in
// the design ledger rather than hidden.
type ioPoller struct {
	mu       sync.Mutex
	fds      map[int]*fdRegistration
	order    []int
	closed   bool
	schedule func(*Callback)

	wakeReadFD, wakeWriteFD int
}

func newIOPoller(schedule func(*Callback)) (*ioPoller, error) {
	wakeReadFD, wakeWriteFD, err := createWakeFD()
	if err != nil {
		return nil, &OperationError{Op: "poll.wake.init", Cause: err}
	}
	p := &ioPoller{
		fds:         make(map[int]*fdRegistration),
		schedule:    schedule,
		wakeReadFD:  wakeReadFD,
		wakeWriteFD: wakeWriteFD,
	}
	p.trackFD(wakeReadFD)
	return p, nil
}

func (p *ioPoller) trackFD(fd int) {
	if _, ok := p.fds[fd]; !ok {
		p.fds[fd] = &fdRegistration{}
		p.order = append(p.order, fd)
	}
}

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
		p.fds[fd] = reg
		p.order = append(p.order, fd)
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
	p.mu.Unlock()

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
	if reg.empty() && fd != p.wakeReadFD {
		delete(p.fds, fd)
		for i, f := range p.order {
			if f == fd {
				p.order = append(p.order[:i], p.order[i+1:]...)
				break
			}
		}
	}
}

// wait blocks for at most timeout (nil means indefinitely, non-nil zero
// means return immediately), dispatching fired Callbacks to schedule.
func (p *ioPoller) wait(timeout *time.Duration) error {
	p.mu.Lock()
	fds := make([]windows.WSAPollFd, 0, len(p.order))
	for _, fd := range p.order {
		reg := p.fds[fd]
		events := reg.pollEvents()
		if fd == p.wakeReadFD {
			events |= windows.POLLRDNORM
		}
		if events == 0 {
			continue
		}
		fds = append(fds, windows.WSAPollFd{Fd: windows.Handle(fd), Events: events})
	}
	p.mu.Unlock()

	if len(fds) == 0 {
		return nil
	}

	ms := int32(-1)
	if timeout != nil {
		ms = int32(*timeout / time.Millisecond)
		if ms < 0 {
			ms = 0
		}
	}

	n, err := windows.WSAPoll(fds, ms)
	if err != nil {
		return &OperationError{Op: "poll.wait", Cause: err}
	}
	if n == 0 {
		return nil
	}

	for _, pfd := range fds {
		if pfd.REvents == 0 {
			continue
		}
		fd := int(pfd.Fd)
		if fd == p.wakeReadFD {
			drainWakeFD(p.wakeReadFD)
			continue
		}
		errored := pfd.REvents&(windows.POLLERR|windows.POLLHUP) != 0
		if pfd.REvents&windows.POLLRDNORM != 0 || errored {
			p.dispatch(fd, InterestRead, errored)
		}
		if pfd.REvents&windows.POLLWRNORM != 0 || errored {
			p.dispatch(fd, InterestWrite, errored)
		}
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
	if reg.empty() && fd != p.wakeReadFD {
		delete(p.fds, fd)
		for i, f := range p.order {
			if f == fd {
				p.order = append(p.order[:i], p.order[i+1:]...)
				break
			}
		}
	}
	p.mu.Unlock()

	if cb == nil {
		return
	}
	if errored {
		cb.Param(ErrEvent(int(windows.WSAECONNRESET)))
	} else {
		cb.Param(Done(nil))
	}
	p.schedule(cb)
}

func (p *ioPoller) wake() {
	_ = wakeFD(p.wakeWriteFD)
}

func (p *ioPoller) idle() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.fds) <= 1 // only the wake fd tracked
}

func (p *ioPoller) close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.fds = make(map[int]*fdRegistration)
	p.order = nil
	p.mu.Unlock()

	closeWakeFD(p.wakeReadFD, p.wakeWriteFD)
	return nil
}
