// Package net provides non-blocking TCP/UDP client façades over the
// reactor's poll adapter: a socket is created, connect is issued
// non-blockingly, and completion is observed by registering write
// interest with the event loop rather than blocking the caller.
//
// Built only for Unix targets: constructing the raw, non-blocking socket
// fd this package hands to reactor.Loop.Poll requires golang.org/x/sys/unix,
// whose socket syscalls are not available on Windows (see DESIGN.md).
//
//go:build !windows

package net

import (
	"net"
	"os"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/wanproxy-go/reactor"
)

// TCPClient is a stateless façade — Connect is effectively a static
// factory method and carries no per-client fields.
type TCPClient struct{}

// NewTCPClient constructs a TCPClient.
func NewTCPClient() *TCPClient { return &TCPClient{} }

// Connect dials addr ("host:port") non-blockingly and schedules cb once
// the connection completes or fails. On success cb observes
// Event{Type: EventDone, Value: net.Conn}; on failure,
// Event{Type: EventError, Err: *reactor.OperationError}.
//
// The returned Action cancels the in-flight connect: the underlying
// socket is closed and cb is never invoked. Cancelling after the connect
// has completed is a no-op.
func (c *TCPClient) Connect(loop *reactor.Loop, addr string, cb *reactor.Callback) (*reactor.Action, error) {
	raddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, &reactor.OperationError{Op: "net.tcp.resolve", Cause: err}
	}

	domain := unix.AF_INET
	sockaddr, err := toSockaddr(raddr)
	if err != nil {
		return nil, &reactor.OperationError{Op: "net.tcp.resolve", Cause: err}
	}
	if _, ok := sockaddr.(*unix.SockaddrInet6); ok {
		domain = unix.AF_INET6
	}

	fd, err := unix.Socket(domain, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return nil, &reactor.OperationError{Op: "net.tcp.socket", Cause: err}
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, &reactor.OperationError{Op: "net.tcp.setnonblock", Cause: err}
	}

	err = unix.Connect(fd, sockaddr)
	if err != nil && err != unix.EINPROGRESS {
		unix.Close(fd)
		return nil, &reactor.OperationError{Op: "net.tcp.connect", Cause: err}
	}

	// claimed decides, once, whether completion or cancellation owns fd.
	var claimed atomic.Bool
	pollCB := reactor.NewCallback(func(ev reactor.Event) {
		if !claimed.CompareAndSwap(false, true) {
			return
		}
		if ev.Type != reactor.EventDone {
			unix.Close(fd)
			if ev.Err == nil {
				ev.Err = &reactor.OperationError{Op: "net.tcp.connect", Errno: ev.Errno}
			}
			cb.Param(ev)
			loop.Schedule(cb)
			return
		}

		if errno, serr := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR); serr != nil || errno != 0 {
			unix.Close(fd)
			if serr == nil {
				serr = unix.Errno(errno)
			}
			cb.Param(reactor.Failure(&reactor.OperationError{Op: "net.tcp.connect", Cause: serr}))
			loop.Schedule(cb)
			return
		}

		f := os.NewFile(uintptr(fd), "tcp-client")
		conn, cerr := net.FileConn(f)
		f.Close()
		if cerr != nil {
			cb.Param(reactor.Failure(&reactor.OperationError{Op: "net.tcp.fileconn", Cause: cerr}))
			loop.Schedule(cb)
			return
		}

		cb.Param(reactor.DoneValue(conn))
		loop.Schedule(cb)
	})

	action, perr := loop.Poll(reactor.InterestWrite, fd, pollCB)
	if perr != nil {
		unix.Close(fd)
		return nil, perr
	}

	// Composite cancellation: cancel the pending poll registration, then
	// close the socket unless completion has already taken it over.
	return reactor.NewCancellationAction(func() {
		action.Cancel()
		if claimed.CompareAndSwap(false, true) {
			unix.Close(fd)
		}
	}), nil
}

func toSockaddr(addr *net.TCPAddr) (unix.Sockaddr, error) {
	if ip4 := addr.IP.To4(); ip4 != nil {
		var sa unix.SockaddrInet4
		copy(sa.Addr[:], ip4)
		sa.Port = addr.Port
		return &sa, nil
	}
	var sa unix.SockaddrInet6
	copy(sa.Addr[:], addr.IP.To16())
	sa.Port = addr.Port
	return &sa, nil
}
