//go:build !windows

package net

import (
	"net"
	"os"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/wanproxy-go/reactor"
)

// UDPClient: unlike TCP, a UDP "connect" only binds the kernel's default
// destination for the socket and completes synchronously, but is still
// routed through the event loop's scheduling so callers observe it the
// same way as any other asynchronous operation.
type UDPClient struct{}

// NewUDPClient constructs a UDPClient.
func NewUDPClient() *UDPClient { return &UDPClient{} }

// Connect creates a UDP socket connected to addr and schedules cb with
// Event{Type: EventDone, Value: net.Conn}. Failures to resolve, create or
// connect the socket are returned as an error and cb is not scheduled.
// The returned Action cancels delivery and, if called before the
// connection has been handed to cb, closes the socket; cancelling after
// that is a no-op.
func (c *UDPClient) Connect(loop *reactor.Loop, addr string, cb *reactor.Callback) (*reactor.Action, error) {
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, &reactor.OperationError{Op: "net.udp.resolve", Cause: err}
	}

	domain := unix.AF_INET
	sockaddr, err := toSockaddrUDP(raddr)
	if err != nil {
		return nil, &reactor.OperationError{Op: "net.udp.resolve", Cause: err}
	}
	if _, ok := sockaddr.(*unix.SockaddrInet6); ok {
		domain = unix.AF_INET6
	}

	fd, err := unix.Socket(domain, unix.SOCK_DGRAM, unix.IPPROTO_UDP)
	if err != nil {
		return nil, &reactor.OperationError{Op: "net.udp.socket", Cause: err}
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, &reactor.OperationError{Op: "net.udp.setnonblock", Cause: err}
	}
	if err := unix.Connect(fd, sockaddr); err != nil {
		unix.Close(fd)
		return nil, &reactor.OperationError{Op: "net.udp.connect", Cause: err}
	}

	f := os.NewFile(uintptr(fd), "udp-client")
	conn, cerr := net.FileConn(f)
	f.Close()
	if cerr != nil {
		unix.Close(fd)
		return nil, &reactor.OperationError{Op: "net.udp.fileconn", Cause: cerr}
	}

	cb.Param(reactor.DoneValue(conn))
	// claimed decides, once, whether delivery or cancellation owns conn.
	var claimed atomic.Bool
	scheduled := loop.Schedule(reactor.NewCallback(func(reactor.Event) {
		if claimed.CompareAndSwap(false, true) {
			loop.Schedule(cb)
		}
	}))

	return reactor.NewCancellationAction(func() {
		scheduled.Cancel()
		if claimed.CompareAndSwap(false, true) {
			conn.Close()
		}
	}), nil
}

func toSockaddrUDP(addr *net.UDPAddr) (unix.Sockaddr, error) {
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
