//go:build windows

package reactor

import (
	"golang.org/x/sys/windows"
)

// createWakeFD opens a loopback TCP socket pair used to interrupt a
// blocking WSAPoll from another goroutine. Windows has no anonymous
// pipe usable with WSAPoll, so a loopback connection stands in for the
// Unix self-pipe/eventfd used on the other backends.
func createWakeFD() (readFD, writeFD int, err error) {
	r, w, err := loopbackSocketPair()
	if err != nil {
		return -1, -1, err
	}
	return int(r), int(w), nil
}

func wakeFD(writeFD int) error {
	_, err := windows.Send(windows.Handle(writeFD), []byte{0}, 0)
	if err != nil && err != windows.WSAEWOULDBLOCK {
		return err
	}
	return nil
}

func drainWakeFD(readFD int) {
	var buf [64]byte
	for {
		_, _, err := windows.Recvfrom(windows.Handle(readFD), buf[:], 0)
		if err != nil {
			return
		}
	}
}

func closeWakeFD(readFD, writeFD int) {
	_ = windows.Closesocket(windows.Handle(readFD))
	_ = windows.Closesocket(windows.Handle(writeFD))
}

// loopbackSocketPair creates two connected TCP sockets over the loopback
// interface, the closest Windows equivalent to socketpair(2).
func loopbackSocketPair() (a, b windows.Handle, err error) {
	listener, err := windows.Socket(windows.AF_INET, windows.SOCK_STREAM, 0)
	if err != nil {
		return 0, 0, err
	}
	defer windows.Closesocket(listener)

	addr := &windows.SockaddrInet4{Port: 0, Addr: [4]byte{127, 0, 0, 1}}
	if err := windows.Bind(listener, addr); err != nil {
		return 0, 0, err
	}
	if err := windows.Listen(listener, 1); err != nil {
		return 0, 0, err
	}
	boundAddr, err := windows.Getsockname(listener)
	if err != nil {
		return 0, 0, err
	}
	boundInet, ok := boundAddr.(*windows.SockaddrInet4)
	if !ok {
		return 0, 0, &OperationError{Op: "poll.wake.init", Errno: 0}
	}

	connSock, err := windows.Socket(windows.AF_INET, windows.SOCK_STREAM, 0)
	if err != nil {
		return 0, 0, err
	}
	connectAddr := &windows.SockaddrInet4{Port: boundInet.Port, Addr: [4]byte{127, 0, 0, 1}}
	if err := windows.Connect(connSock, connectAddr); err != nil {
		windows.Closesocket(connSock)
		return 0, 0, err
	}

	acceptSock, _, err := windows.Accept(listener)
	if err != nil {
		windows.Closesocket(connSock)
		return 0, 0, err
	}

	if err := windows.SetNonblock(acceptSock, true); err != nil {
		windows.Closesocket(acceptSock)
		windows.Closesocket(connSock)
		return 0, 0, err
	}
	if err := windows.SetNonblock(connSock, true); err != nil {
		windows.Closesocket(acceptSock)
		windows.Closesocket(connSock)
		return 0, 0, err
	}

	return acceptSock, connSock, nil
}
