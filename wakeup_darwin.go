//go:build darwin

package reactor

import (
	"golang.org/x/sys/unix"
)

// createWakeFD creates a nonblocking self-pipe used to interrupt a
// blocking kevent wait from another goroutine. Darwin has no eventfd
// equivalent, so a pipe stands in as the self-pipe fallback.
func createWakeFD() (readFD, writeFD int, err error) {
	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		return -1, -1, err
	}
	if err := unix.SetNonblock(fds[0], true); err != nil {
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
		return -1, -1, err
	}
	if err := unix.SetNonblock(fds[1], true); err != nil {
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
		return -1, -1, err
	}
	return fds[0], fds[1], nil
}

func wakeFD(writeFD int) error {
	_, err := unix.Write(writeFD, []byte{0})
	if err != nil && err != unix.EAGAIN {
		return err
	}
	return nil
}

func drainWakeFD(readFD int) {
	var buf [64]byte
	for {
		_, err := unix.Read(readFD, buf[:])
		if err != nil {
			return
		}
	}
}

func closeWakeFD(readFD, writeFD int) {
	_ = unix.Close(readFD)
	_ = unix.Close(writeFD)
}
