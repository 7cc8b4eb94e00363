//go:build linux

package reactor

import (
	"encoding/binary"

	"golang.org/x/sys/unix"
)

// createWakeFD creates a nonblocking eventfd used to interrupt a blocking
// epoll_wait from another goroutine, so that submitting work during a
// bounded/indefinite wait ends that wait promptly.
// The same fd serves as both read and write end.
func createWakeFD() (readFD, writeFD int, err error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return -1, -1, err
	}
	return fd, fd, nil
}

// wakeFD signals the eventfd, causing a pending epoll_wait to return.
func wakeFD(writeFD int) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], 1)
	_, err := unix.Write(writeFD, buf[:])
	if err != nil && err != unix.EAGAIN {
		return err
	}
	return nil
}

// drainWakeFD consumes any pending wake signals so the eventfd does not
// immediately re-fire as readable on the next wait.
func drainWakeFD(readFD int) {
	var buf [8]byte
	for {
		_, err := unix.Read(readFD, buf[:])
		if err != nil {
			return
		}
	}
}

func closeWakeFD(readFD, writeFD int) {
	_ = unix.Close(readFD)
	if writeFD != readFD {
		_ = unix.Close(writeFD)
	}
}
