//go:build linux || darwin

package reactor

import "golang.org/x/sys/unix"

// closeFD closes a file descriptor, treating a negative fd as already
// closed. A second close of the same non-negative fd is passed straight
// to close(2).
func closeFD(fd int) error {
	if fd < 0 {
		return nil
	}
	return unix.Close(fd)
}

// setNonblocking marks fd non-blocking, a prerequisite for registering it
// with this shard's readiness-model backend: a blocking fd would never
// report EAGAIN/EINPROGRESS, and the whole publish-then-recheck protocol
// depends on connect/read/write returning immediately one way or another.
func setNonblocking(fd int) error {
	return unix.SetNonblock(fd, true)
}
