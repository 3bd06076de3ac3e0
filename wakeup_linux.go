//go:build linux

package reactor

import "golang.org/x/sys/unix"

// createWakeFd creates a non-blocking eventfd used as this shard's wakeup
// signal: writing any nonzero value to it makes epoll_wait return
// immediately with EPOLLIN on this fd.
func createWakeFd() (int, error) {
	return unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
}

// closeWakeFd releases the wakeup eventfd.
func closeWakeFd(fd int) error {
	if fd < 0 {
		return nil
	}
	return unix.Close(fd)
}

// drainWakeFd reads (and discards) the accumulated counter value, so a
// burst of concurrent Wakeup calls collapses into a single readiness
// notification rather than leaving the eventfd permanently readable.
func drainWakeFd(fd int) {
	var buf [8]byte
	for {
		if _, err := unix.Read(fd, buf[:]); err != nil {
			return
		}
	}
}

// submitWakeup increments the eventfd counter by one, which is all that's
// needed to make epoll_wait return -- concurrent submitWakeup calls that
// land before the next drainWakeFd coalesce into a single wakeup, by
// design of eventfd's counter semantics.
func submitWakeup(fd int) error {
	var buf [8]byte
	buf[0] = 1
	_, err := unix.Write(fd, buf[:])
	return err
}
