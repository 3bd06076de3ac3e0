//go:build darwin

package reactor

import "syscall"

// wakePipe is a self-pipe wakeup signal: kqueue has no eventfd
// equivalent, so a pipe registered for EVFILT_READ is the idiomatic
// substitute, following the same pattern this codebase's Darwin backend
// has always used.
type wakePipe struct {
	readFD, writeFD int
}

func createWakePipe() (wakePipe, error) {
	var fds [2]int
	if err := syscall.Pipe(fds[:]); err != nil {
		return wakePipe{}, err
	}
	if err := syscall.SetNonblock(fds[0], true); err != nil {
		_ = syscall.Close(fds[0])
		_ = syscall.Close(fds[1])
		return wakePipe{}, err
	}
	if err := syscall.SetNonblock(fds[1], true); err != nil {
		_ = syscall.Close(fds[0])
		_ = syscall.Close(fds[1])
		return wakePipe{}, err
	}
	syscall.CloseOnExec(fds[0])
	syscall.CloseOnExec(fds[1])
	return wakePipe{readFD: fds[0], writeFD: fds[1]}, nil
}

func (p wakePipe) drain() {
	var buf [64]byte
	for {
		if _, err := syscall.Read(p.readFD, buf[:]); err != nil {
			return
		}
	}
}

func (p wakePipe) submit() error {
	_, err := syscall.Write(p.writeFD, []byte{1})
	return err
}

func (p wakePipe) close() error {
	_ = syscall.Close(p.readFD)
	if p.writeFD != p.readFD {
		_ = syscall.Close(p.writeFD)
	}
	return nil
}
