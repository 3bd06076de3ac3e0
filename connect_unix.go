//go:build linux || darwin

package reactor

import (
	"errors"
	"net"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// errConnectInProgress is a sentinel, not a wrapped syscall error: it tells
// the connect state machine "this connect is still pending", distinct from
// any value probeConnect might return once the outcome is known.
var errConnectInProgress = errors.New("reactor: connect in progress")

// dialNonblocking creates a non-blocking socket and issues connect(2).
// pending reports that the connect returned EINPROGRESS -- the normal
// asynchronous case, resolved later through the selector -- as opposed to
// completing immediately (loopback fast path). An immediately-failing
// connect closes the socket and returns its error directly.
func dialNonblocking(addr *net.TCPAddr) (fd int, sa unix.Sockaddr, pending bool, err error) {
	domain := unix.AF_INET
	if addr.IP.To4() == nil {
		domain = unix.AF_INET6
	}

	fd, err = unix.Socket(domain, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return -1, nil, false, err
	}
	if err := setNonblocking(fd); err != nil {
		_ = closeFD(fd)
		return -1, nil, false, err
	}

	sa, err = sockaddrFor(addr)
	if err != nil {
		_ = closeFD(fd)
		return -1, nil, false, err
	}

	switch err = unix.Connect(fd, sa); err {
	case nil:
		return fd, sa, false, nil
	case unix.EINPROGRESS:
		return fd, sa, true, nil
	default:
		_ = closeFD(fd)
		return -1, nil, false, err
	}
}

// probeConnect re-issues connect(2) against the original address to learn
// an in-flight connect's outcome: the kernel reports EISCONN (or plain
// success) once the handshake finished, EINPROGRESS/EALREADY while it is
// still pending, and the connect's real error once it failed. SO_ERROR is
// no substitute here -- it reads 0 for a connect that is merely still in
// progress, which is indistinguishable from success.
func probeConnect(fd int, sa unix.Sockaddr) error {
	switch err := unix.Connect(fd, sa); err {
	case nil, unix.EISCONN:
		return nil
	case unix.EINPROGRESS, unix.EALREADY, unix.EINTR:
		return errConnectInProgress
	default:
		return err
	}
}

func sockaddrFor(addr *net.TCPAddr) (unix.Sockaddr, error) {
	if ip4 := addr.IP.To4(); ip4 != nil {
		var sa unix.SockaddrInet4
		sa.Port = addr.Port
		copy(sa.Addr[:], ip4)
		return &sa, nil
	}
	var sa unix.SockaddrInet6
	sa.Port = addr.Port
	copy(sa.Addr[:], addr.IP.To16())
	return &sa, nil
}

// fdConn is a minimal net.Conn wrapping a raw, already-connected
// non-blocking fd, used as TCPConnector's result type. It is intentionally
// bare: the reactor's job ends at delivering "this fd is connected", not at
// providing a full-featured net.Conn implementation.
type fdConn struct {
	fd int
	f  *os.File
}

func newFDConn(fd int) net.Conn {
	f := os.NewFile(uintptr(fd), "reactor-conn")
	return &fdConn{fd: fd, f: f}
}

func (c *fdConn) Read(b []byte) (int, error)  { return c.f.Read(b) }
func (c *fdConn) Write(b []byte) (int, error) { return c.f.Write(b) }
func (c *fdConn) Close() error                { return c.f.Close() }
func (c *fdConn) LocalAddr() net.Addr         { return tcpAddrOf(c.fd, true) }
func (c *fdConn) RemoteAddr() net.Addr        { return tcpAddrOf(c.fd, false) }

func (c *fdConn) SetDeadline(t time.Time) error      { return c.f.SetDeadline(t) }
func (c *fdConn) SetReadDeadline(t time.Time) error  { return c.f.SetReadDeadline(t) }
func (c *fdConn) SetWriteDeadline(t time.Time) error { return c.f.SetWriteDeadline(t) }

func tcpAddrOf(fd int, local bool) net.Addr {
	var sa unix.Sockaddr
	var err error
	if local {
		sa, err = unix.Getsockname(fd)
	} else {
		sa, err = unix.Getpeername(fd)
	}
	if err != nil {
		return nil
	}
	switch v := sa.(type) {
	case *unix.SockaddrInet4:
		return &net.TCPAddr{IP: v.Addr[:], Port: v.Port}
	case *unix.SockaddrInet6:
		return &net.TCPAddr{IP: v.Addr[:], Port: v.Port}
	default:
		return nil
	}
}
