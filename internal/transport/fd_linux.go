//go:build linux

package transport

import (
	"io"
	"net/netip"

	"golang.org/x/sys/unix"

	muderr "sockmud/internal/errors"
)

// FDConn is a Conn backed by a non-blocking socket descriptor.
type FDConn struct {
	fd   int
	peer netip.AddrPort
}

var _ Conn = (*FDConn)(nil)

// NewConn adopts an already-open socket descriptor, typically one
// inherited across a copyover.  The descriptor is switched to
// non-blocking, close-on-exec mode.
func NewConn(fd int) (*FDConn, error) {
	if err := unix.SetNonblock(fd, true); err != nil {
		return nil, muderr.Wrap("adopt", "fd", err)
	}
	unix.CloseOnExec(fd)

	var peer netip.AddrPort
	if sa, err := unix.Getpeername(fd); err == nil {
		peer = fromSockaddr(sa)
	}
	return &FDConn{fd: fd, peer: peer}, nil
}

func (c *FDConn) Read(p []byte) (int, error) {
	for {
		n, err := unix.Read(c.fd, p)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return 0, err
		}
		if n == 0 && len(p) > 0 {
			return 0, io.EOF
		}
		return n, nil
	}
}

func (c *FDConn) Write(p []byte) (int, error) {
	for {
		n, err := unix.Write(c.fd, p)
		if err == unix.EINTR {
			continue
		}
		if n < 0 {
			n = 0
		}
		return n, err
	}
}

// Close closes the descriptor.
func (c *FDConn) Close() error { return unix.Close(c.fd) }

// Fd returns the descriptor number.
func (c *FDConn) Fd() int { return c.fd }

// RemoteAddr returns the peer address captured at accept time.
func (c *FDConn) RemoteAddr() netip.AddrPort { return c.peer }

// Inherit clears FD_CLOEXEC.
func (c *FDConn) Inherit() error { return clearCloseOnExec(c.fd) }

// Listener is a non-blocking listening socket.
type Listener struct {
	fd   int
	addr netip.AddrPort
}

// Listen binds and listens on addr with SO_REUSEADDR set.
func Listen(addr netip.AddrPort, backlog int) (*Listener, error) {
	family := unix.AF_INET
	if addr.Addr().Is6() {
		family = unix.AF_INET6
	}

	fd, err := unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, muderr.Wrap("listen", addr.String(), err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, muderr.Wrap("listen", addr.String(), err)
	}
	if err := unix.Bind(fd, toSockaddr(addr)); err != nil {
		unix.Close(fd)
		return nil, muderr.Wrap("bind", addr.String(), err)
	}
	if err := unix.Listen(fd, backlog); err != nil {
		unix.Close(fd)
		return nil, muderr.Wrap("listen", addr.String(), err)
	}
	return newListener(fd), nil
}

// FileListener adopts an inherited listening descriptor.
func FileListener(fd int) (*Listener, error) {
	if err := unix.SetNonblock(fd, true); err != nil {
		return nil, muderr.Wrap("listen", "fd", err)
	}
	unix.CloseOnExec(fd)
	return newListener(fd), nil
}

func newListener(fd int) *Listener {
	l := &Listener{fd: fd}
	if sa, err := unix.Getsockname(fd); err == nil {
		l.addr = fromSockaddr(sa)
	}
	return l
}

// Accept returns the next pending connection.  With nothing pending it
// returns an error satisfying muderr.IsWouldBlock.
func (l *Listener) Accept() (*FDConn, error) {
	for {
		fd, sa, err := unix.Accept4(l.fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		if err == unix.EINTR || err == unix.ECONNABORTED {
			continue
		}
		if err != nil {
			return nil, err
		}
		return &FDConn{fd: fd, peer: fromSockaddr(sa)}, nil
	}
}

// Fd returns the listening descriptor number.
func (l *Listener) Fd() int { return l.fd }

// Addr returns the bound address.
func (l *Listener) Addr() netip.AddrPort { return l.addr }

// Inherit clears FD_CLOEXEC.
func (l *Listener) Inherit() error { return clearCloseOnExec(l.fd) }

// Close closes the listening descriptor.
func (l *Listener) Close() error { return unix.Close(l.fd) }

func clearCloseOnExec(fd int) error {
	flags, err := unix.FcntlInt(uintptr(fd), unix.F_GETFD, 0)
	if err != nil {
		return err
	}
	_, err = unix.FcntlInt(uintptr(fd), unix.F_SETFD, flags&^unix.FD_CLOEXEC)
	return err
}

func toSockaddr(addr netip.AddrPort) unix.Sockaddr {
	if addr.Addr().Is6() {
		return &unix.SockaddrInet6{Port: int(addr.Port()), Addr: addr.Addr().As16()}
	}
	return &unix.SockaddrInet4{Port: int(addr.Port()), Addr: addr.Addr().As4()}
}

func fromSockaddr(sa unix.Sockaddr) netip.AddrPort {
	switch sa := sa.(type) {
	case *unix.SockaddrInet4:
		return netip.AddrPortFrom(netip.AddrFrom4(sa.Addr), uint16(sa.Port))
	case *unix.SockaddrInet6:
		return netip.AddrPortFrom(netip.AddrFrom16(sa.Addr).Unmap(), uint16(sa.Port))
	}
	return netip.AddrPort{}
}
