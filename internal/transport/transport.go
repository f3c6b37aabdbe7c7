// Package transport provides the raw-descriptor sockets the reactor
// multiplexes.  Sockets are kept as plain file descriptors rather than
// net.Conn values so they can be registered with the poller directly and
// handed across a copyover exec by number.
package transport

import (
	"io"
	"net/netip"
)

// Conn is one accepted client socket.  It is non-blocking: Read and
// Write return EAGAIN instead of waiting, and Read returns io.EOF when
// the peer has closed.
type Conn interface {
	io.ReadWriteCloser

	// Fd returns the underlying descriptor number.
	Fd() int

	// RemoteAddr returns the peer address, or the zero AddrPort when the
	// peer is not an IP endpoint.
	RemoteAddr() netip.AddrPort

	// Inherit clears close-on-exec so the descriptor survives an exec of
	// a replacement process image.
	Inherit() error
}
