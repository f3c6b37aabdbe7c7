package server

import (
	"net/netip"

	"sockmud/internal/arena"
	"sockmud/internal/telnet"
	"sockmud/internal/transport"
)

// State is a connection's position in the login state machine.
type State int

const (
	StateGetName State = iota
	StateNewPassword
	StateVerifyPassword
	StateAskPassword
	StatePlaying
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateGetName:
		return "get-name"
	case StateNewPassword:
		return "new-password"
	case StateVerifyPassword:
		return "verify-password"
	case StateAskPassword:
		return "ask-password"
	case StatePlaying:
		return "playing"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// LookupStatus combines the hostname lookup's progress with whether the
// connection has been closed.  Closing adds 2 and a finished lookup adds
// 1, so a connection reaches LookupClosed only once both have happened.
type LookupStatus int

const (
	LookupPending LookupStatus = iota // lookup running, connection open
	LookupDone                        // lookup finished, connection open
	LookupWait                        // connection closed, lookup still running
	LookupClosed                      // closed with nothing outstanding
)

// Connection is one client socket and its protocol state.
type Connection struct {
	handle arena.Handle
	conn   transport.Conn
	fd     int
	addr   netip.AddrPort
	host   string

	input   []byte
	command string
	staged  bool

	output     []byte
	bustPrompt bool

	state    State
	throttle int
	lookup   LookupStatus
	comp     *telnet.Compressor

	session arena.Handle
}

// Handle returns the connection's registry handle.
func (c *Connection) Handle() arena.Handle { return c.handle }

// Host returns the resolved hostname, or the peer address until the
// lookup completes.
func (c *Connection) Host() string { return c.host }

// State returns the login state.
func (c *Connection) State() State { return c.state }

// Lookup returns the resolver status.
func (c *Connection) Lookup() LookupStatus { return c.lookup }

// Session returns the bound session's handle, zero if none.
func (c *Connection) Session() arena.Handle { return c.session }

// Compression returns the active MCCP option, or 0.
func (c *Connection) Compression() byte {
	if c.comp == nil {
		return 0
	}
	return c.comp.Option()
}

// markClosed moves the lookup status into its closed half.  It reports
// false if the connection was already closed.
func (c *Connection) markClosed() bool {
	if c.lookup > LookupDone {
		return false
	}
	c.lookup += 2
	return true
}

func (c *Connection) lookupFinished() {
	if c.lookup == LookupPending || c.lookup == LookupWait {
		c.lookup++
	}
}

// resetConnection clears c for reuse, keeping only buffer capacity.
func resetConnection(c *Connection) {
	in, out := c.input[:0], c.output[:0]
	*c = Connection{input: in, output: out}
}
