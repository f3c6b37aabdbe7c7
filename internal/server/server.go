// Package server implements the connection core: a single-goroutine
// epoll reactor that accepts clients, frames their input, drives the
// login state machine, buffers and compresses output, and hands its
// sockets to a replacement process image on copyover.
//
// Every Connection and Session is owned by the reactor goroutine.  The
// only other goroutines are one-shot hostname lookups, which report back
// over a channel the reactor drains each iteration.
package server

import (
	"context"
	"net"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"sockmud/internal/arena"
	muderr "sockmud/internal/errors"
	"sockmud/internal/help"
	"sockmud/internal/metrics"
	"sockmud/internal/reactor"
	"sockmud/internal/retry"
	"sockmud/internal/session"
	"sockmud/internal/storage"
	"sockmud/internal/transport"
	"sockmud/util"
)

// Defaults applied to zero-valued Options fields.
const (
	DefaultPrompt       = "\n\rSockMud:> "
	DefaultInputLimit   = 1024
	DefaultOutputLimit  = 8192
	DefaultWriteChunk   = 4096
	DefaultCopyoverFile = "copyover.dat"

	pollInterval = 500 * time.Millisecond
	tickInterval = time.Second
)

// Dispatcher executes game commands for sessions in the Playing state.
type Dispatcher interface {
	Dispatch(srv *Server, sess *session.Session, line string)
}

// DispatchFunc adapts a function to Dispatcher.
type DispatchFunc func(srv *Server, sess *session.Session, line string)

func (f DispatchFunc) Dispatch(srv *Server, sess *session.Session, line string) {
	f(srv, sess, line)
}

// ExecFunc replaces the process image.  It only returns on failure.
type ExecFunc func(argv0 string, argv []string, envv []string) error

// Options configures a Server.
type Options struct {
	Listener   *transport.Listener
	Store      storage.Store
	Help       *help.Store
	Dispatcher Dispatcher
	Resolver   Resolver // nil uses net.DefaultResolver unless NoDNS
	Metrics    *metrics.Collector
	Logger     *util.Logger
	OnTick     func()   // called once per elapsed second
	Exec       ExecFunc // nil uses unix.Exec

	Prompt       string
	InputLimit   int
	OutputLimit  int
	WriteChunk   int
	MaxConns     int // 0 = unlimited
	PasswordCost int
	Admins       []string
	NoDNS        bool
	CopyoverFile string
	RestartArgs  []string // arguments for the replacement image, minus the recovery flag
}

// Server is the reactor.
type Server struct {
	opts     Options
	listener *transport.Listener
	poller   *reactor.Poller
	reg      *Registry
	byFD     map[int]arena.Handle
	readable map[int]bool

	store    storage.Store
	help     *help.Store
	dispatch Dispatcher
	resolver Resolver
	metrics  *metrics.Collector
	logger   *util.Logger
	onTick   func()
	exec     ExecFunc
	writes   *retry.Backoff

	lookups  chan lookupResult
	ctx      context.Context
	done     chan struct{}
	lastTick time.Time
	pollWait time.Duration
	stopping bool
	replaced bool
	closed   bool
}

// New creates a Server around an open listener.
func New(opts Options) (*Server, error) {
	if opts.Listener == nil {
		return nil, muderr.New("server: listener is required")
	}
	if opts.Store == nil {
		return nil, muderr.New("server: store is required")
	}
	if opts.Logger == nil {
		opts.Logger = util.NewLogger(1)
	}
	if opts.Help == nil {
		opts.Help, _ = help.Open("", opts.Logger)
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}
	if opts.Dispatcher == nil {
		opts.Dispatcher = DispatchFunc(func(srv *Server, sess *session.Session, _ string) {
			srv.Send(sess, "No such command.\n\r")
		})
	}
	if opts.OnTick == nil {
		opts.OnTick = func() {}
	}
	if opts.Exec == nil {
		opts.Exec = unix.Exec
	}
	if opts.Resolver == nil && !opts.NoDNS {
		opts.Resolver = net.DefaultResolver
	}
	if opts.Prompt == "" {
		opts.Prompt = DefaultPrompt
	}
	if opts.InputLimit <= 2 {
		opts.InputLimit = DefaultInputLimit
	}
	if opts.OutputLimit <= 2 {
		opts.OutputLimit = DefaultOutputLimit
	}
	if opts.WriteChunk <= 0 {
		opts.WriteChunk = DefaultWriteChunk
	}
	if opts.PasswordCost == 0 {
		opts.PasswordCost = session.DefaultCost
	}
	if opts.CopyoverFile == "" {
		opts.CopyoverFile = DefaultCopyoverFile
	}

	poller, err := reactor.New()
	if err != nil {
		return nil, err
	}
	if err := poller.Add(opts.Listener.Fd()); err != nil {
		poller.Close()
		return nil, err
	}

	s := &Server{
		opts:     opts,
		listener: opts.Listener,
		poller:   poller,
		reg:      NewRegistry(opts.MaxConns),
		byFD:     make(map[int]arena.Handle),
		readable: make(map[int]bool),
		store:    opts.Store,
		help:     opts.Help,
		dispatch: opts.Dispatcher,
		resolver: opts.Resolver,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
		onTick:   opts.OnTick,
		exec:     opts.Exec,
		writes:   retry.WriteBackoff(),
		lookups:  make(chan lookupResult, 64),
		ctx:      context.Background(),
		done:     make(chan struct{}),
		lastTick: time.Now(),
		pollWait: pollInterval,
	}
	if opts.NoDNS {
		s.resolver = nil
	}
	return s, nil
}

// Registry exposes the connection and session registry.
func (s *Server) Registry() *Registry { return s.reg }

// Metrics returns the server's counters.
func (s *Server) Metrics() *metrics.Collector { return s.metrics }

// Help returns the help store.
func (s *Server) Help() *help.Store { return s.help }

// Store returns the persistence collaborator.
func (s *Server) Store() storage.Store { return s.store }

// Logger returns the server's logger.
func (s *Server) Logger() *util.Logger { return s.logger }

// Shutdown stops the reactor after the current iteration.
func (s *Server) Shutdown() { s.stopping = true }

// Run drives the reactor until ctx is cancelled, Shutdown is called, or
// the process image is replaced.
func (s *Server) Run(ctx context.Context) error {
	s.ctx = ctx
	defer s.teardown()

	s.logger.Info("SockMud listening on %s.", s.listener.Addr())
	for !s.stopping && ctx.Err() == nil {
		if err := s.step(); err != nil {
			return err
		}
	}
	return nil
}

// step runs one reactor iteration.
func (s *Server) step() error {
	ready, err := s.poller.Wait(s.pollWait)
	if err != nil {
		return err
	}

	tick := false
	if now := time.Now(); now.Sub(s.lastTick) >= tickInterval {
		tick = true
		s.lastTick = now
	}

	s.drainLookups()

	clear(s.readable)
	for _, fd := range ready {
		if fd == s.listener.Fd() {
			s.acceptAll()
			continue
		}
		s.readable[fd] = true
	}

	for _, h := range s.reg.Connections() {
		s.service(h, tick)
	}

	if tick {
		s.metrics.RecordTick()
		s.onTick()
	}

	s.recycle()
	return nil
}

// service reads, frames, dispatches, and flushes one connection.
func (s *Server) service(h arena.Handle, tick bool) {
	c, ok := s.reg.Conn(h)
	if !ok || c.state == StateClosed {
		return
	}

	if s.readable[c.fd] {
		if err := s.read(c); err != nil {
			s.logger.Verbose("Read_from_socket: %s: %v", c.host, err)
			s.closeConn(c, false)
			return
		}
	}

	if c.throttle > 0 {
		if tick {
			c.throttle--
		}
		return
	}

	if !c.staged {
		s.frame(c)
	}
	if c.staged {
		line := c.command
		c.command, c.staged = "", false
		s.handleLine(c, line)
	}

	if c.state == StateClosed {
		return
	}
	if err := s.flush(c); err != nil {
		s.logger.Verbose("Flush_output: %s: %v", c.host, err)
		s.metrics.RecordError(err.Error())
		s.closeConn(c, false)
	}
}

func (s *Server) handleLine(c *Connection, line string) {
	switch c.state {
	case StateGetName, StateNewPassword, StateVerifyPassword, StateAskPassword:
		s.login(c, line)
	case StatePlaying:
		sess, ok := s.reg.Session(c.session)
		if !ok {
			s.logger.Error("Playing connection %s has no session.", c.handle)
			s.closeConn(c, false)
			return
		}
		s.dispatch.Dispatch(s, sess, line)
	default:
		s.logger.Error("Descriptor in bad state %v.", c.state)
	}
}

// acceptAll accepts every pending connection, refusing those beyond
// MaxConns before anything is allocated for them.
func (s *Server) acceptAll() {
	for {
		tc, err := s.listener.Accept()
		if err != nil {
			if !muderr.IsWouldBlock(err) {
				err = muderr.Wrap("accept", s.listener.Addr().String(), err)
				s.logger.Warn("%v", err)
				s.metrics.RecordError(err.Error())
			}
			return
		}

		if s.opts.MaxConns > 0 && s.reg.Live() >= s.opts.MaxConns {
			tc.Write([]byte(msgServerFull))
			tc.Close()
			s.metrics.ConnectionRefused()
			s.logger.Warn("Refused connection from %s: %d connections open.", tc.RemoteAddr(), s.reg.Live())
			continue
		}
		s.newSocket(tc)
	}
}

// attach registers tc with the registry and the poller.
func (s *Server) attach(tc transport.Conn) *Connection {
	h, c, err := s.reg.newConn()
	if err != nil {
		s.logger.Fatal("New_socket: cannot allocate connection: %v", err)
		return nil
	}
	c.conn = tc
	c.fd = tc.Fd()
	c.addr = tc.RemoteAddr()
	c.host = "unknown"
	if cap(c.input) < s.opts.InputLimit {
		c.input = make([]byte, 0, s.opts.InputLimit)
	}

	if err := s.poller.Add(c.fd); err != nil {
		s.logger.Error("New_socket: %v", err)
		tc.Close()
		s.reg.conns.Free(h)
		return nil
	}
	s.byFD[c.fd] = h
	s.metrics.ConnectionOpened()
	return c
}

func (s *Server) newSocket(tc transport.Conn) {
	c := s.attach(tc)
	if c == nil {
		return
	}

	switch {
	case !c.addr.IsValid():
		c.lookup = LookupDone
	case s.resolver == nil || util.IsLoopback(c.addr.Addr()):
		c.host = c.addr.Addr().String()
		c.lookup = LookupDone
	default:
		c.host = c.addr.Addr().String()
		go s.resolve(c.handle, c.addr.Addr())
	}
	s.logger.Verbose("New connection from %s.", c.host)

	s.send(c, string(willCompress2))
	s.send(c, string(willCompress))
	s.send(c, s.help.Greeting())
	s.send(c, msgAskName)
}

// closeConn marks c Closed.  The descriptor stays open until recycle,
// which waits for any outstanding lookup.  With reconnect set the bound
// session is being taken over and is left alone.
func (s *Server) closeConn(c *Connection, reconnect bool) {
	if !c.markClosed() {
		return
	}
	s.poller.Remove(c.fd)

	if c.state == StatePlaying {
		if reconnect {
			s.writeRaw(c, []byte(msgTakenOver))
		} else if sess, ok := s.reg.Session(c.session); ok && sess.Conn == c.handle {
			sess.Conn = arena.Handle{}
			s.logger.Info("Closing link to %s", sess.Name)
		}
	} else if !c.session.IsZero() {
		s.reg.destroy(c.session)
		c.session = arena.Handle{}
	}
	c.state = StateClosed
}

// recycle releases every connection that is closed with no lookup
// outstanding.
func (s *Server) recycle() {
	for _, h := range s.reg.Connections() {
		c, ok := s.reg.Conn(h)
		if !ok || c.lookup != LookupClosed {
			continue
		}
		if s.byFD[c.fd] == h {
			delete(s.byFD, c.fd)
		}
		c.conn.Close()
		c.comp = nil
		s.reg.conns.Free(h)
		s.metrics.ConnectionClosed()
	}
}

// Close releases the server without running it.  Run calls it on exit.
func (s *Server) Close() { s.teardown() }

func (s *Server) teardown() {
	if s.closed {
		return
	}
	s.closed = true
	close(s.done)
	if !s.replaced {
		for _, h := range s.reg.Connections() {
			c, _ := s.reg.Conn(h)
			if c.state != StateClosed {
				s.flush(c)
				s.endCompression(c)
			}
			c.conn.Close()
		}
		s.listener.Close()
	}
	s.poller.Close()
}

// Send queues text for the session's connection.  It is a no-op for a
// linkdead session.
func (s *Server) Send(sess *session.Session, text string) {
	if c, ok := s.connOf(sess); ok {
		s.send(c, text)
	}
}

// Throttle makes the session's connection skip command processing for
// the given number of ticks.
func (s *Server) Throttle(sess *session.Session, ticks int) {
	if c, ok := s.connOf(sess); ok {
		c.throttle += ticks
	}
}

// Quit saves sess, removes it from the game, and closes its connection.
func (s *Server) Quit(sess *session.Session) {
	c, ok := s.connOf(sess)
	if !ok {
		return
	}
	s.logger.Info("%s has left the game.", sess.Name)
	if err := s.store.Save(sess); err != nil {
		s.logger.Error("%v", err)
		s.metrics.RecordError(err.Error())
	}

	sh := c.session
	c.session = arena.Handle{}
	s.reg.destroy(sh)
	s.closeConn(c, false)
}

// Save persists sess.
func (s *Server) Save(sess *session.Session) error {
	if err := s.store.Save(sess); err != nil {
		s.metrics.RecordError(err.Error())
		return err
	}
	return nil
}

// Player is one row of the online listing.
type Player struct {
	Name  string
	Host  string
	Level session.Level
}

// Players lists sessions bound to a Playing connection, in connection
// slot order.
func (s *Server) Players() []Player {
	var out []Player
	for _, h := range s.reg.Connections() {
		c, _ := s.reg.Conn(h)
		if c.state != StatePlaying {
			continue
		}
		sess, ok := s.reg.Session(c.session)
		if !ok {
			continue
		}
		out = append(out, Player{Name: sess.Name, Host: c.host, Level: sess.Level})
	}
	return out
}

// Sessions returns every session in the active list, linkdead included.
func (s *Server) Sessions() []*session.Session {
	var out []*session.Session
	for _, h := range s.reg.Active() {
		if sess, ok := s.reg.Session(h); ok {
			out = append(out, sess)
		}
	}
	return out
}

func (s *Server) connOf(sess *session.Session) (*Connection, bool) {
	if sess == nil {
		return nil, false
	}
	c, ok := s.reg.Conn(sess.Conn)
	if !ok || c.state == StateClosed {
		return nil, false
	}
	return c, true
}

// promote applies the configured admin list.
func (s *Server) promote(sess *session.Session) {
	for _, name := range s.opts.Admins {
		if strings.EqualFold(name, sess.Name) {
			sess.Level = session.LevelAdmin
			return
		}
	}
}
