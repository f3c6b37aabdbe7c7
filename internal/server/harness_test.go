package server

import (
	"bytes"
	"net"
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sys/unix"

	"sockmud/internal/arena"
	"sockmud/internal/session"
	"sockmud/internal/storage"
	"sockmud/internal/transport"
	"sockmud/util"
)

type harness struct {
	t        *testing.T
	srv      *Server
	listener *transport.Listener
	store    *storage.FileStore
	logs     *bytes.Buffer
	execs    [][]string
	execErr  error
}

func newHarness(t *testing.T, mutate ...func(*Options)) *harness {
	t.Helper()

	l, err := transport.Listen(netip.MustParseAddrPort("127.0.0.1:0"), 8)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	store, err := storage.NewFileStore(filepath.Join(t.TempDir(), "players"))
	if err != nil {
		t.Fatal(err)
	}

	logs := new(bytes.Buffer)
	logger := util.NewLogger(3)
	logger.SetOutput(logs)

	h := &harness{t: t, listener: l, store: store, logs: logs}
	opts := Options{
		Listener:     l,
		Store:        store,
		Logger:       logger,
		NoDNS:        true,
		PasswordCost: bcrypt.MinCost,
		CopyoverFile: filepath.Join(t.TempDir(), "copyover.dat"),
		Exec: func(argv0 string, argv, envv []string) error {
			h.execs = append(h.execs, argv)
			return h.execErr
		},
	}
	for _, m := range mutate {
		m(&opts)
	}

	srv, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	srv.pollWait = 0
	h.srv = srv
	t.Cleanup(srv.Close)
	return h
}

func (h *harness) step() {
	h.t.Helper()
	if err := h.srv.step(); err != nil {
		h.t.Fatalf("step: %v", err)
	}
}

type client struct {
	t      *testing.T
	nc     net.Conn
	fd     int
	handle arena.Handle
	buf    bytes.Buffer
}

// connect attaches one end of a socketpair to the server and returns the
// other end.
func (h *harness) connect() *client {
	h.t.Helper()

	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		h.t.Fatalf("Socketpair: %v", err)
	}
	tc, err := transport.NewConn(fds[0])
	if err != nil {
		h.t.Fatalf("NewConn: %v", err)
	}
	f := os.NewFile(uintptr(fds[1]), "client")
	nc, err := net.FileConn(f)
	f.Close()
	if err != nil {
		h.t.Fatalf("FileConn: %v", err)
	}
	h.t.Cleanup(func() { nc.Close() })

	h.srv.newSocket(tc)
	handle, ok := h.srv.byFD[fds[0]]
	if !ok {
		h.t.Fatal("connection not registered")
	}
	return &client{t: h.t, nc: nc, fd: fds[0], handle: handle}
}

func (h *harness) conn(c *client) *Connection {
	h.t.Helper()
	conn, ok := h.srv.reg.Conn(c.handle)
	if !ok {
		h.t.Fatalf("connection %v is gone", c.handle)
	}
	return conn
}

func (h *harness) session(c *client) *session.Session {
	h.t.Helper()
	sess, ok := h.srv.reg.Session(h.conn(c).session)
	if !ok {
		h.t.Fatal("no session bound")
	}
	return sess
}

// say sends one line and runs a reactor iteration.
func (c *client) say(h *harness, line string) {
	c.t.Helper()
	if _, err := c.nc.Write([]byte(line + "\r\n")); err != nil {
		c.t.Fatalf("write: %v", err)
	}
	h.step()
}

// expect reads until substr has arrived and returns everything read.
func (c *client) expect(substr string) string {
	c.t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	tmp := make([]byte, 4096)
	for !strings.Contains(c.buf.String(), substr) {
		c.nc.SetReadDeadline(deadline)
		n, err := c.nc.Read(tmp)
		c.buf.Write(tmp[:n])
		if err != nil {
			c.t.Fatalf("waiting for %q: %v (got %q)", substr, err, c.buf.String())
		}
	}
	out := c.buf.String()
	c.buf.Reset()
	return out
}

// createPlayer runs a full new-account login.
func (h *harness) createPlayer(name, password string) *client {
	h.t.Helper()
	c := h.connect()
	h.step()
	c.expect(msgAskName)
	c.say(h, name)
	c.expect(msgNewPassword)
	c.say(h, password)
	c.expect(msgVerifyPassword)
	c.say(h, password)
	c.expect(DefaultPrompt)
	return c
}

// storePlayer saves an account directly to the store.
func (h *harness) storePlayer(name, password string, level session.Level) {
	h.t.Helper()
	s := session.New(name)
	s.Level = level
	if err := s.SetPassword(password, bcrypt.MinCost); err != nil {
		h.t.Fatal(err)
	}
	if err := h.store.Save(s); err != nil {
		h.t.Fatal(err)
	}
}
