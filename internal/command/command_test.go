package command

import (
	"bytes"
	"context"
	"net"
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"sockmud/internal/help"
	"sockmud/internal/server"
	"sockmud/internal/session"
	"sockmud/internal/storage"
	"sockmud/internal/transport"
	"sockmud/util"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		line, word, arg string
	}{
		{"say hello there", "say", "hello there"},
		{"  who  ", "who", ""},
		{"help   motd ", "help", "motd"},
		{"", "", ""},
	}
	for _, tt := range tests {
		word, arg := Split(tt.line)
		if word != tt.word || arg != tt.arg {
			t.Errorf("Split(%q) = %q, %q; want %q, %q", tt.line, word, arg, tt.word, tt.arg)
		}
	}
}

func TestFind(t *testing.T) {
	tab := New()
	tests := []struct {
		word  string
		level session.Level
		want  string
		ok    bool
	}{
		{"say", session.LevelPlayer, "say", true},
		{"SA", session.LevelPlayer, "save", true},
		{"s", session.LevelGuest, "say", true},
		{"s", session.LevelAdmin, "save", true},
		{"sh", session.LevelPlayer, "", false},
		{"sh", session.LevelAdmin, "shutdown", true},
		{"c", session.LevelPlayer, "commands", true},
		{"copy", session.LevelPlayer, "", false},
		{"w", session.LevelGuest, "who", true},
		{"whom", session.LevelAdmin, "", false},
		{"", session.LevelAdmin, "", false},
	}
	for _, tt := range tests {
		c, ok := tab.Find(tt.word, tt.level)
		if ok != tt.ok || c.Name != tt.want {
			t.Errorf("Find(%q, %v) = %q, %v; want %q, %v", tt.word, tt.level, c.Name, ok, tt.want, tt.ok)
		}
	}
}

func TestAvailable_FiltersByLevel(t *testing.T) {
	tab := New()
	player := tab.Available(session.LevelPlayer)
	admin := tab.Available(session.LevelAdmin)
	if len(admin) != len(tab.Names()) {
		t.Errorf("admin sees %d commands, want %d", len(admin), len(tab.Names()))
	}
	for _, c := range player {
		if c.Level > session.LevelPlayer {
			t.Errorf("player sees admin command %q", c.Name)
		}
	}
	if len(player) >= len(admin) {
		t.Errorf("player sees %d commands, admin %d", len(player), len(admin))
	}
}

func TestNewTable_CopiesInput(t *testing.T) {
	cmds := []Command{{Name: "look", Level: session.LevelGuest}}
	tab := NewTable(cmds)
	cmds[0].Name = "kill"
	if _, ok := tab.Find("look", session.LevelGuest); !ok {
		t.Error("table changed with its input slice")
	}
}

// world runs a server with the standard command table on loopback.
type world struct {
	t     *testing.T
	addr  string
	store *storage.FileStore
	logs  *bytes.Buffer
	done  chan error
}

func newWorld(t *testing.T, admins ...string) *world {
	t.Helper()

	l, err := transport.Listen(netip.MustParseAddrPort("127.0.0.1:0"), 8)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	store, err := storage.NewFileStore(filepath.Join(t.TempDir(), "players"))
	if err != nil {
		t.Fatal(err)
	}

	helpDir := t.TempDir()
	writeFile(t, filepath.Join(helpDir, "help.lst"), "MOTD\nRULES\n")
	writeFile(t, filepath.Join(helpDir, "MOTD"), "Welcome back.\n")
	writeFile(t, filepath.Join(helpDir, "RULES"), "Be nice.\n")

	logs := new(bytes.Buffer)
	logger := util.NewLogger(0)
	logger.SetOutput(logs)
	hs, err := help.Open(helpDir, logger)
	if err != nil {
		t.Fatal(err)
	}

	srv, err := server.New(server.Options{
		Listener:     l,
		Store:        store,
		Help:         hs,
		Dispatcher:   New(),
		Logger:       logger,
		NoDNS:        true,
		PasswordCost: bcrypt.MinCost,
		Admins:       admins,
		CopyoverFile: filepath.Join(t.TempDir(), "copyover.dat"),
		Exec:         func(string, []string, []string) error { return os.ErrPermission },
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &world{t: t, addr: l.Addr().String(), store: store, logs: logs, done: make(chan error, 1)}
	go func() { w.done <- srv.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-w.done:
		case <-time.After(3 * time.Second):
			t.Error("server did not stop")
		}
	})
	return w
}

func writeFile(t *testing.T, path, data string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
}

type player struct {
	t   *testing.T
	nc  net.Conn
	buf bytes.Buffer
}

// join creates a new account and waits for the first prompt.
func (w *world) join(name string) *player {
	w.t.Helper()
	nc, err := net.Dial("tcp", w.addr)
	if err != nil {
		w.t.Fatalf("Dial: %v", err)
	}
	w.t.Cleanup(func() { nc.Close() })

	p := &player{t: w.t, nc: nc}
	p.expect("What is your name? ")
	p.say(name)
	p.expect("Please enter a new password: ")
	p.say("secret")
	p.expect("Please verify the password: ")
	p.say("secret")
	p.expect(server.DefaultPrompt)
	return p
}

func (p *player) say(line string) {
	p.t.Helper()
	if _, err := p.nc.Write([]byte(line + "\r\n")); err != nil {
		p.t.Fatalf("write: %v", err)
	}
}

// expect reads until substr arrives and returns everything read so far.
func (p *player) expect(substr string) string {
	p.t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	tmp := make([]byte, 4096)
	for !strings.Contains(p.buf.String(), substr) {
		p.nc.SetReadDeadline(deadline)
		n, err := p.nc.Read(tmp)
		p.buf.Write(tmp[:n])
		if err != nil {
			p.t.Fatalf("waiting for %q: %v (got %q)", substr, err, p.buf.String())
		}
	}
	out := p.buf.String()
	p.buf.Reset()
	return out
}

// run sends line and returns the reply up to the next prompt.
func (p *player) run(line string) string {
	p.t.Helper()
	p.say(line)
	return p.expect(server.DefaultPrompt)
}

func TestDispatch_UnknownCommand(t *testing.T) {
	w := newWorld(t)
	p := w.join("Ada")
	if out := p.run("dance"); !strings.Contains(out, msgNoSuchCommand) {
		t.Errorf("got %q", out)
	}
	if out := p.run("shutdown"); !strings.Contains(out, msgNoSuchCommand) {
		t.Errorf("non-admin shutdown: got %q", out)
	}
}

func TestSay(t *testing.T) {
	w := newWorld(t)
	ada := w.join("Ada")
	bob := w.join("Bob")

	if out := ada.run("say"); !strings.Contains(out, "Say what?") {
		t.Errorf("empty say: got %q", out)
	}
	if out := ada.run("say hello"); !strings.Contains(out, "You say 'Hello'.") {
		t.Errorf("speaker got %q", out)
	}
	bob.expect("Ada says 'Hello'.")
}

func TestWho(t *testing.T) {
	w := newWorld(t)
	ada := w.join("Ada")
	w.join("Bob")

	out := ada.run("who")
	for _, want := range []string{"Who's Online", " Ada            127.0.0.1", " Bob "} {
		if !strings.Contains(out, want) {
			t.Errorf("who output missing %q:\n%s", want, out)
		}
	}
}

func TestHelp(t *testing.T) {
	w := newWorld(t)
	p := w.join("Ada")

	out := p.run("help")
	if !strings.Contains(out, "HELP FILES") || !strings.Contains(out, "RULES") {
		t.Errorf("help index: got %q", out)
	}
	if !strings.Contains(out, "Syntax: help <topic>") {
		t.Errorf("help index missing syntax line: %q", out)
	}
	if out := p.run("help ru"); !strings.Contains(out, "=== RULES ===") || !strings.Contains(out, "Be nice.") {
		t.Errorf("help ru: got %q", out)
	}
	if out := p.run("help zebra"); !strings.Contains(out, "Sorry, no such helpfile.") {
		t.Errorf("help zebra: got %q", out)
	}
}

func TestCommands_ListsByLevel(t *testing.T) {
	w := newWorld(t, "Root")
	ada := w.join("Ada")
	root := w.join("Root")

	out := ada.run("commands")
	if !strings.Contains(out, "The full command list") || !strings.Contains(out, " say ") {
		t.Errorf("commands: got %q", out)
	}
	if strings.Contains(out, "shutdown") {
		t.Errorf("player listing shows admin commands: %q", out)
	}
	if out := root.run("commands"); !strings.Contains(out, "shutdown") {
		t.Errorf("admin listing: got %q", out)
	}
}

func TestSave(t *testing.T) {
	w := newWorld(t)
	p := w.join("Ada")

	if out := p.run("save"); !strings.Contains(out, "Saved.") {
		t.Errorf("got %q", out)
	}
	s, err := w.store.Load("Ada")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !s.CheckPassword("secret") {
		t.Error("saved password does not verify")
	}
}

func TestCompress_OffersBothVersions(t *testing.T) {
	w := newWorld(t)
	p := w.join("Ada")

	out := p.run("compress")
	if !strings.Contains(out, "Trying compression.") {
		t.Errorf("got %q", out)
	}
	if !strings.Contains(out, "\xff\xfbV") || !strings.Contains(out, "\xff\xfbU") {
		t.Errorf("missing WILL offers in %q", out)
	}
}

func TestLinkdead(t *testing.T) {
	w := newWorld(t, "Root")
	root := w.join("Root")

	if out := root.run("linkdead"); !strings.Contains(out, "Nobody is linkdead.") {
		t.Errorf("got %q", out)
	}
}

func TestStats(t *testing.T) {
	w := newWorld(t, "Root")
	root := w.join("Root")

	out := root.run("stats")
	for _, want := range []string{"Server Statistics", "Connections:", "Total accepted:"} {
		if !strings.Contains(out, want) {
			t.Errorf("stats missing %q:\n%s", want, out)
		}
	}
}

func TestCopyover_ExecFailureIsReported(t *testing.T) {
	w := newWorld(t, "Root")
	root := w.join("Root")

	if out := root.run("copyover"); !strings.Contains(out, "Copyover FAILED!") {
		t.Errorf("got %q", out)
	}
}

func TestQuit(t *testing.T) {
	w := newWorld(t)
	p := w.join("Ada")
	p.say("quit")

	p.nc.SetReadDeadline(time.Now().Add(3 * time.Second))
	tmp := make([]byte, 512)
	for {
		if _, err := p.nc.Read(tmp); err != nil {
			break
		}
	}
	if _, err := w.store.Load("Ada"); err != nil {
		t.Errorf("quit did not save: %v", err)
	}
}

func TestShutdown_StopsServer(t *testing.T) {
	w := newWorld(t, "Root")
	root := w.join("Root")
	root.say("shutdown")

	select {
	case err := <-w.done:
		if err != nil {
			t.Errorf("Run: %v", err)
		}
		w.done <- err
	case <-time.After(3 * time.Second):
		t.Fatal("server still running after shutdown")
	}
}
