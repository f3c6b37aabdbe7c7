// Package command implements the in-game command table that the server
// dispatches to once a session reaches the Playing state.
package command

import (
	"sort"
	"strings"

	"sockmud/internal/server"
	"sockmud/internal/session"
)

const msgNoSuchCommand = "No such command.\n\r"

// Func executes one command.  arg is the rest of the line after the
// command word, with surrounding whitespace removed.
type Func func(srv *server.Server, sess *session.Session, arg string)

// Command is one entry in a Table.
type Command struct {
	Name  string
	Level session.Level
	Run   Func
}

// Table matches input lines against commands by prefix, in table order.
type Table struct {
	cmds []Command
}

// New returns a Table holding the standard command set.
func New() *Table {
	t := &Table{}
	t.cmds = []Command{
		{Name: "commands", Level: session.LevelGuest, Run: t.cmdCommands},
		{Name: "compress", Level: session.LevelGuest, Run: cmdCompress},
		{Name: "copyover", Level: session.LevelAdmin, Run: cmdCopyover},
		{Name: "help", Level: session.LevelGuest, Run: cmdHelp},
		{Name: "linkdead", Level: session.LevelAdmin, Run: cmdLinkdead},
		{Name: "quit", Level: session.LevelGuest, Run: cmdQuit},
		{Name: "save", Level: session.LevelPlayer, Run: cmdSave},
		{Name: "say", Level: session.LevelGuest, Run: cmdSay},
		{Name: "shutdown", Level: session.LevelAdmin, Run: cmdShutdown},
		{Name: "stats", Level: session.LevelAdmin, Run: cmdStats},
		{Name: "who", Level: session.LevelGuest, Run: cmdWho},
	}
	return t
}

// NewTable builds a Table from cmds.  Order decides which command wins
// an ambiguous prefix.
func NewTable(cmds []Command) *Table {
	t := &Table{cmds: make([]Command, len(cmds))}
	copy(t.cmds, cmds)
	return t
}

// Find returns the first command whose name starts with word and whose
// level does not exceed level.
func (t *Table) Find(word string, level session.Level) (Command, bool) {
	if word == "" {
		return Command{}, false
	}
	word = strings.ToLower(word)
	for _, c := range t.cmds {
		if level < c.Level {
			continue
		}
		if strings.HasPrefix(c.Name, word) {
			return c, true
		}
	}
	return Command{}, false
}

// Available lists the commands usable at level, in table order.
func (t *Table) Available(level session.Level) []Command {
	var out []Command
	for _, c := range t.cmds {
		if level >= c.Level {
			out = append(out, c)
		}
	}
	return out
}

// Names returns every command name, sorted.
func (t *Table) Names() []string {
	out := make([]string, 0, len(t.cmds))
	for _, c := range t.cmds {
		out = append(out, c.Name)
	}
	sort.Strings(out)
	return out
}

// Dispatch implements server.Dispatcher.
func (t *Table) Dispatch(srv *server.Server, sess *session.Session, line string) {
	word, arg := Split(line)
	c, ok := t.Find(word, sess.Level)
	if !ok {
		srv.Send(sess, msgNoSuchCommand)
		return
	}
	srv.Logger().Debug("%s: %s", sess.Name, line)
	c.Run(srv, sess, arg)
}

// Split separates the command word from its argument.
func Split(line string) (word, arg string) {
	line = strings.TrimSpace(line)
	word, arg, _ = strings.Cut(line, " ")
	return word, strings.TrimSpace(arg)
}

var _ server.Dispatcher = (*Table)(nil)
