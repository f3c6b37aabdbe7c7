package command

import (
	"fmt"
	"strings"

	"sockmud/internal/server"
	"sockmud/internal/session"
	"sockmud/util"
)

func cmdSay(srv *server.Server, sess *session.Session, arg string) {
	if arg == "" {
		srv.Send(sess, "Say what?\n\r")
		return
	}
	arg = strings.ToUpper(arg[:1]) + arg[1:]

	srv.Send(sess, fmt.Sprintf("You say '%s'.\n\r", arg))
	msg := fmt.Sprintf("%s says '%s'.\n\r", sess.Name, arg)
	for _, other := range srv.Sessions() {
		if other == sess {
			continue
		}
		srv.Send(other, msg)
	}
}

func cmdQuit(srv *server.Server, sess *session.Session, _ string) {
	srv.Quit(sess)
}

func cmdShutdown(srv *server.Server, sess *session.Session, _ string) {
	srv.Logger().Info("%s has shut down the game.", sess.Name)
	srv.Shutdown()
}

func (t *Table) cmdCommands(srv *server.Server, sess *session.Session, _ string) {
	names := make([]string, 0, len(t.cmds))
	for _, c := range t.Available(sess.Level) {
		names = append(names, c.Name)
	}
	sendColumns(srv, sess, "    - - - - ----==== The full command list ====---- - - - -\n\n\r", " %-16.16s", names, "")
}

func cmdWho(srv *server.Server, sess *session.Session, _ string) {
	buf := util.GetBuf()
	defer util.PutBuf(buf)

	b := append((*buf)[:0], " - - - - ----==== Who's Online ====---- - - - -\n\r"...)
	for _, p := range srv.Players() {
		b = fmt.Appendf(b, " %-12s   %s\n\r", p.Name, p.Host)
	}
	b = append(b, " - - - - ----======================---- - - - -\n\r"...)
	srv.Send(sess, string(b))
	*buf = b
}

func cmdHelp(srv *server.Server, sess *session.Session, arg string) {
	hs := srv.Help()
	if arg == "" {
		sendColumns(srv, sess,
			"      - - - - - ----====//// HELP FILES  \\\\\\\\====---- - - - - -\n\n\r",
			" %-19.18s", hs.Keywords(), "\n\r Syntax: help <topic>\n\r")
		return
	}

	e, ok := hs.Lookup(arg)
	if !ok {
		srv.Send(sess, "Sorry, no such helpfile.\n\r")
		return
	}
	srv.Send(sess, e.Format())
}

func cmdCompress(srv *server.Server, sess *session.Session, _ string) {
	if !srv.Compressing(sess) {
		srv.Send(sess, "Trying compression.\n\r")
		srv.OfferCompression(sess)
		return
	}
	if !srv.EndCompression(sess) {
		srv.Send(sess, "Failed.\n\r")
		return
	}
	srv.Send(sess, "Compression disabled.\n\r")
}

func cmdSave(srv *server.Server, sess *session.Session, _ string) {
	if err := srv.Save(sess); err != nil {
		srv.Logger().Error("%v", err)
		srv.Send(sess, "Save failed.\n\r")
		return
	}
	srv.Send(sess, "Saved.\n\r")
	srv.Throttle(sess, 1)
}

func cmdLinkdead(srv *server.Server, sess *session.Session, _ string) {
	found := false
	for _, other := range srv.Sessions() {
		if other.Linkdead() {
			srv.Send(sess, fmt.Sprintf("%s is linkdead.\n\r", other.Name))
			found = true
		}
	}
	if !found {
		srv.Send(sess, "Nobody is linkdead.\n\r")
	}
}

func cmdCopyover(srv *server.Server, sess *session.Session, _ string) {
	// Failures are reported to sess by the server.
	if err := srv.Copyover(sess); err != nil {
		srv.Logger().Verbose("copyover by %s: %v", sess.Name, err)
	}
}

func cmdStats(srv *server.Server, sess *session.Session, _ string) {
	reg := srv.Registry()
	snap := srv.Metrics().Snapshot()

	buf := util.GetBuf()
	defer util.PutBuf(buf)

	b := append((*buf)[:0], " - - - - ----==== Server Statistics ====---- - - - -\n\r"...)
	type row struct {
		label string
		value any
	}
	rows := []row{
		{"Uptime:", snap.Uptime},
		{"Connections:", reg.Live()},
		{"Pooled slots:", reg.Pooled()},
		{"Sessions:", reg.Sessions()},
		{"Total accepted:", snap.ConnectionsTotal},
		{"Refused:", snap.Refused},
		{"Bytes in:", snap.BytesIn},
		{"Bytes out:", snap.BytesOut},
		{"Lookups resolved:", snap.LookupsResolved},
		{"Copyovers:", snap.Copyovers},
		{"Errors:", snap.ErrorsTotal},
	}
	if snap.LastErrorMessage != "" {
		rows = append(rows, row{"Last error:", snap.LastErrorMessage})
	}
	for _, r := range rows {
		b = fmt.Appendf(b, " %-20s %v\n\r", r.label, r.value)
	}
	srv.Send(sess, string(b))
	*buf = b
}

// sendColumns renders items four to a row between header and footer.
func sendColumns(srv *server.Server, sess *session.Session, header, cell string, items []string, footer string) {
	buf := util.GetBuf()
	defer util.PutBuf(buf)

	b := append((*buf)[:0], header...)
	col := 0
	for _, item := range items {
		b = fmt.Appendf(b, cell, item)
		if col++; col%4 == 0 {
			b = append(b, "\n\r"...)
		}
	}
	if col%4 != 0 {
		b = append(b, "\n\r"...)
	}
	b = append(b, footer...)
	srv.Send(sess, string(b))
	*buf = b
}
