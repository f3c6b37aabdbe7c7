package server

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	muderr "sockmud/internal/errors"
	"sockmud/internal/session"
	"sockmud/internal/telnet"
	"sockmud/internal/transport"
)

// CopyoverFlag is the command-line flag carrying the inherited
// listener's descriptor into the replacement image.
const CopyoverFlag = "--copyover-fd"

// copyoverEnd terminates the record stream.
const copyoverEnd = "-1"

// CopyoverRecord is one connection handed across a copyover.
type CopyoverRecord struct {
	FD       int
	Name     string
	Host     string
	Compress byte // 0, telnet.OptCompress or telnet.OptCompress2
}

func (r CopyoverRecord) flag() byte {
	if telnet.IsCompressOption(r.Compress) {
		return r.Compress
	}
	return 'n'
}

// WriteCopyover writes records followed by the terminator.
func WriteCopyover(w io.Writer, records []CopyoverRecord) error {
	bw := bufio.NewWriter(w)
	for _, r := range records {
		fmt.Fprintf(bw, "%d %s %s %c\n", r.FD, r.Name, r.Host, r.flag())
	}
	fmt.Fprintln(bw, copyoverEnd)
	return bw.Flush()
}

// ParseCopyover reads records up to the terminator.
func ParseCopyover(r io.Reader) ([]CopyoverRecord, error) {
	var out []CopyoverRecord
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if line == copyoverEnd {
			return out, nil
		}

		fields := strings.Fields(line)
		if len(fields) != 4 || len(fields[3]) != 1 {
			return out, fmt.Errorf("malformed copyover record %q", line)
		}
		fd, err := strconv.Atoi(fields[0])
		if err != nil || fd < 0 {
			return out, fmt.Errorf("bad descriptor in copyover record %q", line)
		}
		rec := CopyoverRecord{FD: fd, Name: fields[1], Host: fields[2]}
		if c := fields[3][0]; telnet.IsCompressOption(c) {
			rec.Compress = c
		}
		out = append(out, rec)
	}
	if err := sc.Err(); err != nil {
		return out, err
	}
	return out, fmt.Errorf("copyover file has no %s terminator", copyoverEnd)
}

// Copyover saves every playing connection to the copyover file and execs
// a fresh copy of the program, which inherits the listener and those
// connections.  Connections still logging in are turned away.  On
// success it does not return; a failed exec is reported to admin and the
// server carries on.
func (s *Server) Copyover(admin *session.Session) error {
	f, err := os.Create(s.opts.CopyoverFile)
	if err != nil {
		s.Send(admin, "Copyover file not writeable, aborted.\n\r")
		return &muderr.CopyoverError{Stage: "open", Err: err}
	}
	s.logger.Info("Copyover initiated by %s.", admin.Name)

	var records []CopyoverRecord
	for _, h := range s.reg.Connections() {
		c, _ := s.reg.Conn(h)
		if c.state == StateClosed {
			continue
		}
		sess, ok := s.reg.Session(c.session)
		if c.state != StatePlaying || !ok {
			s.writeRaw(c, []byte(msgRebooting))
			s.closeConn(c, false)
			continue
		}

		records = append(records, CopyoverRecord{
			FD:       c.fd,
			Name:     sess.Name,
			Host:     c.host,
			Compress: c.Compression(),
		})
		if err := s.store.Save(sess); err != nil {
			s.logger.Error("%v", err)
		}
		s.writeRaw(c, []byte(msgCopyover))
		s.endCompression(c)
	}
	for _, sess := range s.Sessions() {
		if sess.Linkdead() {
			if err := s.store.Save(sess); err != nil {
				s.logger.Error("%v", err)
			}
		}
	}

	werr := WriteCopyover(f, records)
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		os.Remove(s.opts.CopyoverFile)
		s.Send(admin, "Copyover file not writeable, aborted.\n\r")
		return &muderr.CopyoverError{Stage: "write", Err: werr}
	}

	s.recycle()

	if err := s.inherit(records); err != nil {
		s.Send(admin, "Copyover FAILED!\n\r")
		return &muderr.CopyoverError{Stage: "exec", Err: err}
	}

	exe, err := os.Executable()
	if err != nil {
		s.Send(admin, "Copyover FAILED!\n\r")
		return &muderr.CopyoverError{Stage: "exec", Err: err}
	}
	argv := append([]string{os.Args[0]}, s.opts.RestartArgs...)
	argv = append(argv, CopyoverFlag, strconv.Itoa(s.listener.Fd()))

	s.metrics.Copyover()
	if err := s.exec(exe, argv, os.Environ()); err != nil {
		err = &muderr.CopyoverError{Stage: "exec", Err: err}
		s.logger.Error("%v", err)
		s.metrics.RecordError(err.Error())
		s.Send(admin, "Copyover FAILED!\n\r")
		return err
	}

	// Only a substitute exec returns on success.  The descriptors now
	// belong to the next image.
	s.replaced = true
	s.stopping = true
	return nil
}

// inherit clears close-on-exec on the listener and every recorded
// connection.
func (s *Server) inherit(records []CopyoverRecord) error {
	if err := s.listener.Inherit(); err != nil {
		return err
	}
	for _, r := range records {
		h, ok := s.byFD[r.FD]
		if !ok {
			continue
		}
		c, ok := s.reg.Conn(h)
		if !ok {
			continue
		}
		if err := c.conn.Inherit(); err != nil {
			return err
		}
	}
	return nil
}

// Recover rebuilds the connections listed in the copyover file at path,
// deleting the file first.  A record whose player cannot be loaded costs
// only that connection.  It returns the number of players restored.
func (s *Server) Recover(path string) (int, error) {
	s.logger.Info("Copyover recovery initiated")

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, &muderr.CopyoverError{Stage: "recover", Err: muderr.ErrNoCopyover}
		}
		return 0, &muderr.CopyoverError{Stage: "recover", Err: err}
	}
	os.Remove(path)
	records, perr := ParseCopyover(bytes.NewReader(data))
	if perr != nil {
		s.logger.Error("Copyover: %v", perr)
		s.metrics.RecordError(perr.Error())
		s.closeStranded(data, records)
	}

	restored := 0
	for _, r := range records {
		if s.restore(r) {
			restored++
		}
	}
	return restored, nil
}

// closeStranded closes every descriptor named in the copyover file that
// is not among the parsed records.
func (s *Server) closeStranded(data []byte, kept []CopyoverRecord) {
	keep := make(map[int]bool, len(kept))
	for _, r := range kept {
		keep[r.FD] = true
	}
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if fields[0] == copyoverEnd {
			return
		}
		fd, err := strconv.Atoi(fields[0])
		if err != nil || fd <= 2 || keep[fd] || fd == s.listener.Fd() {
			continue
		}
		keep[fd] = true
		s.logger.Warn("Copyover: closing stranded descriptor %d", fd)
		unix.Close(fd)
	}
}

func (s *Server) restore(r CopyoverRecord) bool {
	tc, err := transport.NewConn(r.FD)
	if err != nil {
		s.logger.Error("Copyover: descriptor %d for %s: %v", r.FD, r.Name, err)
		return false
	}
	c := s.attach(tc)
	if c == nil {
		return false
	}
	c.host = r.Host
	c.lookup = LookupDone

	if r.Compress != 0 {
		s.startCompression(c, r.Compress)
	}

	loaded, err := s.store.Load(r.Name)
	if err != nil {
		s.logger.Error("Copyover: %v", err)
		s.metrics.RecordError(err.Error())
		s.closeConn(c, false)
		return false
	}

	sh, sess := s.newSession()
	*sess = *loaded
	sess.Conn = c.handle
	s.promote(sess)
	c.session = sh
	s.reg.activate(sh)
	c.state = StatePlaying

	if err := s.writeRaw(c, []byte(msgRecovered)); err != nil {
		s.closeConn(c, false)
		return false
	}
	c.bustPrompt = true
	return true
}
