package server

import (
	"io"

	"sockmud/internal/ansi"
	muderr "sockmud/internal/errors"
	"sockmud/internal/retry"
	"sockmud/internal/session"
	"sockmud/internal/telnet"
)

// Messages sent to clients.
const (
	msgAskName        = "What is your name? "
	msgLookupPending  = "Making a dns lookup, please have patience.\n\rWhat is your name? "
	msgBadName        = "Sorry, that's not a legal name, please pick another.\n\rWhat is your name? "
	msgNewPassword    = "Please enter a new password: "
	msgBadPasswordLen = "Between 5 and 12 chars please!\n\rPlease enter a new password: "
	msgVerifyPassword = "Please verify the password: "
	msgMismatch       = "Password mismatch!\n\rPlease enter a new password: "
	msgAskPassword    = "What is your password? "
	msgBadPassword    = "Bad password!\n\r"
	msgPfileMissing   = "ERROR: Your pfile is missing!\n\r"
	msgPfileCorrupt   = "ERROR: Your pfile is unreadable!\n\r"
	msgTakeover       = "You take over a body already in use.\n\r"
	msgTakenOver      = "This connection has been taken over.\n\r"
	msgInputOverflow  = "\n\r!!!! Input Overflow !!!!\n\r"
	msgServerFull     = "\n\rSorry, the game is full. Please try again later.\n\r"
	msgRebooting      = "\n\rSorry, we are rebooting. Come back in a few minutes.\n\r"
	msgCopyover       = "\n\r <*>            The world starts spinning             <*>\n\r"
	msgRecovered      = "\n\r <*>  And before you know it, everything has changed  <*>\n\r"
)

var (
	willCompress  = telnet.WillCompress
	willCompress2 = telnet.WillCompress2
)

// read pulls everything available into the input accumulator, stopping
// early at a line end.  A full accumulator is an overflow: the client is
// told and the caller closes the connection.
func (s *Server) read(c *Connection) error {
	limit := s.opts.InputLimit - 2
	if len(c.input) >= limit {
		s.writeRaw(c, []byte(msgInputOverflow))
		return &muderr.OverflowError{Dir: "input", Limit: s.opts.InputLimit}
	}

	for {
		size := len(c.input)
		wanted := limit - size
		n, err := c.conn.Read(c.input[size:limit])
		if n > 0 {
			c.input = c.input[:size+n]
			s.metrics.BytesReceived(int64(n))
			last := c.input[len(c.input)-1]
			if last == '\n' || last == '\r' || n == wanted {
				return nil
			}
			continue
		}
		switch {
		case muderr.Is(err, io.EOF):
			return err
		case muderr.IsWouldBlock(err):
			return nil
		case err != nil:
			return muderr.Wrap("read", c.host, err)
		}
		return nil
	}
}

// frame stages the next command line, if a complete one is buffered.
// Empty lines only bust the prompt.
func (s *Server) frame(c *Connection) {
	line, rest, ok := telnet.NextLine(c.input)
	if !ok {
		return
	}
	c.input = rest
	c.bustPrompt = true

	for _, n := range line.Negotiations {
		if !telnet.IsCompressOption(n.Option) {
			continue
		}
		if n.Verb == telnet.DO {
			s.startCompression(c, n.Option)
		} else {
			s.endCompression(c)
		}
	}

	if line.Text != "" {
		c.command, c.staged = line.Text, true
	}
}

// send expands color markup and appends to the output accumulator.  An
// append that would not fit is dropped whole.
func (s *Server) send(c *Connection, text string) {
	out := ansi.Expand(text)

	prefix := 0
	if len(c.output) == 0 {
		prefix = 2
	}
	if len(c.output)+prefix+len(out) >= s.opts.OutputLimit {
		err := &muderr.OverflowError{Dir: "output", Limit: s.opts.OutputLimit}
		s.logger.Error("Text_to_buffer: %v on %s.", err, c.host)
		s.metrics.RecordError(err.Error())
		return
	}
	if prefix > 0 {
		c.output = append(c.output, '\n', '\r')
	}
	c.output = append(c.output, out...)
}

// flush writes the output accumulator, busting a prompt first when the
// player has sent a line since the last one.
func (s *Server) flush(c *Connection) error {
	prompt := c.bustPrompt && c.state == StatePlaying
	if len(c.output) == 0 && !prompt {
		return nil
	}
	if prompt {
		s.send(c, s.opts.Prompt)
		c.bustPrompt = false
	}

	err := s.writeRaw(c, c.output)
	c.output = c.output[:0]
	return err
}

// writeRaw sends data immediately, through the compressor when one is
// active.
func (s *Server) writeRaw(c *Connection, data []byte) error {
	if c.comp != nil {
		z, err := c.comp.Compress(data)
		if err != nil {
			return muderr.Wrap("compress", c.host, err)
		}
		data = z
	}
	return s.writeChunks(c, data)
}

// writeChunks writes data in WriteChunk-sized pieces, retrying a full
// send buffer with a short backoff.
func (s *Server) writeChunks(c *Connection, data []byte) error {
	for off := 0; off < len(data); {
		end := off + s.opts.WriteChunk
		if end > len(data) {
			end = len(data)
		}

		var n int
		err := s.writes.Do(s.ctx, func(int) error {
			w, err := c.conn.Write(data[off:end])
			n = w
			switch {
			case n > 0:
				return nil
			case err == nil:
				return retry.Permanent(io.ErrShortWrite)
			case muderr.IsWouldBlock(err):
				return err
			}
			return retry.Permanent(err)
		})
		if err != nil {
			return muderr.Wrap("write", c.host, err)
		}
		s.metrics.BytesSent(int64(n))
		off += n
	}
	return nil
}

// startCompression begins MCCP on c.  It is a no-op when already
// compressing.
func (s *Server) startCompression(c *Connection, opt byte) bool {
	if c.comp != nil {
		return true
	}
	comp, err := telnet.NewCompressor(opt)
	if err != nil {
		s.logger.Error("compressStart: %v", err)
		return false
	}
	if err := s.writeChunks(c, telnet.StartSequence(opt)); err != nil {
		s.logger.Verbose("compressStart: %s: %v", c.host, err)
		return false
	}
	c.comp = comp
	s.logger.Debug("Compression (option %d) started for %s.", opt, c.host)
	return true
}

// endCompression terminates the stream and reverts to raw writes.  It is
// a no-op when not compressing.
func (s *Server) endCompression(c *Connection) bool {
	if c.comp == nil {
		return true
	}
	tail, err := c.comp.Finish()
	c.comp = nil
	if err != nil {
		s.logger.Error("compressEnd: %v", err)
		return false
	}
	if err := s.writeChunks(c, tail); err != nil {
		s.logger.Verbose("compressEnd: %s: %v", c.host, err)
		return false
	}
	s.logger.Debug("Compression ended for %s.", c.host)
	return true
}

// OfferCompression queues the WILL offers for both MCCP versions; the
// client answers with DO to start.
func (s *Server) OfferCompression(sess *session.Session) {
	if c, ok := s.connOf(sess); ok {
		s.send(c, string(willCompress2))
		s.send(c, string(willCompress))
	}
}

// EndCompression stops compressing the session's output.
func (s *Server) EndCompression(sess *session.Session) bool {
	c, ok := s.connOf(sess)
	if !ok {
		return false
	}
	return s.endCompression(c)
}

// Compressing reports whether the session's output is compressed.
func (s *Server) Compressing(sess *session.Session) bool {
	c, ok := s.connOf(sess)
	return ok && c.comp != nil
}
