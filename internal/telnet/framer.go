package telnet

// Negotiation is an IAC DO/DONT request found inside a framed line.
type Negotiation struct {
	Verb   byte // DO or DONT
	Option byte
}

// Line is one framed command.
type Line struct {
	Text         string
	Negotiations []Negotiation
}

// NextLine extracts the first complete line from buf.  A line ends at the
// first CR or LF; any run of CR/LF after it is consumed with it.  Only
// printable ASCII is kept in Text, IAC DO/DONT triples are reported as
// Negotiations, and every other byte is dropped.
//
// The consumed prefix is removed by shifting the remainder down in place,
// and rest is the compacted buffer.  When buf holds no terminator, ok is
// false and buf is returned unchanged.
//
// A triple split across two reads is not reassembled: its leading bytes
// end up in one line and its option byte in the next.
func NextLine(buf []byte) (line Line, rest []byte, ok bool) {
	size := 0
	for size < len(buf) && buf[size] != '\n' && buf[size] != '\r' {
		size++
	}
	if size == len(buf) {
		return Line{}, buf, false
	}

	text := make([]byte, 0, size)
	state := 0
	for i := 0; i < size; i++ {
		b := buf[i]
		switch {
		case b == IAC:
			state = 1
		case state == 1 && (b == DO || b == DONT):
			state = 2
		case state == 2:
			state = 0
			line.Negotiations = append(line.Negotiations, Negotiation{Verb: buf[i-1], Option: b})
		default:
			state = 0
			if b >= 0x20 && b < 0x7f {
				text = append(text, b)
			}
		}
	}
	line.Text = string(text)

	for size < len(buf) && (buf[size] == '\n' || buf[size] == '\r') {
		size++
	}
	n := copy(buf, buf[size:])
	return line, buf[:n], true
}
