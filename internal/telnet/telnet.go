// Package telnet implements the small slice of the telnet protocol the
// server speaks: line framing with DO/DONT option stripping, the echo and
// compression offers sent to clients, and MCCP output compression.
package telnet

// Command bytes.
const (
	IAC  byte = 255
	DONT byte = 254
	DO   byte = 253
	WONT byte = 252
	WILL byte = 251
	SB   byte = 250
	SE   byte = 240
)

// Option codes.
const (
	OptEcho      byte = 1
	OptCompress  byte = 85 // MCCP v1, legacy
	OptCompress2 byte = 86 // MCCP v2
)

// Sequences queued to clients.
var (
	WillEcho      = []byte{IAC, WILL, OptEcho}
	WontEcho      = []byte{IAC, WONT, OptEcho}
	WillCompress  = []byte{IAC, WILL, OptCompress}
	WillCompress2 = []byte{IAC, WILL, OptCompress2}
)

// IsCompressOption reports whether opt names a supported compression.
func IsCompressOption(opt byte) bool {
	return opt == OptCompress || opt == OptCompress2
}
