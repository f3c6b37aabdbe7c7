// Package ansi expands the two-character color markup used in game text
// into ANSI SGR escape sequences.
//
// A marker is '#' followed by a code letter.  Lower-case letters select a
// normal foreground color, upper-case the bold variant, and 'n' resets.
// An unknown code leaves a literal '#' and the following character is
// processed as ordinary text.
package ansi

const (
	Marker = '#'
	Reset  = "\x1b[0m"
)

// colors maps a lower-case code to its SGR foreground digit.
var colors = map[byte]byte{
	'd': '0', // dark
	'r': '1',
	'g': '2',
	'y': '3',
	'b': '4',
	'p': '5', // pink
	'c': '6',
	'w': '7',
}

// Expand returns s with every marker replaced.  When the text leaves a
// color active, a reset is appended.
func Expand(s string) string {
	out := make([]byte, 0, len(s)+16)
	color := false

	for i := 0; i < len(s); i++ {
		if s[i] != Marker {
			out = append(out, s[i])
			continue
		}
		if i+1 == len(s) {
			out = append(out, Marker)
			break
		}

		code := s[i+1]
		if code == 'n' {
			out = append(out, Reset...)
			color = false
			i++
			continue
		}

		bold := byte('0')
		lower := code
		if code >= 'A' && code <= 'Z' {
			bold = '1'
			lower = code + ('a' - 'A')
		}
		digit, ok := colors[lower]
		if !ok {
			out = append(out, Marker)
			continue
		}
		out = append(out, 0x1b, '[', bold, ';', '3', digit, 'm')
		color = true
		i++
	}

	if color {
		out = append(out, Reset...)
	}
	return string(out)
}

// Strip removes every recognized marker without emitting escapes.
func Strip(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == Marker && i+1 < len(s) {
			code := s[i+1]
			if code >= 'A' && code <= 'Z' {
				code += 'a' - 'A'
			}
			if _, ok := colors[code]; ok || s[i+1] == 'n' {
				i++
				continue
			}
		}
		out = append(out, s[i])
	}
	return string(out)
}
