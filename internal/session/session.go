// Package session represents an authenticated identity, independent of
// the connection currently carrying it.
//
// A Session outlives its connection: when the link drops the Session
// stays in the active list as linkdead until a later login hijacks it or
// the player quits.
package session

import (
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"

	"sockmud/internal/arena"
)

// Level is a privilege level.  Commands require a minimum level.
type Level int

const (
	LevelGuest  Level = 1
	LevelPlayer Level = 2
	LevelAdmin  Level = 3
)

func (l Level) String() string {
	switch l {
	case LevelGuest:
		return "guest"
	case LevelPlayer:
		return "player"
	case LevelAdmin:
		return "admin"
	}
	return "unknown"
}

// Name and password bounds enforced at login.
const (
	MinNameLen     = 3
	MaxNameLen     = 12
	MinPasswordLen = 5
	MaxPasswordLen = 12
)

// DefaultCost is the bcrypt cost used when none is configured.
const DefaultCost = bcrypt.DefaultCost

// Session is one player identity.
type Session struct {
	Name     string
	Password string // bcrypt hash
	Level    Level

	// Conn is the bound connection's handle, zero when linkdead.
	Conn arena.Handle
}

// New returns a fresh player-level Session for name.
func New(name string) *Session {
	return &Session{Name: name, Level: LevelPlayer}
}

// Reset clears s for reuse from a pool.
func (s *Session) Reset() {
	*s = Session{Level: LevelPlayer}
}

// Linkdead reports whether no connection is bound.
func (s *Session) Linkdead() bool { return s.Conn.IsZero() }

// SetPassword stores a salted hash of plain.
func (s *Session) SetPassword(plain string, cost int) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return err
	}
	s.Password = string(hash)
	return nil
}

// CheckPassword reports whether plain matches the stored hash.
func (s *Session) CheckPassword(plain string) bool {
	if s.Password == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(s.Password), []byte(plain)) == nil
}

// ValidName reports whether name is a legal player name: letters only,
// 3 to 12 of them.
func ValidName(name string) bool {
	if len(name) < MinNameLen || len(name) > MaxNameLen {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z') {
			return false
		}
	}
	return true
}

// ValidPassword reports whether plain has an acceptable length.
func ValidPassword(plain string) bool {
	return len(plain) >= MinPasswordLen && len(plain) <= MaxPasswordLen
}

// Capitalize upper-cases the first letter of name and leaves the rest
// untouched.
func Capitalize(name string) string {
	if name == "" {
		return name
	}
	return string(unicode.ToUpper(rune(name[0]))) + name[1:]
}

// SameName compares player names case-insensitively.
func SameName(a, b string) bool { return strings.EqualFold(a, b) }
