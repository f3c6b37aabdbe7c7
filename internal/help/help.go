// Package help serves help entries from a directory of plain-text files.
//
// Entries listed in help.lst are loaded at startup; any other file in the
// directory is loaded the first time someone asks for it.  An entry is
// reloaded when its file on disk is newer than the loaded copy.
package help

import (
	"bufio"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"sockmud/util"
)

const (
	listFile = "help.lst"

	Greeting = "GREETING"
	Motd     = "MOTD"
)

const (
	defaultGreeting = "\n\rWelcome to SockMud.\n\r\n\r"
	defaultMotd     = "\n\rYou have entered the game.\n\r"
)

// Entry is one loaded help file.
type Entry struct {
	Keyword string
	Text    string
	loaded  time.Time // file mtime at load
}

// Store holds help entries.  It is used only from the reactor goroutine.
type Store struct {
	dir     string
	entries []*Entry
	logger  *util.Logger
}

// Open loads the entries listed in dir/help.lst.  A missing directory or
// list is not an error; the store then starts empty and the built-in
// greeting and MOTD are used.
func Open(dir string, logger *util.Logger) (*Store, error) {
	s := &Store{dir: dir, logger: logger}
	if dir == "" {
		return s, nil
	}

	f, err := os.Open(filepath.Join(dir, listFile))
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, err
	}
	defer f.Close()

	logger.Info("Load_helps: getting all help files.")
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		keyword := strings.TrimSpace(sc.Text())
		if keyword == "" {
			continue
		}
		e, err := s.read(keyword)
		if err != nil {
			logger.Warn("help: %s listed but unreadable: %v", keyword, err)
			continue
		}
		s.entries = append(s.entries, e)
	}
	return s, sc.Err()
}

// Lookup finds the first entry whose keyword starts with topic, ignoring
// case, reloading it if the file changed.  When nothing loaded matches it
// tries a file named after the topic.
func (s *Store) Lookup(topic string) (*Entry, bool) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, false
	}

	for _, e := range s.entries {
		if !isPrefix(topic, e.Keyword) {
			continue
		}
		if s.modified(e) {
			if fresh, err := s.read(e.Keyword); err == nil {
				*e = *fresh
			}
		}
		return e, true
	}

	if s.dir == "" || strings.ContainsAny(topic, `/\.`) {
		return nil, false
	}
	e, err := s.read(strings.ToUpper(topic))
	if err != nil {
		return nil, false
	}
	s.entries = append(s.entries, e)
	return e, true
}

// Format renders e the way the help command shows it.
func (e *Entry) Format() string {
	return "=== " + e.Keyword + " ===\n\r" + e.Text
}

// Greeting returns the text sent to every new connection.
func (s *Store) Greeting() string { return s.text(Greeting, defaultGreeting) }

// Motd returns the text shown on entering the game.
func (s *Store) Motd() string { return s.text(Motd, defaultMotd) }

// Keywords lists loaded entries in sorted order.
func (s *Store) Keywords() []string {
	out := make([]string, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.Keyword)
	}
	sort.Strings(out)
	return out
}

func (s *Store) text(keyword, fallback string) string {
	for _, e := range s.entries {
		if strings.EqualFold(e.Keyword, keyword) {
			if s.modified(e) {
				if fresh, err := s.read(e.Keyword); err == nil {
					*e = *fresh
				}
			}
			return e.Text
		}
	}
	return fallback
}

func (s *Store) modified(e *Entry) bool {
	fi, err := os.Stat(filepath.Join(s.dir, e.Keyword))
	return err == nil && fi.ModTime().After(e.loaded)
}

// read loads a help file, converting line ends to CR LF order the
// clients expect.
func (s *Store) read(keyword string) (*Entry, error) {
	path := filepath.Join(s.dir, keyword)
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	text := strings.ReplaceAll(string(data), "\r", "")
	text = strings.ReplaceAll(text, "\n", "\n\r")
	return &Entry{Keyword: keyword, Text: text, loaded: fi.ModTime()}, nil
}

func isPrefix(prefix, s string) bool {
	return len(prefix) <= len(s) && strings.EqualFold(prefix, s[:len(prefix)])
}
