// Package storage persists player sessions as line-oriented record files.
//
// Each player has two files in the data directory: <Name>.pfile holding
// the full record and <Name>.profile holding only what a login needs to
// check credentials.  Both use one "Label<spaces>Value~" line per field
// (integers carry no tilde) and end with a line reading EOF.
package storage

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	muderr "sockmud/internal/errors"
	"sockmud/internal/session"
)

// Store is the persistence collaborator the server consumes.
type Store interface {
	// Save writes both files for s.
	Save(s *session.Session) error
	// Load reads the full record.
	Load(name string) (*session.Session, error)
	// LoadCredentials reads only the profile, for a password check.
	LoadCredentials(name string) (*session.Session, error)
}

const terminator = "EOF"

// FileStore keeps player files in one directory.
type FileStore struct {
	dir string
}

var _ Store = (*FileStore)(nil)

// NewFileStore returns a store rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &muderr.PersistenceError{Op: "open", Name: dir, Err: err}
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the data directory.
func (fs *FileStore) Dir() string { return fs.dir }

// FileName normalizes a player name for use on disk: first letter upper
// case, the rest lower case.
func FileName(name string) string {
	if name == "" {
		return name
	}
	return strings.ToUpper(name[:1]) + strings.ToLower(name[1:])
}

func (fs *FileStore) path(name, ext string) string {
	return filepath.Join(fs.dir, FileName(name)+ext)
}

func (fs *FileStore) Save(s *session.Session) error {
	if s == nil || s.Name == "" {
		return &muderr.PersistenceError{Op: "save", Err: muderr.New("session has no name")}
	}

	pfile := []field{
		{"Name", s.Name, true},
		{"Level", strconv.Itoa(int(s.Level)), false},
		{"Password", s.Password, true},
	}
	if err := writeAtomic(fs.path(s.Name, ".pfile"), pfile); err != nil {
		return &muderr.PersistenceError{Op: "save", Name: s.Name, Err: err}
	}

	profile := []field{
		{"Name", s.Name, true},
		{"Password", s.Password, true},
	}
	if err := writeAtomic(fs.path(s.Name, ".profile"), profile); err != nil {
		return &muderr.PersistenceError{Op: "save", Name: s.Name, Err: err}
	}
	return nil
}

func (fs *FileStore) Load(name string) (*session.Session, error) {
	return fs.load("load", name, fs.path(name, ".pfile"), true)
}

func (fs *FileStore) LoadCredentials(name string) (*session.Session, error) {
	return fs.load("load-credentials", name, fs.path(name, ".profile"), false)
}

func (fs *FileStore) load(op, name, path string, withLevel bool) (*session.Session, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, muderr.NotFound(op, name)
		}
		return nil, &muderr.PersistenceError{Op: op, Name: name, Err: err}
	}
	defer f.Close()

	s := session.New("")
	if err := parse(f, s, withLevel); err != nil {
		return nil, muderr.Corrupt(op, name, "%v", err)
	}
	if s.Name == "" {
		return nil, muderr.Corrupt(op, name, "no Name field")
	}
	return s, nil
}

type field struct {
	label  string
	value  string
	tilded bool
}

func parse(r io.Reader, s *session.Session, withLevel bool) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		label, value := line, ""
		if i := strings.IndexAny(line, " \t"); i >= 0 {
			label, value = line[:i], strings.TrimSpace(line[i:])
		}

		switch {
		case label == terminator:
			return nil
		case label == "Name":
			s.Name = strings.TrimSuffix(value, "~")
		case label == "Password":
			s.Password = strings.TrimSuffix(value, "~")
		case label == "Level" && withLevel:
			n, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("bad Level %q", value)
			}
			s.Level = session.Level(n)
		default:
			return fmt.Errorf("unexpected '%s'", label)
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return fmt.Errorf("missing %s", terminator)
}

// writeAtomic writes the record to a temp file in the same directory and
// renames it over path.
func writeAtomic(path string, fields []field) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	for _, f := range fields {
		if f.tilded {
			fmt.Fprintf(w, "%-16s%s~\n", f.label, f.value)
		} else {
			fmt.Fprintf(w, "%-16s%s\n", f.label, f.value)
		}
	}
	fmt.Fprintln(w, terminator)

	if err := w.Flush(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
