// Package config defines the runtime configuration for the sockmud server
// and validates it before the listener is opened.
package config

import (
	"fmt"
	"path/filepath"

	"golang.org/x/crypto/bcrypt"

	muderr "sockmud/internal/errors"
	"sockmud/util"
)

// Config holds every tuneable for one server process.
type Config struct {
	// ── Network ──────────────────────────────────────────────────────
	Host           string `toml:"host"`
	Port           int    `toml:"port"`
	Backlog        int    `toml:"backlog"`
	MaxConnections int    `toml:"max_connections"` // 0 = unlimited
	NoDNS          bool   `toml:"no_dns"`

	// ── Files ────────────────────────────────────────────────────────
	DataDir      string `toml:"data_dir"`
	HelpDir      string `toml:"help_dir"`
	CopyoverFile string `toml:"copyover_file"`

	// ── Buffers ──────────────────────────────────────────────────────
	InputLimit  int    `toml:"input_limit"`
	OutputLimit int    `toml:"output_limit"`
	WriteChunk  int    `toml:"write_chunk"`
	Prompt      string `toml:"prompt"`

	// ── Accounts ─────────────────────────────────────────────────────
	PasswordCost int      `toml:"password_cost"`
	Admins       []string `toml:"admins"`

	// ── Process ──────────────────────────────────────────────────────
	Verbose    int  `toml:"verbose"`
	CopyoverFD  int      `toml:"-"` // inherited listener; -1 on a cold boot
	DryRun      bool     `toml:"-"`
	RestartArgs []string `toml:"-"` // argv for the replacement image, minus the recovery flag
}

// Default returns a Config populated from defaults.go.
func Default() *Config {
	return &Config{
		Host:         DefaultHost,
		Port:         DefaultPort,
		Backlog:      DefaultBacklog,
		DataDir:      DefaultDataDir,
		HelpDir:      DefaultHelpDir,
		CopyoverFile: DefaultCopyoverFile,
		InputLimit:   DefaultInputLimit,
		OutputLimit:  DefaultOutputLimit,
		WriteChunk:   DefaultWriteChunk,
		Prompt:       DefaultPrompt,
		PasswordCost: bcrypt.DefaultCost,
		Verbose:      1,
		CopyoverFD:   -1,
	}
}

// Recovering reports whether the process was started by a copyover.
func (c *Config) Recovering() bool { return c.CopyoverFD >= 0 }

// ListenAddr returns host:port for log lines and error messages.
func (c *Config) ListenAddr() string {
	return util.FormatAddr(c.Host, c.Port)
}

// CopyoverPath resolves CopyoverFile against DataDir when it is relative.
func (c *Config) CopyoverPath() string {
	if filepath.IsAbs(c.CopyoverFile) || c.DataDir == "" {
		return c.CopyoverFile
	}
	return filepath.Join(c.DataDir, c.CopyoverFile)
}

// ── Validation ───────────────────────────────────────────────────────

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return &muderr.ConfigError{
			Field: "port", Value: c.Port,
			Message: "out of range 1-65535",
			Hint:    "use a port between 1 and 65535",
		}
	}
	if c.Backlog < 1 {
		return &muderr.ConfigError{Field: "backlog", Value: c.Backlog, Message: "must be positive"}
	}
	if c.MaxConnections < 0 {
		return &muderr.ConfigError{
			Field: "max-conns", Value: c.MaxConnections,
			Message: "must not be negative",
			Hint:    "use 0 for no limit",
		}
	}
	if c.DataDir == "" {
		return &muderr.ConfigError{
			Field:   "data-dir",
			Message: "is required",
			Hint:    "player files are stored here, e.g. --data-dir ./players",
		}
	}
	if c.CopyoverFile == "" {
		return &muderr.ConfigError{Field: "copyover-file", Message: "is required"}
	}
	if c.InputLimit < MinBufferLimit {
		return &muderr.ConfigError{
			Field: "input-limit", Value: c.InputLimit,
			Message: fmt.Sprintf("must be at least %d", MinBufferLimit),
		}
	}
	if c.OutputLimit < MinBufferLimit {
		return &muderr.ConfigError{
			Field: "output-limit", Value: c.OutputLimit,
			Message: fmt.Sprintf("must be at least %d", MinBufferLimit),
		}
	}
	if c.WriteChunk < 1 {
		return &muderr.ConfigError{Field: "write-chunk", Value: c.WriteChunk, Message: "must be positive"}
	}
	if c.PasswordCost < bcrypt.MinCost || c.PasswordCost > bcrypt.MaxCost {
		return &muderr.ConfigError{
			Field: "password-cost", Value: c.PasswordCost,
			Message: fmt.Sprintf("out of range %d-%d", bcrypt.MinCost, bcrypt.MaxCost),
			Hint:    fmt.Sprintf("the default is %d", bcrypt.DefaultCost),
		}
	}
	if c.Verbose < 0 {
		return &muderr.ConfigError{Field: "verbose", Value: c.Verbose, Message: "must not be negative"}
	}
	return nil
}
