package config

// loader.go - configuration loading from a TOML file and the environment.
//
// Precedence order (highest wins):
//   1. CLI flags  (handled by cmd/root.go)
//   2. Environment variables  (LoadFromEnv)
//   3. TOML file  (LoadFile, --config)
//   4. Defaults   (defaults.go)

import (
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	muderr "sockmud/internal/errors"
)

// LoadFile overlays the TOML file at path onto cfg.  Keys absent from
// the file keep their current value; unknown keys are an error.
func LoadFile(path string, cfg *Config) error {
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return &muderr.ConfigError{Field: "config", Value: path, Message: err.Error()}
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return &muderr.ConfigError{
			Field:   "config",
			Value:   path,
			Message: "unknown keys: " + strings.Join(keys, ", "),
		}
	}
	return nil
}

// ── Environment variable mapping ─────────────────────────────────────
//
// Every supported env var uses the SOCKMUD_ prefix.  Boolean values
// accept "1", "true", "yes" (case-insensitive).

// LoadFromEnv overlays environment variables onto cfg.  Only non-empty
// env vars override the existing value.  This should be called BEFORE
// CLI flag parsing so that flags take precedence.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("SOCKMUD_HOST"); v != "" {
		cfg.Host = v
	}
	if v := envInt("SOCKMUD_PORT"); v > 0 {
		cfg.Port = v
	}
	if v := envInt("SOCKMUD_BACKLOG"); v > 0 {
		cfg.Backlog = v
	}
	if v := envInt("SOCKMUD_MAX_CONNS"); v > 0 {
		cfg.MaxConnections = v
	}
	if envBool("SOCKMUD_NO_DNS") {
		cfg.NoDNS = true
	}

	// Files
	if v := os.Getenv("SOCKMUD_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("SOCKMUD_HELP_DIR"); v != "" {
		cfg.HelpDir = v
	}
	if v := os.Getenv("SOCKMUD_COPYOVER_FILE"); v != "" {
		cfg.CopyoverFile = v
	}

	// Buffers
	if v := envInt("SOCKMUD_INPUT_LIMIT"); v > 0 {
		cfg.InputLimit = v
	}
	if v := envInt("SOCKMUD_OUTPUT_LIMIT"); v > 0 {
		cfg.OutputLimit = v
	}
	if v := envInt("SOCKMUD_WRITE_CHUNK"); v > 0 {
		cfg.WriteChunk = v
	}

	// Accounts
	if v := envInt("SOCKMUD_PASSWORD_COST"); v > 0 {
		cfg.PasswordCost = v
	}
	if v := os.Getenv("SOCKMUD_ADMINS"); v != "" {
		cfg.Admins = splitList(v)
	}

	// Output
	if v := envInt("SOCKMUD_VERBOSE"); v > 0 {
		cfg.Verbose = v
	}
}

// ── helpers ──────────────────────────────────────────────────────────

func envInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func envBool(key string) bool {
	v := strings.ToLower(os.Getenv(key))
	return v == "1" || v == "true" || v == "yes"
}

// splitList parses a comma-separated list, dropping empty items.
func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
