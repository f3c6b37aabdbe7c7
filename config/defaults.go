package config

// ── Default values ───────────────────────────────────────────────────
//
// All tuneable defaults live here so they are easy to audit and reuse
// across CLI flags, config file parsing, and environment variable
// loading.

const (
	// DefaultHost binds every interface.
	DefaultHost = "0.0.0.0"

	// DefaultPort is the game port.
	DefaultPort = 9009

	// DefaultBacklog is the listen(2) queue length.
	DefaultBacklog = 3

	// DefaultDataDir holds player files.
	DefaultDataDir = "players"

	// DefaultHelpDir holds help.lst and the help entries.
	DefaultHelpDir = "help"

	// DefaultCopyoverFile is the recovery record file, relative to the
	// data dir.
	DefaultCopyoverFile = "copyover.dat"

	// DefaultInputLimit bounds a connection's unframed input.
	DefaultInputLimit = 1024

	// DefaultOutputLimit bounds a connection's pending output.
	DefaultOutputLimit = 8192

	// DefaultWriteChunk is the largest single write(2).
	DefaultWriteChunk = 4096

	// DefaultPrompt is shown after every command.
	DefaultPrompt = "\n\rSockMud:> "

	// MinBufferLimit is the smallest accepted input or output limit.
	MinBufferLimit = 64
)
