// Package cmd wires up the CLI flags and runs the game server.
package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	flag "github.com/spf13/pflag"

	"sockmud/config"
	"sockmud/internal/core"
	"sockmud/internal/server"
	"sockmud/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X sockmud/cmd.version=2.0.0"
var version = "1.0.0" //nolint:gochecknoglobals

// flagValues holds raw flag values until the file and environment
// layers have been applied.
type flagValues struct {
	host         string
	port         int
	dataDir      string
	helpDir      string
	copyoverFile string
	maxConns     int
	admins       []string
	passwordCost int
	noDNS        bool
	verbose      int
}

// Execute parses args and runs the server.
func Execute(ctx context.Context, args []string) error {
	var fv flagValues
	fs := flag.NewFlagSet("sockmud", flag.ContinueOnError)

	// ── network ──────────────────────────────────────────────────
	fs.IntVarP(&fv.port, "port", "p", config.DefaultPort, "Port to listen on")
	fs.StringVar(&fv.host, "host", config.DefaultHost, "Numeric address to bind")
	fs.IntVar(&fv.maxConns, "max-conns", 0, "Refuse connections beyond this many (0 = unlimited)")
	fs.BoolVarP(&fv.noDNS, "no-dns", "n", false, "Skip reverse lookups of client addresses")

	// ── files ────────────────────────────────────────────────────
	var configPath string
	fs.StringVar(&configPath, "config", "", "TOML configuration file")
	fs.StringVar(&fv.dataDir, "data-dir", config.DefaultDataDir, "Directory holding player files")
	fs.StringVar(&fv.helpDir, "help-dir", config.DefaultHelpDir, "Directory holding help files")
	fs.StringVar(&fv.copyoverFile, "copyover-file", config.DefaultCopyoverFile, "Copyover record file (relative to --data-dir)")

	// ── accounts ─────────────────────────────────────────────────
	fs.StringSliceVar(&fv.admins, "admin", nil, "Player name promoted to admin (repeatable)")
	fs.IntVar(&fv.passwordCost, "password-cost", 0, "bcrypt cost for new passwords")

	// ── process ──────────────────────────────────────────────────
	copyoverFD := -1
	fs.IntVar(&copyoverFD, server.CopyoverFlag[2:], -1, "Inherited listener descriptor")
	_ = fs.MarkHidden(server.CopyoverFlag[2:])

	// ── output ───────────────────────────────────────────────────
	fs.CountVarP(&fv.verbose, "verbose", "v", "Increase verbosity (repeatable)")

	var showVersion, showHelp, dryRun bool
	fs.BoolVar(&dryRun, "dry-run", false, "Print the effective configuration and exit")
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	fs.BoolVarP(&showHelp, "help", "h", false, "Show this help")

	fs.Usage = func() { printUsage(fs) }

	// ── parse ────────────────────────────────────────────────────
	if err := fs.Parse(args); err != nil {
		return err
	}

	if showHelp {
		printUsage(fs)
		return nil
	}
	if showVersion {
		fmt.Printf("sockmud %s\n", version)
		return nil
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected arguments: %s (use --help for usage)", strings.Join(fs.Args(), " "))
	}

	// ── layer configuration ──────────────────────────────────────
	cfg := config.Default()
	if configPath != "" {
		if err := config.LoadFile(configPath, cfg); err != nil {
			return err
		}
	}
	config.LoadFromEnv(cfg)
	applyFlags(fs, &fv, cfg)
	cfg.CopyoverFD = copyoverFD
	cfg.DryRun = dryRun
	cfg.RestartArgs = restartArgs(args)

	// ── validate ─────────────────────────────────────────────────
	if err := cfg.Validate(); err != nil {
		return err
	}

	if cfg.DryRun {
		return toml.NewEncoder(os.Stdout).Encode(cfg)
	}

	// ── build components ─────────────────────────────────────────
	logger := util.NewLogger(cfg.Verbose)
	logger.Info("Program starting.")

	game, err := core.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if err := game.Run(ctx); err != nil {
		return err
	}

	logger.Info("Program terminated without errors.")
	return nil
}

// ── helpers ──────────────────────────────────────────────────────────

// applyFlags copies every flag the user set explicitly onto cfg.
func applyFlags(fs *flag.FlagSet, fv *flagValues, cfg *config.Config) {
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "host":
			cfg.Host = fv.host
		case "port":
			cfg.Port = fv.port
		case "max-conns":
			cfg.MaxConnections = fv.maxConns
		case "no-dns":
			cfg.NoDNS = fv.noDNS
		case "data-dir":
			cfg.DataDir = fv.dataDir
		case "help-dir":
			cfg.HelpDir = fv.helpDir
		case "copyover-file":
			cfg.CopyoverFile = fv.copyoverFile
		case "admin":
			cfg.Admins = fv.admins
		case "password-cost":
			cfg.PasswordCost = fv.passwordCost
		case "verbose":
			cfg.Verbose = fv.verbose
		}
	})
}

// restartArgs returns args without the recovery flag, so that a
// recovered process can copyover again with a fresh descriptor.
func restartArgs(args []string) []string {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == server.CopyoverFlag:
			i++ // skip the value
		case strings.HasPrefix(a, server.CopyoverFlag+"="):
		default:
			out = append(out, a)
		}
	}
	return out
}

func printUsage(fs *flag.FlagSet) {
	fmt.Fprintf(os.Stderr, `SockMud - telnet MUD server v%s

A single-process MUD server core with hot reboot (copyover).

Usage:
  sockmud [options]

Options:
`, version)
	fs.PrintDefaults()
	fmt.Fprintf(os.Stderr, `
Environment:
  SOCKMUD_PORT, SOCKMUD_HOST, SOCKMUD_DATA_DIR, SOCKMUD_HELP_DIR, SOCKMUD_ADMINS, ...
  (flags override the environment, which overrides --config)

Examples:
  sockmud -p 9009                             Listen on 9009
  sockmud --config /etc/sockmud.toml -v       Use a config file, verbose log
  sockmud --admin Ada --data-dir ./players    Promote Ada at login
`)
}
