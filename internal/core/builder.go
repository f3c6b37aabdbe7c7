package core

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sys/unix"

	"sockmud/config"
	"sockmud/internal/command"
	"sockmud/internal/help"
	"sockmud/internal/metrics"
	"sockmud/internal/retry"
	"sockmud/internal/server"
	"sockmud/internal/storage"
	"sockmud/internal/transport"
	"sockmud/util"
)

// Build constructs the game from the given configuration.  The listener
// is inherited when cfg carries a copyover descriptor and bound fresh
// otherwise.
func Build(ctx context.Context, cfg *config.Config, logger *util.Logger) (*Game, error) {
	store, err := storage.NewFileStore(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	helps, err := help.Open(cfg.HelpDir, logger)
	if err != nil {
		return nil, err
	}

	l, err := buildListener(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	srv, err := server.New(server.Options{
		Listener:     l,
		Store:        store,
		Help:         helps,
		Dispatcher:   command.New(),
		Metrics:      metrics.New(),
		Logger:       logger,
		Prompt:       cfg.Prompt,
		InputLimit:   cfg.InputLimit,
		OutputLimit:  cfg.OutputLimit,
		WriteChunk:   cfg.WriteChunk,
		MaxConns:     cfg.MaxConnections,
		PasswordCost: cfg.PasswordCost,
		Admins:       cfg.Admins,
		NoDNS:        cfg.NoDNS,
		CopyoverFile: cfg.CopyoverPath(),
		RestartArgs:  cfg.RestartArgs,
	})
	if err != nil {
		l.Close()
		return nil, err
	}

	return &Game{Server: srv, Config: cfg, Logger: logger}, nil
}

// ── shared helpers ───────────────────────────────────────────────────

// buildListener adopts the inherited descriptor on recovery, or binds
// the configured address, retrying while the port is still in use.
func buildListener(ctx context.Context, cfg *config.Config, logger *util.Logger) (*transport.Listener, error) {
	if cfg.Recovering() {
		l, err := transport.FileListener(cfg.CopyoverFD)
		if err != nil {
			return nil, fmt.Errorf("copyover: inherited listener %d: %w", cfg.CopyoverFD, err)
		}
		logger.Verbose("Adopted listener %s on descriptor %d.", l.Addr(), cfg.CopyoverFD)
		return l, nil
	}

	addr, err := util.ParseListenAddr(cfg.Host, cfg.Port)
	if err != nil {
		return nil, err
	}

	var l *transport.Listener
	err = retry.BindBackoff().Do(ctx, func(attempt int) error {
		var lerr error
		l, lerr = transport.Listen(addr, cfg.Backlog)
		if lerr == nil {
			return nil
		}
		if !errors.Is(lerr, unix.EADDRINUSE) {
			return retry.Permanent(lerr)
		}
		logger.Warn("Bind %s failed (attempt %d): %v", addr, attempt, lerr)
		return lerr
	})
	if err != nil {
		return nil, err
	}
	return l, nil
}
