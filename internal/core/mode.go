// Package core is the orchestration layer.  It opens the listener,
// composes storage, help, commands, and metrics around a server.Server,
// and runs copyover recovery before the reactor starts.
//
// Architecture layers (bottom → top):
//
//	transport/telnet  →  server  →  command  →  core  →  cmd (CLI)
package core

import (
	"context"
	"errors"

	"sockmud/config"
	muderr "sockmud/internal/errors"
	"sockmud/internal/server"
	"sockmud/util"
)

// Mode represents a complete operational mode of the process.  The game
// owns its full lifecycle from listener to teardown.
type Mode interface {
	Run(ctx context.Context) error
}

// Game is the server process: one reactor plus its collaborators.
type Game struct {
	Server *server.Server
	Config *config.Config
	Logger *util.Logger
}

// Run restores inherited connections when the process was started by a
// copyover, then drives the reactor until ctx is done or the game is
// shut down.
func (g *Game) Run(ctx context.Context) error {
	if g.Config.Recovering() {
		n, err := g.Server.Recover(g.Config.CopyoverPath())
		switch {
		case errors.Is(err, muderr.ErrNoCopyover):
			g.Logger.Warn("Copyover: %v", err)
		case err != nil:
			g.Server.Close()
			return err
		default:
			g.Logger.Info("Copyover recovery complete, %d player(s) restored.", n)
		}
	}
	return g.Server.Run(ctx)
}
