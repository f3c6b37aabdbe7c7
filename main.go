// SockMud - a telnet MUD server core with copyover support.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"sockmud/cmd"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := cmd.Execute(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "sockmud: %v\n", err)
		os.Exit(1)
	}
}
