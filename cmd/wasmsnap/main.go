// Command wasmsnap inspects, verifies, compacts and moves the checkpoint
// snapshots written by the snapshot engine.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/yndnr/wasmsnap-go/internal/cli/command"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := command.App().RunContext(ctx, os.Args); err != nil {
		command.PrintError(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
