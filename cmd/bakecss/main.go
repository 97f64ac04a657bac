package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/roach88/bakecss/internal/cli"
)

func main() {
	// Interrupts cancel the running compilation through its context.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := cli.NewRootCommand().ExecuteContext(ctx)
	stop()
	if err == nil {
		return
	}
	// Commands report their own failures and cobra prints usage errors.
	os.Exit(cli.GetExitCode(err))
}
