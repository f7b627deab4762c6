// Command molsearch is the command line client: index maintenance and
// queries against the configured store.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/turtacn/molsearch/internal/interfaces/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Execute prints the error itself.
	if err := cli.Execute(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
