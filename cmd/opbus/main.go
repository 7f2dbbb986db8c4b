// Command opbus dispatches the bank operations through the operations bus.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/smartcontractkit/operations-bus/pkg/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// the logger is built from the log level of the loaded configuration
	if err := commands.New(nil).Root().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
