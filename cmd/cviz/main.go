package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/cviz/relay/cmd/cviz/cmd"
	"github.com/cviz/relay/internal/logging"
)

func main() {
	logging.Initialize()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd.Execute(ctx)
}
