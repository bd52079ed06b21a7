// Command gatekeeper runs the rate limiting gateway.
//
// Configuration is read from the environment (and an optional .env file).
// See app/gatekeeper.Config for the full list of variables.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrymomot/gatekeeper/app/gatekeeper"
	"github.com/dmitrymomot/gatekeeper/core/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := gatekeeper.NewApp(ctx)
	if err != nil {
		slog.Error("failed to initialize gatekeeper", logger.Error(err))
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil {
		slog.Error("gatekeeper stopped with error", logger.Error(err))
		os.Exit(1)
	}
}
