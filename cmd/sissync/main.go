// Package main provides the entry point for the sissync CLI tool.
package main

import (
	"context"
	"os"

	"github.com/agentstation/sissync/cmd/sissync/app"
)

// Version information populated by goreleaser.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
	builtBy = "unknown"
)

func main() {
	application, err := app.New(version, commit, date, builtBy)
	if err != nil {
		app.ExitOnError(err)
	}

	// Create context with signal handling so an interrupted sync stops
	// between requests.
	ctx, cancel := app.ContextWithSignals(context.Background())
	defer cancel()

	if err := application.Execute(ctx, os.Args[1:]); err != nil {
		application.Logger().Error().Err(err).Msg("sissync failed")
		cancel()
		app.ExitOnError(err)
	}
}
