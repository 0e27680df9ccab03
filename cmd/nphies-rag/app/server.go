// Package app provides the NPHIES server application.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kart-io/nphies-rag/cmd/nphies-rag/app/options"
	nphiessvc "github.com/kart-io/nphies-rag/internal/nphies"
	"github.com/kart-io/nphies-rag/pkg/infra/app"
)

// commandDesc is the description of the command.
const commandDesc = `NPHIES Assistant Service

Answers questions about the NPHIES platform from a local Q&A knowledge file.

This server provides:
  - Lazy chunking and embedding of the knowledge file into a vector index
  - Nearest chunk retrieval for every question
  - Grounded answers in English or Arabic from an LLM
  - Optional Redis answer cache and Prometheus metrics`

// NewApp creates and returns a new App object with default parameters.
func NewApp() *app.App {
	opts := options.NewServerOptions()
	application := app.NewApp(
		app.WithName(nphiessvc.Name),
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithRunFunc(run(opts)),
	)

	return application
}

// run contains the main logic for initializing and running the server.
func run(opts *options.ServerOptions) app.RunFunc {
	return func() error {
		// Load the configuration options
		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		ctx := setupSignalContext()

		// Build the server using the configuration
		server, err := cfg.NewServer(ctx)
		if err != nil {
			return fmt.Errorf("failed to create server: %w", err)
		}

		// Run the server with signal context for graceful shutdown
		return server.Run(ctx)
	}
}

// setupSignalContext returns a context that is cancelled on SIGINT or SIGTERM.
// A second signal exits immediately.
func setupSignalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		cancel()
		<-c
		os.Exit(1)
	}()
	return ctx
}
