// Package app provides the RAG server application.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kart-io/quizmind/cmd/rag/app/options"
	ragsvc "github.com/kart-io/quizmind/internal/rag"
	"github.com/kart-io/quizmind/pkg/infra/app"
)

// commandDesc is the description of the command.
const commandDesc = `quizmind RAG Service

The retrieval core of the quizmind question generator.

This server provides:
  - Document ingestion: text extraction, chunking, embedding and subject labeling
  - Multi-document retrieval with vector search and lexical fallback
  - Context assembly for question generation prompts`

// NewApp creates and returns a new App object with default parameters.
func NewApp() *app.App {
	opts := options.NewServerOptions()
	return app.NewApp(
		app.WithName(ragsvc.Name),
		app.WithShortDescription("quizmind RAG ingestion and retrieval service"),
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithRunFunc(run(opts)),
	)
}

// run contains the main logic for initializing and running the server.
func run(opts *options.ServerOptions) app.RunFunc {
	return func() error {
		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		ctx := setupSignalContext()

		server, err := cfg.NewServer(ctx)
		if err != nil {
			return fmt.Errorf("failed to create server: %w", err)
		}

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
