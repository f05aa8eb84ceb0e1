// Package app provides the pdfrag application.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kart-io/pdfrag/cmd/pdfrag/app/options"
	ragsvc "github.com/kart-io/pdfrag/internal/rag"
	"github.com/kart-io/pdfrag/pkg/infra/app"
)

// commandDesc is the description of the command.
const commandDesc = `pdfrag - PDF retrieval-augmented generation service

Running the command without a subcommand starts the HTTP API server.

This server provides:
  - PDF upload, text extraction and chunking
  - Vector embeddings stored in memory, bolt, Qdrant, Milvus or pgvector
  - Semantic similarity search
  - Question answering grounded on the retrieved chunks

Use "pdfrag ingest" to index local files and "pdfrag query" to ask a
question without starting the server.`

// NewApp creates and returns a new App object with default parameters.
func NewApp() *app.App {
	opts := options.NewServerOptions()
	application := app.NewApp(
		app.WithName(ragsvc.Name),
		app.WithShortDescription("PDF retrieval-augmented generation service"),
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithRunFunc(run(opts)),
		app.WithCommands(
			newServeCommand(opts),
			newIngestCommand(opts),
			newQueryCommand(opts),
			app.NewConfigCommand(opts),
		),
	)

	return application
}

// newServeCommand returns the explicit form of the default run.
func newServeCommand(opts *options.ServerOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return run(opts)()
		},
	}
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
