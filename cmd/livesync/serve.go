package main

import (
	"log"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/livefir/livesync/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve <file>",
	Short: "Serve a document and push edits to open pages",
	Long: `Serve the document instrumented with identifiers and a small client
script. Every time the file is saved the structural edits are pushed to open
pages over a websocket, so they update without reloading.`,
	Args: cobra.ExactArgs(1),
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides the config file)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if serveAddr != "" {
		cfg.Addr = serveAddr
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	logger := log.New(cmd.ErrOrStderr(), "livesync: ", log.LstdFlags)
	srv, err := server.New(newEngine(cmd.ErrOrStderr()), args[0], cfg, server.WithLogger(logger))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return srv.Run(ctx)
}
