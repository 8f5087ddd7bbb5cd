package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/victornm/facematch/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and gRPC servers",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int32("http-port", 0, "HTTP port (overrides config)")
	serveCmd.Flags().Int32("grpc-port", 0, "gRPC port (overrides config)")
	serveCmd.Flags().String("candidates", "", "Candidate file (overrides config)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	if p := mustGetInt32(cmd, "http-port"); p != 0 {
		cfg.HTTP.Port = p
	}
	if p := mustGetInt32(cmd, "grpc-port"); p != 0 {
		cfg.GRPC.Port = p
	}
	if f := mustGetString(cmd, "candidates"); f != "" {
		cfg.Game.Candidates = f
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGTERM, os.Interrupt)

	s, err := server.Init(cfg)
	if err != nil {
		return fmt.Errorf("init server: %w", err)
	}

	failed := make(chan error, 1)
	go func() {
		failed <- s.Start()
	}()

	select {
	case <-shutdown:
	case err = <-failed:
		slog.Error("server: stopped unexpectedly", "error", err)
	}

	s.Shutdown()
	return err
}
