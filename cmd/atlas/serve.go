package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/wouteroostervld/atlas/pkg/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Address to listen on (default: server.addr from config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	addr := serveAddr
	if addr == "" {
		addr = a.profile.Server.Addr
	}
	srv := server.New(server.Config{
		Addr:            addr,
		AllowedOrigins:  a.profile.Server.AllowedOrigins,
		AllowLocalPaths: a.profile.Server.AllowLocalPaths,
	}, a.engine, a.pipeline, a.db)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start()
	}()
	fmt.Printf("Atlas API listening on http://%s\n", addr)

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		slog.Info("Received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
