package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/fuunylmz/Re-aniname/internal/api"
	"github.com/fuunylmz/Re-aniname/internal/app"
	"github.com/fuunylmz/Re-aniname/internal/config"
	"github.com/fuunylmz/Re-aniname/internal/logging"
)

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long: `Start the HTTP API used by download clients and scripts.

Endpoints (under /api/v1):
  GET  /health                 status and configuration summary
  POST /scan                   list video files under a path
  POST /batches                open an analysis session
  DELETE /batches/{id}         close an analysis session
  POST /analyze                identify one filename
  POST /process                place one file with known metadata
  POST /organize               run a full batch
  POST /hooks/qbittorrent      organize a finished torrent
  GET  /history[/{id}]         stored batches
  GET  /activity               recent file outcomes

Use reaninamed to also watch inbox directories.

Examples:
  reaniname serve                  # listen on [server].addr
  reaniname serve --addr :9000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "address to listen on (default: [server].addr)")

	return cmd
}

func runServe(cmd *cobra.Command, addr string) error {
	a, cleanup, err := setup(app.Options{}, func(cfg *config.Config) {
		if addr != "" {
			cfg.Server.Addr = addr
		}
	})
	if err != nil {
		return err
	}
	defer cleanup()

	server := api.NewServer(api.Deps{
		Config:   a.Config,
		Pipeline: a.Pipeline,
		History:  a.History,
		Activity: a.Activity,
		Logger:   a.Logger,
		Version:  version,
	})

	httpServer := &http.Server{
		Addr:              a.Config.Server.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- httpServer.ListenAndServe()
	}()

	fmt.Fprintf(cmd.OutOrStdout(), "Listening on %s (Ctrl+C to stop)\n", a.Config.Server.Addr)
	a.Logger.Info("serve", "API server started", logging.F("addr", a.Config.Server.Addr))

	select {
	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-cmd.Context().Done():
	}

	a.Logger.Info("serve", "Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
