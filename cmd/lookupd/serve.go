package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/refdata-io/lookupd/internal/config"
	"github.com/refdata-io/lookupd/internal/httpapi"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg := config.Load()
			a, err := buildApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.close()

			server := httpapi.NewServer(a.services, a.health, a.logger, httpapi.Options{
				JWTSecret:      cfg.JWTSecret,
				AuthOff:        cfg.AuthOff,
				Dev:            cfg.Dev,
				RequestTimeout: cfg.RequestTimeout,
				Registry:       a.metrics.GetRegistry(),
			})

			a.logger.Info("listening", "addr", cfg.ListenAddr, "storage", cfg.Storage.Type)
			return server.Run(ctx, cfg.ListenAddr)
		},
	}
}
