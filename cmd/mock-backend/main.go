package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/gestionnegocio/console/internal/catalog"
	"github.com/gestionnegocio/console/internal/logging"
	"github.com/gestionnegocio/console/internal/mockapi"
	"github.com/spf13/cobra"
)

func main() {
	var addr, logLevel string
	var empty bool

	cmd := &cobra.Command{
		Use:   "mock-backend",
		Short: "Serve an in-memory business API for local development",
		Long: `mock-backend serves the business API endpoints the console uses, backed by
an in-memory database. Every account uses the password "demo".`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.Console(logLevel)

			collections := make([]mockapi.Collection, 0, len(catalog.All()))
			for _, e := range catalog.All() {
				collections = append(collections, mockapi.Collection{Pattern: e.Path, Allowed: e.Allowed})
			}
			backend, err := mockapi.New(mockapi.Options{Collections: collections, Logger: logger})
			if err != nil {
				return fmt.Errorf("failed to create backend: %w", err)
			}
			if !empty {
				if err := seedDemo(backend); err != nil {
					return fmt.Errorf("failed to seed demo data: %w", err)
				}
			}

			srv := &http.Server{
				Addr:              addr,
				Handler:           backend.Handler(),
				ReadHeaderTimeout: 5 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			serveErr := make(chan error, 1)
			go func() {
				logger.Info().Str("address", addr).Msg("mock backend listening")
				serveErr <- srv.ListenAndServe()
			}()

			select {
			case err := <-serveErr:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-ctx.Done():
			}

			logger.Info().Msg("shutting down...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8000", "Listen address")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	cmd.Flags().BoolVar(&empty, "empty", false, "Start with accounts only and no demo records")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
