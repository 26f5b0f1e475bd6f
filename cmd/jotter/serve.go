package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aretw0/lifecycle"
	"github.com/spf13/cobra"

	"github.com/aretw0/jotter/internal/httpapi"
	"github.com/aretw0/jotter/internal/platform"
	"github.com/aretw0/jotter/pkg/auth"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the notes over HTTP",
	Long: `Serve starts the HTTP API. Requests authenticate with a bearer token
signed with auth.secret (see "jotter token").`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		tokens, err := auth.NewTokens(cfg.Auth.Secret, cfg.Auth.TokenTTL)
		if err != nil {
			return fmt.Errorf("auth.secret (or %sAUTH_SECRET) is required: %w", platform.EnvPrefix, err)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		store, err := platform.Init(ctx, cfg.URI(), append(cfg.Options(), platform.WithLogger(slog.Default()))...)
		if err != nil {
			return fmt.Errorf("failed to open store: %w", err)
		}
		if c, ok := store.(io.Closer); ok {
			defer c.Close()
		}

		api, err := httpapi.New(httpapi.Config{
			Store:        store,
			Tokens:       tokens,
			Logger:       slog.Default(),
			MaxTagValues: cfg.MaxTagValues,
			EventBuffer:  cfg.EventBuffer,
		})
		if err != nil {
			return err
		}

		addr := cfg.HTTP.Addr
		if serveAddr != "" {
			addr = serveAddr
		}
		srv := &http.Server{
			Addr:              addr,
			Handler:           api.Routes(),
			ReadHeaderTimeout: 5 * time.Second,
		}

		errCh := make(chan error, 1)
		lifecycle.Go(ctx, func(ctx context.Context) error {
			slog.Info("listening", "addr", addr, "store", cfg.Adapter)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
			return nil
		})

		select {
		case err, ok := <-errCh:
			if ok {
				return err
			}
			return nil
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		slog.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from http.addr)")
}
