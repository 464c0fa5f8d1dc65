package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rushteam/estaterec/api"
	"github.com/rushteam/estaterec/config"
	"github.com/rushteam/estaterec/pkg/logging"
)

var (
	configPath string
	cfg        *config.Config

	rootCmd = &cobra.Command{
		Use:           "estaterec",
		Short:         "Real-estate recommendation and semantic search engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			c, err := config.Load(configPath)
			if err != nil {
				return err
			}
			cfg = c
			logging.Init(cfg.Log)
			return nil
		},
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}

	refreshCmd = &cobra.Command{
		Use:   "refresh",
		Short: "Recompute all recommendations once and persist the snapshot",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return refreshOnce(cmd.Context())
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv(config.EnvPrefix+"CONFIG"), "path to the YAML config file")
	rootCmd.AddCommand(serveCmd, refreshCmd)
}

func serve(ctx context.Context) error {
	logger := logging.Component("server")

	a, err := newApp(ctx, cfg, logging.Logger())
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.refresher.Warm(ctx); err != nil {
		logger.Warn().Err(err).Msg("warm recommendation cache failed")
	}
	if cfg.Recommend.RefreshOnStart {
		a.refresher.Trigger()
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      api.NewRouter(a.svc, logging.Logger()),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func refreshOnce(ctx context.Context) error {
	a, err := newApp(ctx, cfg, logging.Logger())
	if err != nil {
		return err
	}
	defer a.close()
	return a.refresher.Refresh(ctx)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		l := logging.Logger()
		l.Error().Err(err).Msg("estaterec exited")
		stop()
		os.Exit(1)
	}
}
