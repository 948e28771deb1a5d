package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/barekit/docscope/pkg/api"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Starts the HTTP API. Requests are authenticated with an HS256 bearer
token when JWT_SECRET is set, otherwise the user is read from the
IDENTITY_HEADER set by a trusted proxy.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e, err := setup(ctx)
	if err != nil {
		return err
	}
	defer e.shutdown(context.Background())

	opts := []api.Option{
		api.WithLogger(e.logger),
		api.WithRequestTimeout(e.cfg.Server.WriteTimeout),
		api.WithCORS(e.cfg.Server.CORSOrigins...),
	}
	identity := api.HeaderIdentity(e.cfg.Server.IdentityHeader)
	if e.cfg.Server.JWTSecret != "" {
		identity = api.BearerIdentity([]byte(e.cfg.Server.JWTSecret))
	} else {
		e.logger.Warn("JWT_SECRET not set, trusting identity header",
			zap.String("header", e.cfg.Server.IdentityHeader))
		opts = append(opts, api.WithCORSHeaders(e.cfg.Server.IdentityHeader))
	}

	handler := api.NewHandler(e.kb, identity, opts...)
	srv := &http.Server{
		Addr:         e.cfg.Server.Addr,
		Handler:      handler.Routes(),
		ReadTimeout:  e.cfg.Server.ReadTimeout,
		WriteTimeout: e.cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		e.logger.Info("listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	e.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), e.cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
