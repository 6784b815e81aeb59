package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"moviequery/internal/handler"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(opts *rootOptions) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the query pipeline over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(opts, "moviequery-server")
			if err != nil {
				return err
			}
			if port > 0 {
				a.cfg.Server.Port = port
			}

			a.logger.Info().
				Str("version", Version).
				Str("build_time", BuildTime).
				Str("git_commit", GitCommit).
				Msg("Movie query server")

			// Set Gin mode
			gin.SetMode(a.cfg.Server.GinMode)

			repo, err := a.openRepository()
			if err != nil {
				return err
			}
			defer repo.Close()

			queryService := a.newQueryService(repo)
			router := handler.NewRouter(
				a.cfg.Server,
				handler.NewQueryHandler(queryService),
				handler.NewHealthHandler(repo, handler.BuildInfo{Version: Version, BuildTime: BuildTime, GitCommit: GitCommit}),
				a.logger,
			)

			addr := fmt.Sprintf("%s:%d", a.cfg.Server.Host, a.cfg.Server.Port)
			srv := &http.Server{
				Addr:              addr,
				Handler:           router,
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				a.logger.Info().Str("addr", addr).Msgf("Starting server, API at http://localhost:%d/api/v1", a.cfg.Server.Port)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			// Wait for interrupt signal
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			select {
			case err, ok := <-errCh:
				if ok {
					return fmt.Errorf("failed to start server: %w", err)
				}
				return nil
			case <-ctx.Done():
			}

			a.logger.Info().Msg("Shutting down server...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("failed to shut down server: %w", err)
			}
			a.logger.Info().Msg("Server stopped")
			return nil
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (overrides config)")
	return cmd
}
