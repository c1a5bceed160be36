package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	sharedserver "lambda-janitor/internal/shared/server"
	"lambda-janitor/internal/shared/telemetry"
)

const shutdownTimeout = 30 * time.Second

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run on a cron schedule and expose the ops HTTP API",
		Long: `Start the long-running janitor: runs are triggered by SCHEDULE and by
POST /api/v1/runs, health and metrics are served on PORT.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, err := loadApp(ctx, rootOpts)
			if err != nil {
				return err
			}

			scheduler := app.Scheduler()
			if err := scheduler.Start(ctx); err != nil {
				return WrapExitError(ExitCommandError, "start scheduler", err)
			}
			defer scheduler.Stop()

			srv := &http.Server{
				Addr:              sharedserver.Addr(app.Config.Port),
				Handler:           app.Router(),
				ReadHeaderTimeout: 10 * time.Second,
			}
			return serve(ctx, srv)
		},
	}
}

// serve runs srv until ctx is done, then shuts it down gracefully.
func serve(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		telemetry.Info("server.started", map[string]any{"addr": srv.Addr})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return WrapExitError(ExitCommandError, "server error", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	telemetry.Info("server.stopping", nil)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return WrapExitError(ExitCommandError, "server shutdown", err)
	}
	return nil
}
