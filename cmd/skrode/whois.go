package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/arrdem/skrode/internal/present/rest"
)

func newWhoisCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whois-api",
		Short: "Serve the whois HTTP API",
		Long: `Serve the read-only whois API: persona search by name with accounts
and name history expanded, queue depth statistics, and a health probe.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, opts)
			if err != nil {
				return err
			}
			shutdown, err := setupTracer(ctx, a.config.Server)
			if err != nil {
				return err
			}
			defer shutdown(context.Background())

			e := echo.New()
			e.HideBanner = true
			e.Use(middleware.Logger())
			e.Use(middleware.Recover())
			e.Use(middleware.CORS())
			if a.config.Server.EnableTrace {
				e.Use(otelecho.Middleware("skrode"))
			}

			handler := rest.NewHandler(a.identity, map[string]rest.QueueStats{
				"posts": a.postQueue,
				"users": a.userQueue,
			})
			handler.RegisterRoutes(e)

			errCh := make(chan error, 1)
			go func() {
				errCh <- e.Start(a.config.Server.WhoisAddr)
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return e.Shutdown(shutdownCtx)
			}
		},
	}
}
