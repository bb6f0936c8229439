package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/arrdem/skrode/internal/ingest"
	"github.com/arrdem/skrode/internal/upstream"
)

func newIngestCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "Consume the live event stream",
		Long: `Connect to the microblog event stream and ingest it: users and posts
are written inline, unresolvable references become placeholders plus
durable queue items, deletions are tombstoned synchronously. A watchdog
tears down and redials silent connections.`,
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

			ing, cleanup, err := a.newIngester()
			if err != nil {
				return err
			}
			defer cleanup()

			client := upstream.NewClient(
				a.config.Services.Microblog.BaseURL,
				a.config.Services.Microblog.StreamURL,
				a.config.Services.Microblog.Token,
			)
			dialer := ingest.DialerFunc(func(ctx context.Context) (ingest.EventStream, error) {
				return client.OpenStream(ctx)
			})

			controller := ingest.NewController(ing, dialer, a.config.Ingest.WatchdogTimeout)
			return controller.Run(ctx)
		},
	}
}
