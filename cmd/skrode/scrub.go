package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/arrdem/skrode/internal/domain"
	"github.com/arrdem/skrode/internal/scrub"
)

func newScrubCommand(opts *rootOptions) *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "scrub",
		Short: "Run the compliance scrubber",
		Long: `Strip residual content and graph edges from tombstoned posts on a
fixed interval. Tombstone rows are kept so deleted ids are never
re-ingested as fresh content.`,
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

			service, ok := a.registry.Get(a.config.Scrubber.Service)
			if !ok {
				return domain.NotFoundError{Resource: "service " + a.config.Scrubber.Service}
			}

			scrubber := scrub.NewScrubber(a.posts, service, a.config.Scrubber.Interval)
			if once {
				return scrubber.Sweep(ctx)
			}
			return scrubber.Run(ctx)
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "run a single sweep and exit")

	return cmd
}
