package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/arrdem/skrode/internal/ingest"
	"github.com/arrdem/skrode/internal/upstream"
)

func newWorkerCommand(opts *rootOptions) *cobra.Command {
	var requeueBatch int

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run the deferred resolution workers",
		Long: `Drain the post and user queues against the upstream API. Items whose
content is gone upstream are tombstoned; transient failures are aborted
back onto the queue. A periodic sweep requeues placeholder posts so
nothing observed before a crash is lost.`,
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
			worker := ingest.NewWorker(
				ing,
				client,
				a.config.Ingest.WorkerPoll,
				a.config.Ingest.ReapInterval,
				a.config.Ingest.ReapVisibility,
			)

			group, ctx := errgroup.WithContext(ctx)
			group.Go(func() error { return worker.RunPosts(ctx) })
			group.Go(func() error { return worker.RunUsers(ctx) })
			group.Go(func() error { return worker.Requeue(ctx, a.config.Ingest.RequeueInterval, requeueBatch) })
			return group.Wait()
		},
	}

	cmd.Flags().IntVar(&requeueBatch, "requeue-batch", 100, "placeholder posts requeued per sweep")

	return cmd
}
