package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/arrdem/skrode/internal/crawl"
	"github.com/arrdem/skrode/internal/upstream"
)

func newCrawlProofsCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "crawl-proofs <handle>...",
		Short: "Crawl identity proofs for one or more handles",
		Long: `Fetch published cross-service identity proofs and fold every proven
account into the subject's persona. Accounts already owned by another
persona are merged.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, opts)
			if err != nil {
				return err
			}
			service, err := a.proofsService()
			if err != nil {
				return err
			}

			proofs := upstream.NewProofsClient(a.config.Services.Proofs.BaseURL)
			crawler := crawl.NewProofCrawler(a.resolver, proofs, a.identity, a.registry, service)

			for _, handle := range args {
				if err := crawler.Crawl(ctx, handle); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func newCrawlFriendsCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "crawl-friends <id>...",
		Short: "Snapshot the follow graph for one or more user ids",
		Long: `Fetch follower and following ids for each subject and record directed
follows edges. Edge endpoints are materialized as bare accounts and
their profiles deferred to the user queue.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, opts)
			if err != nil {
				return err
			}
			service, err := a.microblogService()
			if err != nil {
				return err
			}

			client := upstream.NewClient(
				a.config.Services.Microblog.BaseURL,
				a.config.Services.Microblog.StreamURL,
				a.config.Services.Microblog.Token,
			)
			crawler := crawl.NewFriendCrawler(a.resolver, client, a.identity, a.userQueue, service)

			for _, id := range args {
				if err := crawler.Crawl(ctx, id); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
