package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	ConfigPath string
	Verbose    bool
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "skrode",
		Short: "Cross-service identity graph ingester",
		Long: `Skrode ingests social service streams into a unified identity graph:
accounts resolved to personas across services, posts with their reply and
quote edges, and durable queues for everything that cannot be resolved
inline.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if opts.Verbose {
				level = slog.LevelDebug
			}
			handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
				Level: level,
			})
			slog.SetDefault(slog.New(handler))
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "config.yaml", "path to the config file")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(newMigrateCommand(opts))
	cmd.AddCommand(newIngestCommand(opts))
	cmd.AddCommand(newWorkerCommand(opts))
	cmd.AddCommand(newScrubCommand(opts))
	cmd.AddCommand(newCrawlProofsCommand(opts))
	cmd.AddCommand(newCrawlFriendsCommand(opts))
	cmd.AddCommand(newWhoisCommand(opts))

	return cmd
}
