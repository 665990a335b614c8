package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"murmur/internal/daemon"
)

func newStorageCommand(ctx *commandContext) *cobra.Command {
	storageCmd := &cobra.Command{
		Use:   "storage",
		Short: "Inspect and reclaim local storage",
	}
	storageCmd.AddCommand(newStorageStatusCommand(ctx))
	storageCmd.AddCommand(newStorageCleanupCommand(ctx))
	return storageCmd
}

func newStorageStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show store usage against the configured budget",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withDaemon(func(d *daemon.Daemon) error {
				status := d.Governor().Status(cmd.Context())
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Used:   %s of %s (%.1f%%)\n",
					humanize.Bytes(uint64(status.UsedBytes)),
					humanize.Bytes(uint64(status.BudgetBytes)),
					status.UsedPercent*100)
				fmt.Fprintf(out, "Free:   %s\n", humanize.Bytes(uint64(max(status.AvailableBytes, 0))))
				fmt.Fprintf(out, "Action: %s\n", status.RecommendedAction)
				return nil
			})
		},
	}
}

func newStorageCleanupCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Run the eviction cascade now",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withDaemon(func(d *daemon.Daemon) error {
				report := d.Governor().Cleanup(cmd.Context())
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Freed %s across %d item(s)\n",
					humanize.Bytes(uint64(max(report.FreedBytes, 0))), report.ItemsRemoved)
				for _, problem := range report.Errors {
					fmt.Fprintf(out, "warning: %s\n", problem)
				}
				return nil
			})
		},
	}
}
